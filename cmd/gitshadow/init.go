package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gitshadow/gitshadow/internal/config"
	"github.com/gitshadow/gitshadow/internal/github"
	"github.com/gitshadow/gitshadow/internal/ui"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create the config file",
	Long: `Create the gitshadow config file through an interactive setup.

The setup asks for a GitHub token, the identity to record on backup
commits, and the first project to watch. The token needs the "repo"
scope so gitshadow can create private repositories and push to them.

Example usage:
  gitshadow init
  gitshadow init --force                # overwrite an existing config
  gitshadow init --config ./gs.yaml     # write somewhere else

More projects can be added later by editing the config file; the
daemon picks up edits while running.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := cfgFile
		if path == "" {
			var err error
			path, err = config.DefaultPath()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		if _, err := os.Stat(path); err == nil && !initForce {
			fmt.Fprintf(os.Stderr, "Error: config file already exists at %s (use --force to overwrite)\n", path)
			os.Exit(1)
		}

		cwd, _ := os.Getwd()

		var (
			token     string
			name      string
			email     string
			projPath  = cwd
			remote    string
			dashboard bool
		)

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("GitHub token").
					Description("Personal access token with the repo scope").
					EchoMode(huh.EchoModePassword).
					Value(&token).
					Validate(func(value string) error {
						if strings.TrimSpace(value) == "" {
							return errors.New("token is required")
						}
						return nil
					}),
				huh.NewInput().
					Title("Commit author name").
					Value(&name).
					Validate(func(value string) error {
						if strings.TrimSpace(value) == "" {
							return errors.New("name is required")
						}
						return nil
					}),
				huh.NewInput().
					Title("Commit author email").
					Value(&email).
					Validate(func(value string) error {
						if !strings.Contains(value, "@") {
							return errors.New("a valid email is required")
						}
						return nil
					}),
			),
			huh.NewGroup(
				huh.NewInput().
					Title("Project directory").
					Description("The local directory to back up").
					Value(&projPath).
					Validate(func(value string) error {
						info, err := os.Stat(strings.TrimSpace(value))
						if err != nil {
							return errors.New("directory does not exist")
						}
						if !info.IsDir() {
							return errors.New("not a directory")
						}
						return nil
					}),
				huh.NewInput().
					Title("Backup remote").
					Description("GitHub URL, e.g. https://github.com/you/project.git").
					Value(&remote).
					Validate(func(value string) error {
						if strings.TrimSpace(value) == "" {
							return errors.New("remote URL is required")
						}
						if _, _, err := github.ParseOwnerRepo(value); err != nil {
							return err
						}
						return nil
					}),
				huh.NewConfirm().
					Title("Enable the local dashboard?").
					Affirmative("Yes").
					Negative("No").
					Value(&dashboard),
			),
		).WithTheme(ui.FormTheme())

		if err := form.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		absPath, err := filepath.Abs(strings.TrimSpace(projPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		doc := initFile{
			Token: strings.TrimSpace(token),
			Identity: config.Identity{
				Name:  strings.TrimSpace(name),
				Email: strings.TrimSpace(email),
			},
			Projects: []config.Project{
				{Path: absPath, Remote: strings.TrimSpace(remote)},
			},
		}
		if dashboard {
			doc.Dashboard = &config.Dashboard{Enabled: true, Port: 8037}
		}

		if err := writeConfigFile(path, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s wrote %s\n", ui.OK("✓"), ui.Accent(path))
		fmt.Println("\nStart the daemon with 'gitshadow run'.")
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

// initFile is the subset of settings the setup writes. Everything else
// stays on its default and can be added to the file by hand.
type initFile struct {
	Token     string            `yaml:"token"`
	Identity  config.Identity   `yaml:"identity"`
	Dashboard *config.Dashboard `yaml:"dashboard,omitempty"`
	Projects  []config.Project  `yaml:"projects"`
}

// writeConfigFile writes the config with owner-only permissions; the
// file holds the GitHub token.
func writeConfigFile(path string, doc initFile) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
