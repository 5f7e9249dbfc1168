package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gitshadow/gitshadow/internal/config"
	"github.com/gitshadow/gitshadow/internal/git"
	"github.com/gitshadow/gitshadow/internal/github"
	"github.com/gitshadow/gitshadow/internal/ui"
)

var statusYAML bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-project backup state",
	Long: `Show the backup state of every configured project.

The report is read-only and offline: nothing is committed, pushed, or
created, and divergence is judged against the last known remote state.
A project the daemon has not seen yet shows as not initialized.

Example usage:
  gitshadow status
  gitshadow status --yaml   # machine-readable output`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(cfg.Projects) == 0 {
			fmt.Fprintln(os.Stderr, "No projects configured. Run 'gitshadow init' to get started.")
			os.Exit(1)
		}

		opts := git.Options{
			RemoteName: cfg.RemoteName,
			Timeout:    cfg.CommandTimeout,
			NetTimeout: cfg.NetworkTimeout,
		}

		ctx := context.Background()
		statuses := make([]projectStatus, 0, len(cfg.Projects))
		for _, p := range cfg.Projects {
			statuses = append(statuses, collectStatus(ctx, opts, p))
		}

		if statusYAML {
			data, err := yaml.Marshal(statuses)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(data))
			return
		}

		for _, st := range statuses {
			fmt.Printf("%s %s\n", statusMark(st), ui.Accent(st.Path))
			fmt.Printf("  remote %s\n", ui.Dim(remoteLink(st.Remote)))
			fmt.Printf("  %s\n", statusDetail(st))
		}
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusYAML, "yaml", false, "Print machine-readable YAML")
	rootCmd.AddCommand(statusCmd)
}

type projectStatus struct {
	Path   string `yaml:"path"`
	Remote string `yaml:"remote"`
	State  string `yaml:"state"`
	Branch string `yaml:"branch,omitempty"`
	Dirty  bool   `yaml:"dirty,omitempty"`
	Ahead  int    `yaml:"ahead,omitempty"`
	Error  string `yaml:"error,omitempty"`
}

// collectStatus inspects one project without touching the network or
// mutating anything.
func collectStatus(ctx context.Context, opts git.Options, p config.Project) projectStatus {
	st := projectStatus{Path: p.Path, Remote: p.Remote}

	if err := config.ValidateProject(p); err != nil {
		st.State = "invalid"
		st.Error = err.Error()
		return st
	}

	repo, err := git.Open(p.Path, opts)
	if err != nil {
		// The daemon initializes repositories on first contact.
		st.State = "not initialized"
		st.Error = err.Error()
		return st
	}

	if dirty, err := repo.HasChanges(ctx); err == nil {
		st.Dirty = dirty
	}

	if !repo.HasCommits(ctx) {
		st.State = "no commits yet"
		return st
	}

	branch, err := repo.CurrentBranch(ctx)
	if err != nil {
		st.State = "unknown"
		st.Error = err.Error()
		return st
	}
	if branch == "" {
		st.State = "detached HEAD"
		return st
	}
	st.Branch = branch

	ahead, err := repo.AheadCount(ctx, branch, opts.RemoteName+"/"+branch)
	if err != nil {
		// No remote-tracking ref means the branch has never been pushed.
		st.State = "never pushed"
		return st
	}
	st.Ahead = ahead
	st.State = "ok"
	return st
}

func statusMark(st projectStatus) string {
	switch {
	case st.State == "invalid":
		return ui.Fail("✗")
	case st.State == "ok" && st.Ahead == 0 && !st.Dirty:
		return ui.OK("✓")
	default:
		return ui.Warn("!")
	}
}

func statusDetail(st projectStatus) string {
	if st.State != "ok" {
		if st.Error != "" {
			return st.State + ": " + st.Error
		}
		return st.State
	}

	detail := "branch " + st.Branch
	if st.Ahead > 0 {
		detail += fmt.Sprintf(", %d ahead of remote", st.Ahead)
	} else {
		detail += ", nothing to push"
	}
	if st.Dirty {
		detail += ", uncommitted changes"
	}
	return detail
}

// remoteLink renders the remote as a clickable GitHub link where the
// terminal supports it.
func remoteLink(remote string) string {
	owner, repo, err := github.ParseOwnerRepo(remote)
	if err != nil {
		return remote
	}
	return ui.Hyperlink("https://github.com/"+owner+"/"+repo, remote)
}
