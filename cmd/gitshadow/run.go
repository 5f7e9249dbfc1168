package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gitshadow/gitshadow/internal/config"
	"github.com/gitshadow/gitshadow/internal/daemon"
	"github.com/gitshadow/gitshadow/internal/dashboard"
	"github.com/gitshadow/gitshadow/internal/git"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the backup daemon",
	Long: `Start the backup daemon and watch every configured project.

The daemon commits each project once its directory has been quiet for
the debounce interval, and pushes all projects to their backup remotes
on the push interval. Missing GitHub repositories are created on the
fly as private repositories.

Edits to the config file are picked up while the daemon runs; projects
are added and removed without a restart.

Example usage:
  gitshadow run                      # use ~/.config/gitshadow/config.yaml
  gitshadow run --config ./gs.yaml   # use an explicit config file

Stop with Ctrl+C or SIGTERM; a final in-flight commit or push is
allowed to finish.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
			fmt.Fprintln(os.Stderr, "Run 'gitshadow init' to create a config file.")
			os.Exit(1)
		}

		logger := newRunLogger(cfg)

		ec := engineConfig(cfg, logger)
		if len(ec.Projects) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no usable projects configured")
			os.Exit(1)
		}

		// Optional local dashboard
		if cfg.Dashboard.Enabled {
			dash := dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: log.New(logger.Writer(), "[dashboard] ", log.LstdFlags),
			})
			if err := dash.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			defer func() {
				if err := dash.Stop(); err != nil {
					logger.Printf("Dashboard shutdown: %v", err)
				}
			}()

			ec.OnEvent = func(ev daemon.Event) {
				dash.PublishProjectEvent(dashboard.MessageType(ev.Kind), ev.Project, ev.Detail, ev.Time)
			}
		}

		engine := daemon.NewEngine(ec)

		// Apply config file edits without restarting
		go func() {
			for next := range config.Watch(logger) {
				engine.Reload(daemon.Snapshot{
					Identity: git.Identity{Name: next.Identity.Name, Email: next.Identity.Email},
					Token:    next.Token,
					Projects: validProjects(next, logger),
				})
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Printf("gitshadow %s watching %d projects", version, len(ec.Projects))

		if err := engine.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		logger.Println("Shutdown complete")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// newRunLogger builds the daemon logger. With log_file set, entries go
// to both stderr and a size-rotated file.
func newRunLogger(cfg *config.Config) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	return log.New(w, "[gitshadow] ", log.LstdFlags)
}

// validProjects filters the configured projects down to the ones the
// daemon can actually watch, logging what it skips. One bad entry must
// not take the rest down.
func validProjects(cfg *config.Config, logger *log.Logger) []daemon.ProjectConfig {
	var out []daemon.ProjectConfig
	for _, p := range cfg.Projects {
		if err := config.ValidateProject(p); err != nil {
			logger.Printf("Skipping project %s: %v", p.Path, err)
			continue
		}
		out = append(out, daemon.ProjectConfig{Path: p.Path, RemoteURL: p.Remote})
	}
	return out
}

// engineConfig maps the file configuration onto the engine's knobs.
func engineConfig(cfg *config.Config, logger *log.Logger) *daemon.Config {
	ec := daemon.DefaultConfig()
	ec.Identity = git.Identity{Name: cfg.Identity.Name, Email: cfg.Identity.Email}
	ec.Token = cfg.Token
	ec.Projects = validProjects(cfg, logger)
	ec.Debounce = cfg.Debounce
	ec.PushInterval = cfg.PushInterval
	ec.StabilizeDelay = cfg.StabilizeDelay
	ec.RemoteName = cfg.RemoteName
	ec.RemoteBranch = cfg.RemoteBranch
	ec.CommandTimeout = cfg.CommandTimeout
	ec.NetworkTimeout = cfg.NetworkTimeout
	ec.Logger = logger
	return ec
}
