package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gitshadow/gitshadow/internal/config"
	"github.com/gitshadow/gitshadow/internal/daemon"
	"github.com/gitshadow/gitshadow/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Commit and push every project once",
	Long: `Run one backup pass over every configured project and exit.

Each project is committed if it has uncommitted changes, its backup
repository is created if missing, and anything the remote lacks is
pushed. No watching happens; this is the daemon's sweep as a one-shot
command, useful before shutting a machine down or from cron.

Example usage:
  gitshadow sync

The exit status is non-zero when any project failed to back up.`,
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

		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)

		ec := engineConfig(cfg, logger)
		if len(ec.Projects) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no usable projects configured")
			os.Exit(1)
		}

		engine := daemon.NewEngine(ec)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reports := engine.RunOnce(ctx)
		if !printReports(reports) {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

// printReports renders one block per project and reports whether every
// project backed up cleanly.
func printReports(reports []daemon.Report) bool {
	ok := true
	for _, r := range reports {
		if r.Err != nil {
			fmt.Printf("%s %s\n", ui.Fail("✗"), ui.Accent(r.Path))
			fmt.Printf("  %s\n", ui.Fail(r.Err.Error()))
			ok = false
			continue
		}

		mark := ui.OK("✓")
		if r.Sync.Err != nil {
			ok = false
			if r.Sync.CanRetry {
				mark = ui.Warn("!")
			} else {
				mark = ui.Fail("✗")
			}
		}
		fmt.Printf("%s %s\n", mark, ui.Accent(r.Path))

		if r.Sync.RepoCreated {
			fmt.Println("  created private repository")
		}
		if r.Committed {
			fmt.Println("  backup commit created")
		}

		switch {
		case r.Sync.BranchPushed && r.Sync.TagsPushed:
			fmt.Printf("  pushed %s and tags\n", r.Sync.Branch)
		case r.Sync.BranchPushed:
			fmt.Printf("  pushed %s\n", r.Sync.Branch)
		case r.Sync.TagsPushed:
			fmt.Println("  pushed tags")
		case r.Sync.InSync:
			fmt.Printf("  %s\n", ui.Dim("up to date"))
		case r.Sync.RepoExists && r.Sync.Branch == "" && r.Sync.Err == nil:
			fmt.Printf("  %s\n", ui.Dim("push skipped (detached HEAD)"))
		case r.Sync.RepoExists && r.Sync.Branch != "" && r.Sync.Err == nil:
			fmt.Printf("  %s\n", ui.Dim("no commits yet"))
		}

		if r.Sync.Err != nil {
			fmt.Printf("  %s\n", ui.Warn(r.Sync.Err.Error()))
		}
	}
	return ok
}
