package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitshadow/gitshadow/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gitshadow",
	Short: "Continuous git backup for local working directories",
	Long: `gitshadow watches local project directories and shadows every change
to a private GitHub repository.

Edits are committed automatically once a directory goes quiet, and
commits are pushed on a fixed interval. Backup remotes are created on
demand, so pointing gitshadow at a directory is all the setup a new
project needs.

Getting started:
  gitshadow init      # interactive setup
  gitshadow run       # start the backup daemon

One-shot operations:
  gitshadow sync      # commit and push everything once
  gitshadow status    # show per-project backup state`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.config/gitshadow/config.yaml)")
}

func initConfig() {
	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
