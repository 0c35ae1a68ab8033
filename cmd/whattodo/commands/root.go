package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags at release time.
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "development"
)

// NewRootCommand creates the whattodo command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "whattodo",
		Short: "Day-bucketed task list with labels, notes and optional remote sync",
		Long: `whattodo keeps a single task document on local storage: tasks grouped by the
day they were created, labels, a label filter and one note per day. Signing in
merges the document with a remote copy and keeps that copy up to date.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: environment and built-in defaults)")

	rootCmd.AddCommand(NewServeCommand(opts))
	rootCmd.AddCommand(NewShowCommand(opts))
	rootCmd.AddCommand(NewTaskCommand(opts))
	rootCmd.AddCommand(NewLabelCommand(opts))
	rootCmd.AddCommand(NewNoteCommand(opts))
	rootCmd.AddCommand(NewFiltersCommand(opts))
	rootCmd.AddCommand(NewStorageCommand(opts))
	rootCmd.AddCommand(NewRemoteCommand(opts))
	rootCmd.AddCommand(NewTokenCommand(opts))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print whattodo version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out(cmd), "whattodo %s\n", Version)
			fmt.Fprintf(out(cmd), "Build Date: %s\n", BuildDate)
			fmt.Fprintf(out(cmd), "Git Commit: %s\n", GitCommit)
		},
	}
}
