package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	PidDir     string
	NoColor    bool
}

// buildRoot creates the root command. Running devrun without a subcommand
// starts the session, matching the tool's original one-shot usage.
func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "devrun",
		Short: "Local development session supervisor",
		Long: `Devrun launches the long-running services of a local development
session (backend server, frontend dev server), relays their output with
colored labels, and tears everything down on interrupt. PIDs are recorded
per service so a later 'devrun stop' can terminate leftovers.

Examples:
  devrun                       # start all configured services, Ctrl+C to stop
  devrun --config=devrun.toml  # explicit config file
  devrun stop                  # terminate processes recorded by an earlier run
  devrun status                # show recorded processes and their liveness`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.PidDir, "pid-dir", "", "override the pidfile directory")
	root.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "disable ANSI colors in supervisor logs")

	root.AddCommand(
		createUpCommand(flags),
		createStopCommand(flags),
		createStatusCommand(flags),
	)
	return root
}

func createUpCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Start all configured services and block until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd, flags)
		},
	}
}

func createStopCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Terminate processes recorded by an earlier run",
		Long: `Stop reads the pidfile directory and requests termination of every
recorded process. Records are cleared after the attempt whether or not it
succeeded; already-dead or inaccessible processes are reported, not fatal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd, flags)
		},
	}
}

func createStatusCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recorded processes and whether they are still alive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, flags)
		},
	}
}
