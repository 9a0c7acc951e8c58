// Package main implements the openmem CLI, the operator-facing surface
// over the host package's capture/query facade: search, browse, sessions,
// export/import, and queue/daemon administration.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/host"
	"github.com/niklasschaeffer/open-mem/internal/logging"
)

var (
	workspace string
	timeout   time.Duration
	jsonOut   bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "openmem",
	Short: "openmem - durable memory for coding agents",
	Long: `openmem captures tool output from an agent harness, compresses it into
structured observations, and serves it back through hybrid search, a
knowledge graph, and progressive-disclosure context assembly.

Run a subcommand to search, browse, or administer a project's memory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ws := workspace
		if ws == "" {
			var err error
			ws, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}
			workspace = ws
		}
		if err := logging.Initialize(ws, verbose); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "project root (default: current directory)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "operation timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		searchCmd,
		listCmd,
		getCmd,
		lineageCmd,
		createCmd,
		tombstoneCmd,
		sessionsCmd,
		statsCmd,
		healthCmd,
		exportCmd,
		importCmd,
		queueCmd,
		daemonCmd,
		captureCmd,
	)
}

// openEngine resolves the project's config and opens a host.Engine against
// it, the bootstrap every subcommand (daemon included) shares.
func openEngine() (*host.Engine, *config.Config, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	e, err := host.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open engine: %w", err)
	}
	return e, cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
