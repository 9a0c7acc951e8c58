package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions for the current project, most recently active first",
	RunE:  runSessions,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-table row counts",
	RunE:  runStats,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report vector index backing and queue depth",
	RunE:  runHealth,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "maximum rows")
}

func runSessions(cmd *cobra.Command, args []string) error {
	e, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	rows, err := e.Sessions(e.ProjectPath(cfg.ProjectRoot), sessionsLimit)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(rows)
	}
	out := cmd.OutOrStdout()
	for _, s := range rows {
		fmt.Fprintf(out, "%s  status=%s  observations=%d  started=%s\n", s.ID, s.Status, s.ObservationCount, s.StartedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	stats, err := e.Stats()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
	}
	out := cmd.OutOrStdout()
	for table, count := range stats {
		fmt.Fprintf(out, "%-24s %d\n", table, count)
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	h := e.Health()
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
			"vectorIndexNative": h.VectorIndexNative,
			"queueDepth":        h.QueueDepth,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "vector index: %s\nqueue depth: %d\n", vecLabel(h.VectorIndexNative), h.QueueDepth)
	if h.QueueDepthError != nil {
		return fmt.Errorf("queue depth: %w", h.QueueDepthError)
	}
	return nil
}

func vecLabel(native bool) string {
	if native {
		return "native"
	}
	return "brute-force fallback"
}
