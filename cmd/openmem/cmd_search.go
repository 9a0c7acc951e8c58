package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/niklasschaeffer/open-mem/internal/search"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

var (
	searchStrategy string
	searchType     string
	searchLimit    int
	searchSession  string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search observations with hybrid FTS/vector/graph fusion",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchStrategy, "strategy", "", "filter-only, semantic, or hybrid (default: config)")
	searchCmd.Flags().StringVar(&searchType, "type", "", "restrict to one observation type")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().StringVar(&searchSession, "session", "", "restrict to one session")
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	q := search.Query{
		Text:        args[0],
		ProjectPath: e.ProjectPath(cfg.ProjectRoot),
		SessionID:   searchSession,
		Strategy:    types.SearchStrategy(searchStrategy),
		Type:        types.ObservationType(searchType),
		Limit:       searchLimit,
	}

	results, err := e.Search.Run(ctx, q)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
	}
	printResults(cmd, results)
	return nil
}

func printResults(cmd *cobra.Command, results []types.SearchResult) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "no matches")
		return
	}
	for _, r := range results {
		o := r.Observation
		var signals []string
		for _, s := range r.Explain {
			signals = append(signals, fmt.Sprintf("%s=%.3f", s.Signal, s.Score))
		}
		fmt.Fprintf(out, "#%d  [%s] %s  (%s)\n", r.Rank, o.Type, o.Title, o.ID)
		fmt.Fprintf(out, "     %s\n", strings.Join(signals, " "))
		if o.Subtitle != "" {
			fmt.Fprintf(out, "     %s\n", o.Subtitle)
		}
	}
}
