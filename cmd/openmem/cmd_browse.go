package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/niklasschaeffer/open-mem/internal/types"
)

var (
	listType  string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List observations for the current project, newest first",
	RunE:  runList,
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Fetch one observation by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var lineageCmd = &cobra.Command{
	Use:   "lineage [id]",
	Short: "Show the revision chain for an observation, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runLineage,
}

var createCmd = &cobra.Command{
	Use:   "create [title] [narrative]",
	Short: "Manually record an observation, bypassing the capture queue",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreate,
}

var tombstoneCmd = &cobra.Command{
	Use:   "tombstone [id]",
	Short: "Soft-delete an observation",
	Args:  cobra.ExactArgs(1),
	RunE:  runTombstone,
}

var createSession string

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "restrict to one observation type")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum rows")
	createCmd.Flags().StringVar(&createSession, "session", "cli", "session ID to attribute this observation to")
}

func runList(cmd *cobra.Command, args []string) error {
	e, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	opts := types.ListOptions{Limit: listLimit, Type: types.ObservationType(listType)}
	rows, err := e.List(e.ProjectPath(cfg.ProjectRoot), opts)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(rows)
	}
	out := cmd.OutOrStdout()
	for _, o := range rows {
		fmt.Fprintf(out, "[%s] %s  (%s)\n", o.Type, o.Title, o.ID)
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	o, err := e.Get(args[0])
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(o)
}

func runLineage(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	chain, err := e.Lineage(args[0])
	if err != nil {
		return fmt.Errorf("lineage: %w", err)
	}
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(chain)
	}
	out := cmd.OutOrStdout()
	for i, o := range chain {
		fmt.Fprintf(out, "%d. [%s] %s  (%s)\n", i+1, o.Type, o.Title, o.ID)
	}
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	e, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.Store.GetOrCreateSession(createSession, e.ProjectPath(cfg.ProjectRoot))
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	o, err := e.Create(&types.Observation{
		SessionID: sess.ID,
		Type:      types.ObservationChange,
		Title:     args[0],
		Narrative: args[1],
	})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", o.ID)
	return nil
}

func runTombstone(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Tombstone(args[0]); err != nil {
		return fmt.Errorf("tombstone: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tombstoned %s\n", args[0])
	return nil
}
