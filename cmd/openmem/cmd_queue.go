package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or drive the pending-capture processing queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current queue depth",
	RunE:  runQueueStatus,
}

var queueTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Force an out-of-band batch run and wait for it to finish",
	RunE:  runQueueTrigger,
}

func init() {
	queueCmd.AddCommand(queueStatusCmd, queueTriggerCmd)
}

func runQueueStatus(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	depth, err := e.Store.PendingDepth()
	if err != nil {
		return fmt.Errorf("pending depth: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queue depth: %d\n", depth)
	return nil
}

func runQueueTrigger(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := e.Processor.RunBatch(ctx)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "claimed=%d completed=%d failed=%d dropped=%d\n",
		result.Claimed, result.Completed, result.Failed, result.Dropped)
	return nil
}
