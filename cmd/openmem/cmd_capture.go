package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/niklasschaeffer/open-mem/internal/host"
)

var (
	captureSession  string
	captureTool     string
	captureCallID   string
	captureFromFile string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Enqueue one tool-output capture, reading from --file or stdin",
	Long: `capture is the CLI equivalent of a harness calling Engine.OnToolExecute:
it redacts and durably enqueues tool output for the next queue batch to
compress into an observation. Intended for scripting and manual testing
rather than as the harness's primary integration path.`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVar(&captureSession, "session", "cli", "session ID this capture belongs to")
	captureCmd.Flags().StringVar(&captureTool, "tool", "manual", "tool name to attribute the output to")
	captureCmd.Flags().StringVar(&captureCallID, "call-id", "", "idempotency key (default: generated)")
	captureCmd.Flags().StringVarP(&captureFromFile, "file", "f", "", "read tool output from this file (default: stdin)")
}

func runCapture(cmd *cobra.Command, args []string) error {
	e, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	var r io.Reader = os.Stdin
	if captureFromFile != "" {
		f, err := os.Open(captureFromFile)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		defer f.Close()
		r = f
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read capture input: %w", err)
	}

	callID := captureCallID
	if callID == "" {
		callID = fmt.Sprintf("cli-%d", os.Getpid())
	}

	msg, err := e.OnToolExecute(host.ToolExecution{
		SessionID:   captureSession,
		ProjectPath: e.ProjectPath(cfg.ProjectRoot),
		ToolName:    captureTool,
		Output:      string(body),
		CallID:      callID,
	})
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if msg == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "suppressed (below minimum length after redaction)")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", msg.ID)
	return nil
}
