package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportPath string
	importPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the current project's observations as newline-delimited JSON",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import observations from a newline-delimited JSON file produced by export",
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "output file (default: stdout)")
	importCmd.Flags().StringVarP(&importPath, "in", "i", "", "input file (required)")
	importCmd.MarkFlagRequired("in")
}

func runExport(cmd *cobra.Command, args []string) error {
	e, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	w := cmd.OutOrStdout()
	if exportPath != "" {
		f, err := os.Create(exportPath)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := e.Export(w, e.ProjectPath(cfg.ProjectRoot))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if exportPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d observations to %s\n", n, exportPath)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	f, err := os.Open(importPath)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	imported, skipped, err := e.Import(f)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d observations, skipped %d\n", imported, skipped)
	return nil
}
