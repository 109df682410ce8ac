package main

import (
	"fmt"
	"os"
	"time"

	"github.com/smallbiznis/orgchart/internal/export"
	"github.com/smallbiznis/orgchart/internal/orgtree"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the org chart to a PDF or XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return fmt.Errorf("invalid --format: %w", err)
			}

			members, topLevel, err := loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			doc, err := export.Render(f, orgtree.BuildTree(members, orgtree.WithTopLevelRole(topLevel)), now)
			if err != nil {
				return err
			}

			if out == "" {
				out = doc.Filename
			}
			if err := os.WriteFile(out, doc.Body, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", string(export.FormatPDF), "Output format (pdf or xlsx)")
	cmd.Flags().StringVar(&out, "out", "", "Output path (defaults to a dated file name)")
	return cmd
}
