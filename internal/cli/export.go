package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rowkit/rowkit/pkg/export"
)

// exportCommand creates the export command: a one-shot load that writes the
// collection snapshot as JSON.
func (c *CLI) exportCommand() *cobra.Command {
	var configPath, output, view string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a collection snapshot as JSON",
		Long:  `Export loads the configured collection once, runs the derive pipeline, and writes the full snapshot (rows, filter, sort, pagination, selection) as JSON. Apply a saved view with --view to export its projection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if view != "" {
				cfg.Engine.View = view
			}

			h, cleanup, err := c.buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer h.close(context.Background(), cleanup) //nolint:errcheck

			snap := export.Capture(h.c)
			if output == "" {
				return export.WriteJSON(snap, cmd.OutOrStdout())
			}
			if err := export.ExportJSON(snap, output); err != nil {
				return err
			}
			c.Logger.Info("snapshot written", "path", output, "rows", len(snap.RowsAll))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.toml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	cmd.Flags().StringVar(&view, "view", "", "saved view to apply before export")
	return cmd
}
