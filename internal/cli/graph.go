package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/graph"
	"github.com/rowkit/rowkit/pkg/state"
)

// graphCommand creates the graph command: renders the resolved feature
// dependency graph as DOT or SVG.
func (c *CLI) graphCommand() *cobra.Command {
	var configPath, output string
	var detailed bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the feature dependency graph",
		Long:  `Graph resolves the configured feature set and renders its dependency graph. Output is DOT by default; writing to a .svg file renders through graphviz.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			idKey := cfg.Engine.RowIDKey
			if idKey == "" {
				idKey = "id"
			}
			// The graph only needs the declarations; the context never runs.
			ec := engine.NewContext(state.NewStore(), engine.Meta{RowIDKey: idKey})
			features := standardFeatures(cfg.Engine, idKey, ec)

			dot, err := graph.ToDOT(features, graph.Options{Detailed: detailed})
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), dot)
				return nil
			}

			data := []byte(dot)
			if filepath.Ext(output) == ".svg" {
				if data, err = graph.RenderSVG(dot); err != nil {
					return err
				}
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("write graph: %w", err)
			}
			c.Logger.Info("graph written", "path", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.toml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.dot or .svg; stdout when empty)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include pipeline positions and stages")
	return cmd
}
