package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// browseCommand creates the browse command: an interactive terminal host for
// the configured collection.
func (c *CLI) browseCommand() *cobra.Command {
	var configPath, view string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the collection interactively",
		Long:  `Browse opens an interactive terminal table over the configured collection. Filtering, sorting, pagination, selection and row actions are driven with the keyboard; live sources update the table in place.`,
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

			model, cancel := newBrowseModel(h.c, h.store)
			prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, runErr := prog.Run()
			cancel()

			if closeErr := h.close(context.Background(), cleanup); runErr == nil {
				runErr = closeErr
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.toml")
	cmd.Flags().StringVar(&view, "view", "", "saved view to apply on startup")
	return cmd
}
