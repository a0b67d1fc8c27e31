package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rowkit/rowkit/pkg/features/filter"
	"github.com/rowkit/rowkit/pkg/features/paginate"
	"github.com/rowkit/rowkit/pkg/features/sortby"
	"github.com/rowkit/rowkit/pkg/views"
)

// viewsCommand creates the views command group for managing saved views.
func (c *CLI) viewsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage saved views",
		Long:  `Views lists, inspects and deletes saved views. A view captures filter, sort and page-size settings under a name and can be applied on startup with --view or the engine.view config key.`,
	}

	cmd.AddCommand(c.viewsListCommand(), c.viewsShowCommand(), c.viewsSaveCommand(), c.viewsDeleteCommand())
	return cmd
}

func (c *CLI) viewsStore() (*views.FileStore, error) {
	dir, err := viewsDir()
	if err != nil {
		return nil, err
	}
	return views.NewFileStore(dir)
}

func (c *CLI) viewsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved views",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.viewsStore()
			if err != nil {
				return err
			}
			names, err := store.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				c.Logger.Info("no saved views", "dir", store.Path())
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (c *CLI) viewsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a saved view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.viewsStore()
			if err != nil {
				return err
			}
			v, err := store.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:        %s\n", v.Name)
			if v.Description != "" {
				fmt.Fprintf(out, "description: %s\n", v.Description)
			}
			if v.Filter != nil {
				fmt.Fprintf(out, "filter:      %v\n", v.Filter)
			}
			for _, d := range v.Sort {
				fmt.Fprintf(out, "sort:        %s %s\n", d.Field, d.Direction)
			}
			if v.PageSize > 0 {
				fmt.Fprintf(out, "page size:   %d\n", v.PageSize)
			}
			if !v.UpdatedAt.IsZero() {
				fmt.Fprintf(out, "updated:     %s\n", v.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func (c *CLI) viewsSaveCommand() *cobra.Command {
	var configPath, description, filterQuery string
	var sorts []string
	var pageSize int

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a view from the given settings",
		Long:  `Save loads the configured collection, applies the given filter, sort and page-size settings, and stores the result as a named view.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			h, cleanup, err := c.buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer h.close(context.Background(), cleanup) //nolint:errcheck

			if filterQuery != "" {
				if api, ok := featureOf[*filter.API](h.c, filter.FeatureID); ok {
					api.Set(filterQuery)
				}
			}
			if len(sorts) > 0 {
				descriptors, err := parseSorts(sorts)
				if err != nil {
					return err
				}
				if api, ok := featureOf[*sortby.API](h.c, sortby.FeatureID); ok {
					api.Set(descriptors)
				}
			}
			if pageSize > 0 {
				if api, ok := featureOf[*paginate.API](h.c, paginate.FeatureID); ok {
					api.SetPageSize(pageSize)
				}
			}

			store, err := c.viewsStore()
			if err != nil {
				return err
			}
			v := views.Capture(h.c, args[0], description)
			if err := store.Save(v); err != nil {
				return err
			}
			c.Logger.Info("view saved", "name", v.Name, "path", store.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.toml")
	cmd.Flags().StringVar(&description, "description", "", "view description")
	cmd.Flags().StringVar(&filterQuery, "filter", "", "filter query")
	cmd.Flags().StringArrayVar(&sorts, "sort", nil, "sort descriptor field:asc|desc (repeatable)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size")
	return cmd
}

// parseSorts turns field:asc|desc flags into sort descriptors. A bare field
// sorts ascending.
func parseSorts(specs []string) ([]sortby.Descriptor, error) {
	descriptors := make([]sortby.Descriptor, 0, len(specs))
	for _, spec := range specs {
		field, dir, _ := strings.Cut(spec, ":")
		if field == "" {
			return nil, fmt.Errorf("invalid sort %q", spec)
		}
		d := sortby.Descriptor{Field: field, Direction: sortby.Asc}
		switch dir {
		case "", "asc":
		case "desc":
			d.Direction = sortby.Desc
		default:
			return nil, fmt.Errorf("invalid sort direction %q", dir)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func (c *CLI) viewsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.viewsStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			c.Logger.Info("view deleted", "name", args[0])
			return nil
		},
	}
}
