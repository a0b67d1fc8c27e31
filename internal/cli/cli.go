// Package cli implements the rowkit command-line interface.
//
// This package provides commands for browsing a collection interactively,
// serving it over HTTP, inspecting the feature pipeline, and managing saved
// views. The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - browse: Interactive terminal table over the configured data source
//   - serve: HTTP host exposing state and feature operations
//   - graph: Render the feature pipeline as DOT or SVG
//   - views: Manage saved view presets
//   - export: Write a one-shot state snapshot to a file
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rowkit/rowkit/pkg/buildinfo"
)

const (
	// appName is the application name used for directories and display.
	appName = "rowkit"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "rowkit",
		Short:        "Rowkit hosts filterable, sortable, paginated record collections",
		Long:         `Rowkit is a headless engine for record collections: a feature pipeline derives the visible rows from a data source, and hosts (terminal, HTTP) render the result. This CLI bundles reference hosts and pipeline tooling.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.viewsCommand())
	root.AddCommand(c.exportCommand())

	return root
}

// configDir returns the config directory using XDG standard
// (~/.config/rowkit/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// viewsDir returns the saved-view directory under the config directory.
func viewsDir() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "views"), nil
}
