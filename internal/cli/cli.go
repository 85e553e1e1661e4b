// Package cli implements the beadring command-line interface.
//
// The commands are:
//   - render: lay out a bead file and write the composite image
//   - layout: print or export the computed placements
//   - edit: interactive ring editor
//   - cache: manage the local artifact cache
//   - completion: shell completion scripts
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/beadring/pkg/buildinfo"
	"github.com/matzehuels/beadring/pkg/cache"
	pkgio "github.com/matzehuels/beadring/pkg/io"
	"github.com/matzehuels/beadring/pkg/pipeline"
	"github.com/matzehuels/beadring/pkg/ring"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "beadring"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

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
		Use:          appName,
		Short:        "Beadring lays out beads on a circle and renders the ring",
		Long:         `Beadring is a CLI tool for arranging bead images around a ring and compositing them into a single PNG or JPEG.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.editCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Artifact Cache
// =============================================================================

// newArtifactCache returns the cache for encoded outputs. A Redis URL wins
// over the local file cache; noCache disables both.
func (c *CLI) newArtifactCache(ctx context.Context, noCache bool, redisURL string) (cache.Cache, error) {
	switch {
	case noCache:
		return cache.NewNullCache(), nil
	case redisURL != "":
		return cache.NewRedisCache(ctx, redisURL)
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("artifact cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/beadring/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Bead Files
// =============================================================================

// loadRequest reads a bead file into a generation request. Settings from the
// file's [ring] table become the request defaults.
func loadRequest(path string) (pipeline.Request, *pkgio.BeadFile, error) {
	bf, err := pkgio.ImportBeads(path)
	if err != nil {
		return pipeline.Request{}, nil, err
	}
	req := pipeline.Request{
		Beads:   bf.Beads,
		Spacing: bf.Ring.Spacing,
		Mode:    ring.Mode(bf.Ring.Mode),
		Size:    bf.Ring.Size,
		Scale:   bf.Ring.Scale,
		Format:  bf.Ring.Format,
	}
	return req, bf, nil
}
