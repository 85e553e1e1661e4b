// Package pipeline provides the generation pipeline for bead rings.
//
// This package implements the complete validate → layout → resolve → render
// → export pipeline used by the CLI and by any embedding service. By
// centralizing this logic, every entry point gets the same caching,
// deduplication and error reporting.
//
// # Architecture
//
// A generation runs these stages:
//
//  1. Validate: check beads and options, apply defaults
//  2. Layout: place beads on the ring (see package ring)
//  3. Resolve: load every distinct image through the asset cache
//  4. Render: composite the layout, drawing placeholders for failed images
//  5. Export: encode and write the output file
//
// The encoded output is stored in an artifact cache keyed by the bead
// fingerprint and render options, so repeating a generation only writes
// the cached bytes to the new destination. Identical generations running
// at the same time share one render.
//
// # Usage
//
//	runner, err := pipeline.NewRunner(pipeline.Config{Cache: fileCache})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer runner.Close()
//
//	result, err := runner.Generate(ctx, pipeline.Request{
//	    Beads:     beads,
//	    Format:    "png",
//	    OutputDir: "out",
//	})
//	if err != nil {
//	    fmt.Println("generation failed, please retry:", result.Reason)
//	}
package pipeline

import (
	"math"
	"time"

	"github.com/matzehuels/beadring/pkg/bead"
	"github.com/matzehuels/beadring/pkg/cache"
	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/render"
	"github.com/matzehuels/beadring/pkg/ring"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and embedders
// =============================================================================

const (
	// DefaultSize is the default surface edge length in pixels.
	DefaultSize = render.DefaultSize

	// DefaultScale is the default export resample factor.
	DefaultScale = 1.0

	// MaxScale bounds the export resample factor.
	MaxScale = 8.0

	// DefaultFormat is the default output encoding.
	DefaultFormat = render.FormatPNG

	// DefaultMode is the default angular walk.
	DefaultMode = ring.ModeArc
)

// Status is the outcome of a generation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// =============================================================================
// Request - Generation Configuration
// =============================================================================

// Request contains all configuration for one generation.
// This struct supports JSON serialization for API requests.
type Request struct {
	// Layout options
	Beads   []bead.Bead `json:"beads"`
	Spacing float64     `json:"spacing,omitempty"`
	Mode    ring.Mode   `json:"mode,omitempty"`

	// Render options
	Size    int     `json:"size,omitempty"`
	Scale   float64 `json:"scale,omitempty"`
	Format  string  `json:"format,omitempty"`
	Quality int     `json:"quality,omitempty"`

	// Output options
	OutputDir  string `json:"output_dir,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	Prefix     string `json:"prefix,omitempty"`

	// Refresh bypasses the artifact cache lookup.
	Refresh bool `json:"refresh,omitempty"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks the request and applies defaults.
// This method is idempotent.
func (r *Request) ValidateAndSetDefaults() error {
	if r.validated {
		return nil
	}
	if err := r.ValidateForLayout(); err != nil {
		return err
	}
	if err := r.ValidateForRender(); err != nil {
		return err
	}
	r.validated = true
	return nil
}

// ValidateForLayout checks the bead list and ring options.
func (r *Request) ValidateForLayout() error {
	if len(r.Beads) == 0 {
		return errors.New(errors.ErrCodeDegenerateLayout, "no beads to lay out")
	}
	if err := bead.ValidateAll(r.Beads); err != nil {
		return err
	}
	if math.IsNaN(r.Spacing) || math.IsInf(r.Spacing, 0) || r.Spacing < 0 {
		return errors.New(errors.ErrCodeDegenerateLayout, "spacing must be a non-negative number, got %v", r.Spacing)
	}
	if r.Mode == "" {
		r.Mode = DefaultMode
	}
	mode, err := ring.ParseMode(string(r.Mode))
	if err != nil {
		return err
	}
	r.Mode = mode
	for i, b := range r.Beads {
		if err := errors.ValidateImageSource(b.Image); err != nil {
			return errors.Wrap(errors.GetCode(err), err, "bead %d", i)
		}
	}
	return nil
}

// ValidateForRender checks output options and applies defaults.
func (r *Request) ValidateForRender() error {
	if r.Size == 0 {
		r.Size = DefaultSize
	}
	if r.Size < 1 || r.Size > render.MaxSize {
		return errors.New(errors.ErrCodeInvalidInput, "size must be between 1 and %d, got %d", render.MaxSize, r.Size)
	}
	if r.Scale == 0 {
		r.Scale = DefaultScale
	}
	if math.IsNaN(r.Scale) || r.Scale <= 0 || r.Scale > MaxScale {
		return errors.New(errors.ErrCodeInvalidInput, "scale must be in (0, %v], got %v", MaxScale, r.Scale)
	}
	format, err := render.ParseFormat(r.Format)
	if err != nil {
		return err
	}
	r.Format = string(format)
	if r.Quality == 0 {
		r.Quality = render.DefaultJPEGQuality
	}
	if r.Quality < 1 || r.Quality > 100 {
		return errors.New(errors.ErrCodeInvalidInput, "quality must be between 1 and 100, got %d", r.Quality)
	}
	if r.OutputPath != "" {
		if err := errors.ValidateOutputPath(r.OutputPath); err != nil {
			return err
		}
	}
	return nil
}

// RingConfig returns the layout configuration for the request.
func (r *Request) RingConfig() ring.Config {
	return ring.Config{Spacing: r.Spacing, Mode: r.Mode}
}

// ExportOptions returns the encoding and destination options.
func (r *Request) ExportOptions() render.ExportOptions {
	return render.ExportOptions{
		Format:  render.Format(r.Format),
		Quality: r.Quality,
		Scale:   r.Scale,
		Dir:     r.OutputDir,
		Prefix:  r.Prefix,
		Path:    r.OutputPath,
	}
}

// ArtifactKeyOpts returns cache key options for the encoded output.
func (r *Request) ArtifactKeyOpts() cache.ArtifactKeyOpts {
	opts := cache.ArtifactKeyOpts{
		Mode:    string(r.Mode),
		Spacing: r.Spacing,
		Size:    r.Size,
		Scale:   r.Scale,
		Format:  r.Format,
	}
	if r.Format == string(render.FormatJPEG) {
		opts.Quality = r.Quality
	}
	return opts
}

// =============================================================================
// Result
// =============================================================================

// Result describes a finished (or failed) generation.
type Result struct {
	Status       Status           `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Path         string           `json:"path,omitempty"`
	Format       render.Format    `json:"format,omitempty"`
	Width        int              `json:"width,omitempty"`
	Height       int              `json:"height,omitempty"`
	Layout       ring.Layout      `json:"-"`
	Warnings     []render.Warning `json:"-"`
	CacheHit     bool             `json:"cache_hit"`
	Fingerprint  string           `json:"fingerprint,omitempty"`
	GenerationID string           `json:"generation_id"`
	Stats        Stats            `json:"stats"`
}

// Stats contains generation statistics.
type Stats struct {
	Beads         int           `json:"beads"`
	Sources       int           `json:"sources"`
	FailedSources int           `json:"failed_sources"`
	Bytes         int64         `json:"bytes"`
	LayoutTime    time.Duration `json:"layout_time"`
	ResolveTime   time.Duration `json:"resolve_time"`
	RenderTime    time.Duration `json:"render_time"`
	Total         time.Duration `json:"total"`
}
