package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/beadring/pkg/assets"
	"github.com/matzehuels/beadring/pkg/bead"
	"github.com/matzehuels/beadring/pkg/cache"
	"github.com/matzehuels/beadring/pkg/httputil"
	"github.com/matzehuels/beadring/pkg/loader"
	"github.com/matzehuels/beadring/pkg/observability"
	"github.com/matzehuels/beadring/pkg/pipeline"
	"github.com/matzehuels/beadring/pkg/render"
	"github.com/matzehuels/beadring/pkg/ring"
)

// renderOpts holds the command-line flags for the render command.
// Flags that are set override the bead file's [ring] table.
type renderOpts struct {
	output      string  // output file; derived from the input name if empty
	size        int     // surface edge length in pixels
	scale       float64 // export resample factor
	format      string  // png or jpeg
	quality     int     // JPEG quality
	spacing     float64 // gap between neighbouring beads
	mode        string  // arc or chord
	concurrency int     // parallel image downloads
	cacheMB     int     // in-memory image cache ceiling
	noCache     bool    // skip the artifact cache
	redis       string  // Redis URL for a shared artifact cache
	rotate      int     // rotate the bead order before layout
	refresh     bool    // re-render even on a cache hit
	metrics     bool    // dump Prometheus metrics after the run
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{
		concurrency: assets.DefaultConcurrency,
		cacheMB:     assets.DefaultMaxBytes >> 20,
	}

	cmd := &cobra.Command{
		Use:   "render [beads.toml|beads.json]",
		Short: "Render a bead file to a PNG or JPEG",
		Long: `Render a bead file to a PNG or JPEG.

Images are downloaded at most once per run and at most --concurrency at a
time. Beads whose image cannot be loaded are drawn as placeholders and
reported as warnings. Finished renders are cached under the user cache
directory (or in Redis with --redis) and reused for identical inputs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, _, err := loadRequest(args[0])
			if err != nil {
				return err
			}
			opts.apply(cmd, args[0], &req)
			return c.runRender(cmd.Context(), req, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <input>-<id>.<format> next to the input)")
	cmd.Flags().IntVar(&opts.size, "size", pipeline.DefaultSize, "surface size in pixels")
	cmd.Flags().Float64Var(&opts.scale, "scale", pipeline.DefaultScale, "resample factor applied on export")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png (default), jpeg")
	cmd.Flags().IntVar(&opts.quality, "quality", render.DefaultJPEGQuality, "JPEG quality (1-100)")
	cmd.Flags().Float64Var(&opts.spacing, "spacing", 0, "gap between neighbouring beads")
	cmd.Flags().StringVar(&opts.mode, "mode", string(pipeline.DefaultMode), "angle mode: arc (default), chord")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", opts.concurrency, "maximum parallel image downloads")
	cmd.Flags().IntVar(&opts.cacheMB, "cache-mb", opts.cacheMB, "in-memory image cache size in MiB")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	cmd.Flags().StringVar(&opts.redis, "redis", "", "Redis URL for the artifact cache (e.g. redis://localhost:6379/0)")
	cmd.Flags().IntVar(&opts.rotate, "rotate", 0, "rotate bead order clockwise by n (negative: counter-clockwise)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached renders")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print Prometheus metrics after rendering")

	return cmd
}

// apply copies explicitly set flags onto req and derives the output location.
func (o renderOpts) apply(cmd *cobra.Command, input string, req *pipeline.Request) {
	set := cmd.Flags().Changed
	if set("size") {
		req.Size = o.size
	}
	if set("scale") {
		req.Scale = o.scale
	}
	if set("format") {
		req.Format = o.format
	}
	if set("quality") {
		req.Quality = o.quality
	}
	if set("spacing") {
		req.Spacing = o.spacing
	}
	if set("mode") {
		req.Mode = ring.Mode(o.mode)
	}
	req.Refresh = o.refresh
	req.Beads = rotateBeads(req.Beads, o.rotate)

	if o.output != "" {
		req.OutputPath = o.output
		if req.Format == "" {
			req.Format = formatFromExt(o.output)
		}
		return
	}
	req.OutputDir = filepath.Dir(input)
	req.Prefix = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}

// rotateBeads rotates the ring order by n steps; positive is clockwise.
func rotateBeads(beads []bead.Bead, n int) []bead.Bead {
	switch {
	case n > 0:
		return bead.RotateClockwise(beads, n)
	case n < 0:
		return bead.RotateCounterClockwise(beads, -n)
	}
	return beads
}

// formatFromExt guesses the output format from a file name, or returns ""
// to keep the default.
func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return string(render.FormatJPEG)
	case ".png":
		return string(render.FormatPNG)
	}
	return ""
}

// redisKeyPrefix namespaces artifact keys in a shared Redis instance.
const redisKeyPrefix = appName + ":"

// engine bundles a pipeline runner with the resources it owns for one
// command invocation.
type engine struct {
	runner *pipeline.Runner
	images *assets.Cache
	close  []func() error
}

// newEngine wires the artifact cache, download queue, image cache and
// renderer behind a runner.
func (c *CLI) newEngine(ctx context.Context, opts renderOpts, logger *log.Logger) (*engine, error) {
	e := &engine{}

	artifacts, err := c.newArtifactCache(ctx, opts.noCache, opts.redis)
	if err != nil {
		return nil, fmt.Errorf("open artifact cache: %w", err)
	}
	e.close = append(e.close, artifacts.Close)

	queue := loader.NewQueue(opts.concurrency, loader.WithLogger(logger), loader.WithName("images"))
	e.close = append(e.close, func() error { queue.Destroy(); return nil })

	aopts := assets.DefaultOptions()
	aopts.MaxBytes = int64(opts.cacheMB) << 20
	aopts.Fetcher = httputil.NewHTTPFetcher()
	aopts.Queue = queue
	aopts.Logger = logger
	e.images = assets.New(aopts)
	e.close = append(e.close, e.images.Close)

	keyer := cache.NewDefaultKeyer()
	if opts.redis != "" {
		keyer = cache.NewScopedKeyer(keyer, redisKeyPrefix)
	}

	e.runner, err = pipeline.NewRunner(pipeline.Config{
		Assets:   e.images,
		Renderer: render.New(render.WithLogger(logger)),
		Cache:    artifacts,
		Keyer:    keyer,
		Logger:   logger,
	})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("initialize runner: %w", err)
	}
	e.close = append(e.close, e.runner.Close)
	return e, nil
}

// Close releases resources in reverse order of creation.
func (e *engine) Close() error {
	var first error
	for i := len(e.close) - 1; i >= 0; i-- {
		if err := e.close[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// runRender executes one generation and prints the outcome.
func (c *CLI) runRender(ctx context.Context, req pipeline.Request, opts renderOpts) error {
	var metrics *observability.Metrics
	if opts.metrics {
		metrics = observability.NewMetrics(nil)
		metrics.Install()
		defer observability.Reset()
	}

	eng, err := c.newEngine(ctx, opts, c.Logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %d beads...", len(req.Beads)))
	spinner.Start()
	prog := newProgress(c.Logger)

	res, err := eng.runner.Generate(ctx, req)
	spinner.Stop()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		printFailure(res)
		return err
	}
	prog.done("Rendered", "size", fmt.Sprintf("%dx%d", res.Width, res.Height), "format", res.Format, "cached", res.CacheHit)

	printResult(res)
	c.Logger.Debug("image cache", "stats", fmt.Sprintf("%+v", eng.images.Stats()))

	if metrics != nil {
		printNewline()
		return metrics.WriteText(os.Stdout)
	}
	return nil
}
