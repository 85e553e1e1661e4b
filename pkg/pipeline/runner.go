package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/beadring/pkg/assets"
	"github.com/matzehuels/beadring/pkg/bead"
	"github.com/matzehuels/beadring/pkg/cache"
	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/observability"
	"github.com/matzehuels/beadring/pkg/render"
)

// Config wires a [Runner]. Zero fields take defaults.
type Config struct {
	// Assets resolves bead images. The runner creates (and closes) one
	// with default options if nil.
	Assets *assets.Cache

	// Renderer draws composites. Its size is overridden per request.
	Renderer *render.Renderer

	// Cache stores encoded outputs. Nil disables artifact caching.
	Cache cache.Cache
	Keyer cache.Keyer
	TTL   time.Duration

	Logger *log.Logger
}

// Runner executes generations with artifact caching and in-flight
// deduplication. It is safe for concurrent use.
type Runner struct {
	assets     *assets.Cache
	ownsAssets bool
	renderer   *render.Renderer
	cache      cache.Cache
	keyer      cache.Keyer
	ttl        time.Duration
	logger     *log.Logger
	group      singleflight.Group
}

// NewRunner creates a runner from cfg.
func NewRunner(cfg Config) (*Runner, error) {
	r := &Runner{
		assets:   cfg.Assets,
		renderer: cfg.Renderer,
		cache:    cfg.Cache,
		keyer:    cfg.Keyer,
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	if r.assets == nil {
		opts := assets.DefaultOptions()
		opts.Logger = r.logger
		r.assets = assets.New(opts)
		r.ownsAssets = true
	}
	if r.renderer == nil {
		r.renderer = render.New(render.WithLogger(r.logger))
	}
	if r.cache == nil {
		r.cache = cache.NewNullCache()
	}
	if r.keyer == nil {
		r.keyer = cache.NewDefaultKeyer()
	}
	if r.ttl == 0 {
		r.ttl = cache.TTLArtifact
	}
	return r, nil
}

// Assets returns the runner's asset cache.
func (r *Runner) Assets() *assets.Cache { return r.assets }

// Close releases the asset cache if the runner created it.
func (r *Runner) Close() error {
	if r.ownsAssets {
		return r.assets.Close()
	}
	return nil
}

// Generate runs one generation. On failure it returns both a Result with
// Status error and a human-readable Reason, and the error itself.
// Recoverable per-bead image failures do not fail the generation; they are
// listed in Result.Warnings.
func (r *Runner) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{GenerationID: uuid.NewString(), Stats: Stats{Beads: len(req.Beads)}}
	logger := r.logger.With("generation", res.GenerationID[:8])

	fail := func(err error) (*Result, error) {
		res.Status = StatusError
		res.Reason = errors.UserMessage(err)
		res.Stats.Total = time.Since(start)
		observability.Pipeline().OnGenerationComplete(ctx, string(res.Status), res.CacheHit, res.Stats.Total)
		logger.Error("generation failed", "code", errors.GetCode(err), "reason", res.Reason)
		return res, err
	}

	if err := req.ValidateAndSetDefaults(); err != nil {
		return fail(err)
	}
	res.Format = render.Format(req.Format)
	res.Fingerprint = bead.Fingerprint(req.Beads)

	layoutStart := time.Now()
	l, err := ComputeLayout(ctx, req)
	if err != nil {
		return fail(err)
	}
	res.Layout = l
	res.Stats.LayoutTime = time.Since(layoutStart)
	logger.Debug("computed layout", "beads", len(l.Placements), "radius", l.Radius, "drift", l.Drift())

	key := r.keyer.ArtifactKey(res.Fingerprint, req.ArtifactKeyOpts())
	art, hit, err := r.artifact(ctx, key, req, res)
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	path := render.OutputPath(req.ExportOptions())
	if err := render.WriteFile(path, art.out.Data); err != nil {
		return fail(err)
	}

	res.Status = StatusSuccess
	res.Path = path
	res.Width, res.Height = art.out.Width, art.out.Height
	res.Warnings = art.warnings
	res.CacheHit = hit
	res.Stats.Sources = art.stats.Sources
	res.Stats.FailedSources = art.stats.FailedSources
	res.Stats.ResolveTime = art.stats.ResolveTime
	res.Stats.RenderTime = art.stats.RenderTime
	res.Stats.Bytes = art.out.Bytes
	res.Stats.Total = time.Since(start)
	observability.Pipeline().OnGenerationComplete(ctx, string(res.Status), hit, res.Stats.Total)

	logger.Info("generation complete",
		"path", path, "cache_hit", hit, "warnings", len(res.Warnings), "duration", res.Stats.Total)
	return res, nil
}

// artifact returns the encoded output for key from the cache, or produces
// it. Concurrent callers with the same key share one production.
func (r *Runner) artifact(ctx context.Context, key string, req Request, res *Result) (*artifact, bool, error) {
	if !req.Refresh {
		if a, ok := r.cached(ctx, key, req); ok {
			return a, true, nil
		}
	}

	ch := r.group.DoChan(key, func() (any, error) {
		return r.produceAndStore(ctx, key, req, res)
	})

	select {
	case out := <-ch:
		if out.Err == nil {
			return out.Val.(*artifact), false, nil
		}
		// The shared run belonged to a caller that gave up.
		if out.Shared && errors.Is(out.Err, errors.ErrCodeCancelled) && ctx.Err() == nil {
			a, err := r.produceAndStore(ctx, key, req, res)
			return a, false, err
		}
		return nil, false, out.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (r *Runner) cached(ctx context.Context, key string, req Request) (*artifact, bool) {
	data, hit, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("artifact cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "artifact")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "artifact")

	px := req.Size
	if req.Scale != 1 {
		px = max(int(math.Round(float64(req.Size)*req.Scale)), 1)
	}
	return &artifact{out: &render.Exported{
		Format: render.Format(req.Format),
		Width:  px,
		Height: px,
		Bytes:  int64(len(data)),
		Data:   data,
	}}, true
}

func (r *Runner) produceAndStore(ctx context.Context, key string, req Request, res *Result) (*artifact, error) {
	a, err := r.produce(ctx, req, res.Layout)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Renders with placeholders are not cached so that a later run can
	// pick up the images once they load.
	if len(a.warnings) == 0 {
		if err := r.cache.Set(ctx, key, a.out.Data, r.ttl); err != nil {
			r.logger.Warn("artifact cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "artifact", len(a.out.Data))
		}
	}
	return a, nil
}
