package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/beadring/pkg/bead"
	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/observability"
	"github.com/matzehuels/beadring/pkg/render"
	"github.com/matzehuels/beadring/pkg/ring"
)

// artifact is an encoded render shared by concurrent identical generations.
type artifact struct {
	out      *render.Exported
	warnings []render.Warning
	stats    Stats
}

// produce resolves images, renders l and encodes the result. Per-bead asset
// failures become warnings; cancellation and other fatal errors abort.
func (r *Runner) produce(ctx context.Context, req Request, l ring.Layout) (*artifact, error) {
	hooks := observability.Pipeline()
	var stats Stats

	srcs := bead.Images(req.Beads)
	stats.Sources = len(srcs)
	hooks.OnResolveStart(ctx, len(srcs))
	start := time.Now()
	handles, failed := r.assets.ResolveEach(ctx, srcs)
	stats.ResolveTime = time.Since(start)
	stats.FailedSources = len(failed)
	hooks.OnResolveComplete(ctx, len(failed), stats.ResolveTime)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, src := range srcs {
		if err, ok := failed[src]; ok && errors.IsFatal(err) {
			return nil, err
		}
	}

	format := req.Format
	hooks.OnRenderStart(ctx, format)
	start = time.Now()
	comp, err := r.renderer.Sized(req.Size).Render(ctx, l, render.Resolved{Handles: handles, Failed: failed})
	if err == nil {
		var out *render.Exported
		out, err = r.renderer.Encode(ctx, comp, req.ExportOptions())
		if err == nil {
			stats.RenderTime = time.Since(start)
			stats.Bytes = out.Bytes
			hooks.OnRenderComplete(ctx, format, stats.RenderTime, nil)
			return &artifact{out: out, warnings: comp.Warnings, stats: stats}, nil
		}
	}
	hooks.OnRenderComplete(ctx, format, time.Since(start), err)
	return nil, err
}
