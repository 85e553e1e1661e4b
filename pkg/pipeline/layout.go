package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/beadring/pkg/observability"
	"github.com/matzehuels/beadring/pkg/ring"
)

// ComputeLayout validates the layout half of req and places its beads.
func ComputeLayout(ctx context.Context, req Request) (ring.Layout, error) {
	if err := req.ValidateForLayout(); err != nil {
		return ring.Layout{}, err
	}

	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, len(req.Beads))
	start := time.Now()

	l, err := ring.Compute(req.Beads, req.RingConfig())
	hooks.OnLayoutComplete(ctx, len(l.Placements), time.Since(start), err)
	return l, err
}
