// Package pkg provides the core libraries for beadring.
//
// # Overview
//
// Beadring arranges an ordered list of bead images around a circle and
// composites them into one picture. The pkg directory is organized as:
//
//  1. Geometry: [bead] (bead model and list edits), [ring] (layout engine)
//  2. Assets: [loader] (throttled task queue), [assets] (image cache),
//     [httputil] (fetching and retries)
//  3. Output: [render] (compositing and export), [io] (bead files and
//     layout JSON)
//  4. Orchestration: [pipeline] (validate → layout → resolve → render →
//     export), [cache] (artifact caches)
//  5. Support: [errors], [observability], [buildinfo]
//
// # Architecture
//
//	bead file (TOML/JSON)
//	         ↓
//	    [io] ImportBeads
//	         ↓
//	    [ring] Compute ─────────→ placements
//	         ↓
//	    [assets] ResolveEach ──→ [loader] Queue ──→ [httputil] Fetcher
//	         ↓
//	    [render] Render + Encode
//	         ↓
//	    PNG/JPEG file (+ [cache] artifact)
//
// # Quick Start
//
//	beads := []bead.Bead{
//	    {Image: "https://cdn.example.com/amber.png", Diameter: 10},
//	    {Image: "https://cdn.example.com/jade.png", Diameter: 10},
//	    {Image: "charms/heart.png", Diameter: 14, AspectRatio: 1.5},
//	}
//
//	runner, _ := pipeline.NewRunner(pipeline.Config{})
//	defer runner.Close()
//
//	res, err := runner.Generate(ctx, pipeline.Request{Beads: beads, OutputDir: "out"})
//	if err != nil {
//	    fmt.Println("generation failed, please retry:", res.Reason)
//	}
//
// Layout alone is a pure function:
//
//	l, _ := ring.Compute(beads, ring.Config{Mode: ring.ModeArc})
//	fmt.Println(l.Radius, len(l.Placements))
//
// # Concurrency
//
// [ring] and [bead] are pure and safe everywhere. [assets.Cache],
// [loader.Queue], [render.Renderer] and [pipeline.Runner] are safe for
// concurrent use and have explicit Close or Destroy lifecycles. The only
// process-wide state is the hook registry in [observability].
//
// [bead]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/bead
// [ring]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/ring
// [loader]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/loader
// [loader.Queue]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/loader#Queue
// [assets]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/assets
// [assets.Cache]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/assets#Cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/httputil
// [render]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/render
// [render.Renderer]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/render#Renderer
// [io]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/io
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/pipeline
// [pipeline.Runner]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/pipeline#Runner
// [cache]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/beadring/pkg/buildinfo
package pkg
