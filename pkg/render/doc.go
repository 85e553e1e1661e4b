// Package render composites a computed ring layout into a raster image and
// exports it.
//
// # Overview
//
// A [Renderer] owns a pool of drawing surfaces keyed by size. Each call to
// [Renderer.Render] takes one surface, clears it, fits the layout's bounds
// into it and draws every bead:
//
//  1. Ring beads in their original relative order
//  2. Floating beads on top, in their original relative order
//
// Every bead is drawn by translating to its position, rotating by its
// orientation angle and scaling the decoded image to the bead's render size.
//
//	r := render.New(render.WithSize(1024))
//	comp, err := r.Render(ctx, layout, render.Resolved{Handles: handles, Failed: failed})
//	out, err := r.Export(ctx, comp, render.ExportOptions{Format: render.FormatPNG, Dir: "out"})
//
// # Fallbacks
//
// A bead whose image failed to load or decode is drawn as a solid circle of
// the bead's diameter at its position. The failure is recorded as a
// [Warning] on the [Composite] and reported to the [WithOnWarning] callback;
// it never aborts the render.
//
// # Formats
//
// Decoding accepts PNG, JPEG, GIF, BMP and WebP and honors EXIF
// orientation. Export writes PNG or JPEG, optionally resampled by a scale
// factor with a Lanczos filter.
//
// The renderer does not cache results; see the pipeline package for that.
package render
