// Package bead defines the input model of a bead ring.
//
// A [Bead] is an immutable description of one decorative element: the image
// that depicts it, its physical diameter, the aspect ratio of the rendered
// image, and whether it floats above the ring instead of consuming arc length.
//
// # Editing
//
// Rings are edited by producing new bead lists, never by patching computed
// positions. Every helper in this package returns a fresh slice and leaves
// its input untouched:
//
//	ring = bead.RotateClockwise(ring, 1)  // last bead becomes first
//	ring = bead.Remove(ring, 3)
//	layout, err := ring.Compute(ring, cfg) // always a full re-layout
//
// # Fingerprints
//
// [Fingerprint] derives a deterministic, order-sensitive key from a bead list.
// Two lists produce the same fingerprint exactly when every bead matches in
// image, diameter, aspect ratio, and floating flag, in the same order. The
// generation pipeline keys whole-render results by it.
package bead
