// Package ring computes circular bead layouts.
//
// # Overview
//
// [Compute] turns an ordered bead list into a [Layout]: the ring radius and a
// [Placement] for every bead with its center, orientation, and render size.
// It is a pure function of its inputs; calling it twice with the same beads
// yields identical coordinates.
//
// # Radius
//
// Only ring beads (non-floating) contribute to the radius. Each occupies an
// arc width w = diameter × aspect ratio. The total arc length is
//
//	A = Σ (wᵢ + spacing)
//
// and the radius is R = A / 2π. A ring with no ring beads has radius 0.
//
// # Angular Walk
//
// Beads are walked in order starting at angle 0. For bead i and its successor
// (wrapping around), the combined half-widths L = wᵢ/2 + wᵢ₊₁/2 + spacing
// convert to a central angle θ. Bead i sits at the angle reached before its
// own step is added.
//
// Two relations are available through [Config.Mode]:
//
//   - [ModeArc] (default): θ = L / R. L is treated as arc length, so the walk
//     closes at exactly 2π and identical beads sit at equal 2π/n intervals.
//   - [ModeChord]: θ = 2·asin(min(1, L / 2R)). L is treated as the
//     straight-line distance between neighbouring centers. Because R is derived
//     from arc length, the accumulated angle overshoots 2π; the drift is
//     reported by [Layout.Drift] and left uncorrected. With two or three beads
//     the asin saturates at π and beads overlap.
//
// # Orientation
//
// Each ring bead's Angle is its position angle plus π/2, which lays the
// bead's local vertical axis along the radius through its center. A source
// image whose thread hole runs vertically therefore always faces the center,
// wherever the bead sits on the circle.
//
// # Floating Beads
//
// Floating beads overlay the ring without consuming arc length. They are
// placed at their own [bead.Point] when given, otherwise at the ring center,
// and are sized from height: Height = diameter, Width = 2·Height·aspect.
//
// # Edits
//
// There is no incremental update. Rotating, inserting, or removing a bead
// changes every downstream angle, so callers edit the bead list with the
// helpers in package bead and call [Compute] again.
package ring
