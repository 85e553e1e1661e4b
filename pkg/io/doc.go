// Package io reads bead-set files and writes computed layouts.
//
// # Overview
//
// A bead set is an ordered list of beads plus the ring and render settings
// used to draw it. Files are TOML or JSON; [ImportBeads] chooses the decoder
// by extension.
//
// # TOML Format
//
//	[ring]
//	spacing = 0.5
//	mode = "arc"
//	size = 1024
//	format = "png"
//
//	[[bead]]
//	image = "https://cdn.example.com/amber.png"
//	diameter = 10
//
//	[[bead]]
//	image = "charms/heart.png"
//	diameter = 14
//	aspect_ratio = 1.5
//
//	[[bead]]
//	image = "charms/pendant.png"
//	diameter = 20
//	aspect_ratio = 2
//	floating = true
//	x = 0
//	y = 25
//
// The JSON form has the same fields, with the bead array under "beads":
//
//	{
//	  "ring": {"spacing": 0.5, "mode": "arc"},
//	  "beads": [
//	    {"image": "amber.png", "diameter": 10},
//	    {"image": "pendant.png", "diameter": 20, "floating": true, "x": 0, "y": 25}
//	  ]
//	}
//
// # Bead Fields
//
// Required:
//   - image: URL or local path of the bead image
//   - diameter: size in layout units, must be positive
//
// Optional:
//   - aspect_ratio: width ÷ height, 0 or omitted means 1
//   - floating: exclude the bead from the ring walk
//   - x, y: position of a floating bead (defaults to the ring center)
//
// Beads keep file order, which is the order they are walked around the ring.
// Reading does not validate geometry; the pipeline does that before layout
// so errors carry bead indices.
//
// # Layout Export
//
// [WriteLayoutJSON] and [ExportLayoutJSON] write a computed [ring.Layout],
// including every placement and the per-step angles, for external tools.
//
// [ring.Layout]: github.com/matzehuels/beadring/pkg/ring.Layout
package io
