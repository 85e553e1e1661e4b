package render

import (
	"image/color"

	"github.com/charmbracelet/log"
)

// Defaults for [New].
const (
	DefaultSize    = 1024
	DefaultPadding = 16.0
	MaxSize        = 16384
)

// DefaultPlaceholder is the fill for beads whose image is unavailable.
var DefaultPlaceholder color.Color = color.NRGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}

// Option configures a [Renderer].
type Option func(*Renderer)

// WithSize sets the edge length of the square surface in pixels.
func WithSize(px int) Option {
	return func(r *Renderer) { r.size = px }
}

// WithBackground sets the clear color (default transparent).
func WithBackground(c color.Color) Option {
	return func(r *Renderer) { r.background = c }
}

// WithPlaceholderColor sets the fill for fallback circles.
func WithPlaceholderColor(c color.Color) Option {
	return func(r *Renderer) { r.placeholder = c }
}

// WithPadding sets the margin kept free around the fitted layout, in pixels.
func WithPadding(px float64) Option {
	return func(r *Renderer) { r.padding = px }
}

// WithPixelsPerUnit fixes the unit-to-pixel ratio instead of fitting the
// layout to the surface. The layout center stays in the surface center.
func WithPixelsPerUnit(ppu float64) Option {
	return func(r *Renderer) { r.pixelsPerUnit = ppu }
}

// WithOnWarning registers a callback for recoverable per-bead failures.
func WithOnWarning(fn func(Warning)) Option {
	return func(r *Renderer) { r.onWarning = fn }
}

// WithLogger sets the logger for render diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}
