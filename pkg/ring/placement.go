package ring

import (
	"math"

	"github.com/matzehuels/beadring/pkg/bead"
)

// Placement is one bead positioned on (or above) the ring.
// All coordinates are in layout units (the unit of bead diameters).
type Placement struct {
	Index    int       `json:"index"`
	Bead     bead.Bead `json:"bead"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Angle    float64   `json:"angle"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Floating bool      `json:"floating,omitempty"`
}

// Radius returns the nominal radius used for fallback placeholders.
func (p Placement) Radius() float64 { return p.Bead.Diameter / 2 }

// Bounds returns the axis-aligned box covering the rotated render rectangle.
func (p Placement) Bounds() Rect {
	sin, cos := math.Sincos(p.Angle)
	hw := (math.Abs(p.Width*cos) + math.Abs(p.Height*sin)) / 2
	hh := (math.Abs(p.Width*sin) + math.Abs(p.Height*cos)) / 2
	return Rect{MinX: p.X - hw, MinY: p.Y - hh, MaxX: p.X + hw, MaxY: p.Y + hh}
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the horizontal span of the rectangle.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical span of the rectangle.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// CenterX returns the horizontal center point.
func (r Rect) CenterX() float64 { return (r.MinX + r.MaxX) / 2 }

// CenterY returns the vertical center point.
func (r Rect) CenterY() float64 { return (r.MinY + r.MaxY) / 2 }

// Union returns the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}
