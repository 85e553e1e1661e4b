package ring

import (
	"math"

	"github.com/matzehuels/beadring/pkg/bead"
	"github.com/matzehuels/beadring/pkg/errors"
)

// Mode selects how neighbour separation converts to a central angle.
type Mode string

const (
	// ModeArc uses θ = L/R. The walk closes at exactly one full turn.
	ModeArc Mode = "arc"
	// ModeChord uses θ = 2·asin(L/2R). It does not close exactly; the
	// residual is reported by [Layout.Drift]. Rings of two or three beads
	// saturate the asin and overlap.
	ModeChord Mode = "chord"
)

// ParseMode maps a name to a Mode. The empty string selects ModeArc.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeArc:
		return ModeArc, nil
	case ModeChord:
		return ModeChord, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown layout mode %q (want chord or arc)", s)
}

// Config positions the ring. The zero Config centers the ring on the origin
// with tangent beads.
type Config struct {
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Spacing float64 `json:"spacing"`
	Mode    Mode    `json:"mode,omitempty"`
}

// Layout is the result of [Compute].
type Layout struct {
	Config     Config      `json:"config"`
	Radius     float64     `json:"radius"`
	Placements []Placement `json:"placements"`

	// Steps holds the central angle of every step of the ring walk, in ring
	// order. It is empty for rings of fewer than two beads.
	Steps []float64 `json:"steps,omitempty"`
}

// Drift returns how far the accumulated ring angle misses a full turn.
// It is zero for rings of fewer than two beads.
func (l Layout) Drift() float64 {
	if len(l.Steps) == 0 {
		return 0
	}
	var sum float64
	for _, s := range l.Steps {
		sum += s
	}
	return sum - 2*math.Pi
}

// Ring returns the placements of ring beads in ring order.
func (l Layout) Ring() []Placement {
	out := make([]Placement, 0, len(l.Placements))
	for _, p := range l.Placements {
		if !p.Floating {
			out = append(out, p)
		}
	}
	return out
}

// Floating returns the placements of floating beads in input order.
func (l Layout) Floating() []Placement {
	var out []Placement
	for _, p := range l.Placements {
		if p.Floating {
			out = append(out, p)
		}
	}
	return out
}

// Bounds returns the extent of all placements. An empty layout yields a
// zero-size rectangle at the ring center.
func (l Layout) Bounds() Rect {
	if len(l.Placements) == 0 {
		return Rect{MinX: l.Config.CenterX, MinY: l.Config.CenterY, MaxX: l.Config.CenterX, MaxY: l.Config.CenterY}
	}
	r := l.Placements[0].Bounds()
	for _, p := range l.Placements[1:] {
		r = r.Union(p.Bounds())
	}
	return r
}

// Compute lays out beads on a ring. Placements are returned in input order.
// Invalid beads or a negative spacing yield a DEGENERATE_LAYOUT error; an
// empty list yields an empty layout.
func Compute(beads []bead.Bead, cfg Config) (Layout, error) {
	if math.IsNaN(cfg.Spacing) || math.IsInf(cfg.Spacing, 0) || cfg.Spacing < 0 {
		return Layout{}, errors.New(errors.ErrCodeDegenerateLayout, "spacing must be a non-negative number, got %v", cfg.Spacing)
	}
	if !finite(cfg.CenterX) || !finite(cfg.CenterY) {
		return Layout{}, errors.New(errors.ErrCodeDegenerateLayout, "ring center must be finite")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeArc
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return Layout{}, err
	}
	if err := bead.ValidateAll(beads); err != nil {
		return Layout{}, err
	}

	l := Layout{Config: cfg, Placements: make([]Placement, len(beads))}

	var ringIdx []int
	for i, b := range beads {
		if !b.Floating {
			ringIdx = append(ringIdx, i)
		}
	}

	l.Radius = Radius(beads, cfg.Spacing)
	l.Steps = walk(beads, ringIdx, cfg, l.Radius, l.Placements)

	for i, b := range beads {
		if b.Floating {
			l.Placements[i] = placeFloating(i, b, cfg)
		}
	}
	return l, nil
}

// Radius returns the ring radius implied by the non-floating beads.
func Radius(beads []bead.Bead, spacing float64) float64 {
	var arc float64
	for _, b := range beads {
		if !b.Floating {
			arc += b.Width() + spacing
		}
	}
	return arc / (2 * math.Pi)
}

// walk places the ring beads named by idx and returns the per-step angles.
func walk(beads []bead.Bead, idx []int, cfg Config, r float64, out []Placement) []float64 {
	n := len(idx)
	switch n {
	case 0:
		return nil
	case 1:
		out[idx[0]] = placeRing(idx[0], beads[idx[0]], cfg, r, 0)
		return nil
	}

	steps := make([]float64, n)
	angle := 0.0
	for k, i := range idx {
		out[i] = placeRing(i, beads[i], cfg, r, angle)

		next := beads[idx[(k+1)%n]]
		l := beads[i].Width()/2 + next.Width()/2 + cfg.Spacing
		steps[k] = stepAngle(cfg.Mode, l, r)
		angle += steps[k]
	}
	return steps
}

func stepAngle(mode Mode, l, r float64) float64 {
	if mode == ModeChord {
		return 2 * math.Asin(clamp(l/(2*r), -1, 1))
	}
	return l / r
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func placeRing(i int, b bead.Bead, cfg Config, r, angle float64) Placement {
	sin, cos := math.Sincos(angle)
	return Placement{
		Index:  i,
		Bead:   b,
		X:      cfg.CenterX + r*cos,
		Y:      cfg.CenterY + r*sin,
		Angle:  angle + math.Pi/2,
		Width:  b.Width(),
		Height: b.Diameter,
	}
}

func placeFloating(i int, b bead.Bead, cfg Config) Placement {
	x, y := cfg.CenterX, cfg.CenterY
	if b.Position != nil {
		x, y = b.Position.X, b.Position.Y
	}
	h := b.Diameter
	return Placement{
		Index:    i,
		Bead:     b,
		X:        x,
		Y:        y,
		Width:    2 * h * b.Aspect(),
		Height:   h,
		Floating: true,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
