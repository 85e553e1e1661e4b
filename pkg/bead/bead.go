package bead

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/beadring/pkg/errors"
)

// Point is a coordinate in layout units.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// Bead describes one element of a ring. The zero AspectRatio means 1.
type Bead struct {
	Image       string  `json:"image" toml:"image"`
	Diameter    float64 `json:"diameter" toml:"diameter"`
	AspectRatio float64 `json:"aspect_ratio,omitempty" toml:"aspect_ratio"`
	Floating    bool    `json:"floating,omitempty" toml:"floating"`

	// Position pins a floating bead. Ring beads ignore it.
	Position *Point `json:"position,omitempty" toml:"position"`
}

// Aspect returns the effective aspect ratio (width ÷ height).
func (b Bead) Aspect() float64 {
	if b.AspectRatio == 0 {
		return 1
	}
	return b.AspectRatio
}

// Width returns the arc width the bead occupies on the ring.
func (b Bead) Width() float64 { return b.Diameter * b.Aspect() }

// Validate checks the geometric invariants of b.
func (b Bead) Validate() error {
	if math.IsNaN(b.Diameter) || math.IsInf(b.Diameter, 0) || b.Diameter <= 0 {
		return errors.New(errors.ErrCodeDegenerateLayout, "diameter must be a positive number, got %v", b.Diameter)
	}
	if math.IsNaN(b.AspectRatio) || math.IsInf(b.AspectRatio, 0) || b.AspectRatio < 0 {
		return errors.New(errors.ErrCodeDegenerateLayout, "aspect ratio must be a non-negative number, got %v", b.AspectRatio)
	}
	if p := b.Position; p != nil {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return errors.New(errors.ErrCodeDegenerateLayout, "position must be finite")
		}
	}
	return nil
}

// ValidateAll validates every bead and reports the first failure with its index.
func ValidateAll(beads []Bead) error {
	for i, b := range beads {
		if err := b.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeDegenerateLayout, err, "bead %d", i)
		}
	}
	return nil
}

// Partition splits beads into ring and floating subsets, preserving the
// relative order within each.
func Partition(beads []Bead) (ring, floating []Bead) {
	for _, b := range beads {
		if b.Floating {
			floating = append(floating, b)
		} else {
			ring = append(ring, b)
		}
	}
	return ring, floating
}

// Images returns the distinct image sources in first-seen order.
func Images(beads []Bead) []string {
	seen := make(map[string]bool, len(beads))
	out := make([]string, 0, len(beads))
	for _, b := range beads {
		if b.Image == "" || seen[b.Image] {
			continue
		}
		seen[b.Image] = true
		out = append(out, b.Image)
	}
	return out
}

// Fingerprint returns a SHA-256 hex digest of the ordered bead list. Image
// sources are length-prefixed so separator characters inside them cannot
// alias a different list.
func Fingerprint(beads []Bead) string {
	var sb strings.Builder
	for i, b := range beads {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.Itoa(len(b.Image)))
		sb.WriteByte(':')
		sb.WriteString(b.Image)
		sb.WriteByte('|')
		sb.WriteString(strconv.FormatFloat(b.Diameter, 'g', -1, 64))
		sb.WriteByte('|')
		sb.WriteString(strconv.FormatFloat(b.Aspect(), 'g', -1, 64))
		sb.WriteByte('|')
		sb.WriteString(strconv.FormatBool(b.Floating))
		if b.Floating && b.Position != nil {
			sb.WriteByte('@')
			sb.WriteString(strconv.FormatFloat(b.Position.X, 'g', -1, 64))
			sb.WriteByte(',')
			sb.WriteString(strconv.FormatFloat(b.Position.Y, 'g', -1, 64))
		}
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
