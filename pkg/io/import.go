package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/beadring/pkg/bead"
	"github.com/matzehuels/beadring/pkg/errors"
)

// RingSettings holds the optional [ring] table of a bead file. Zero values
// mean "use the default".
type RingSettings struct {
	Spacing float64 `json:"spacing,omitempty" toml:"spacing,omitempty"`
	Mode    string  `json:"mode,omitempty" toml:"mode,omitempty"`
	Size    int     `json:"size,omitempty" toml:"size,omitempty"`
	Scale   float64 `json:"scale,omitempty" toml:"scale,omitempty"`
	Format  string  `json:"format,omitempty" toml:"format,omitempty"`
}

// BeadFile is a decoded bead set.
type BeadFile struct {
	Ring  RingSettings
	Beads []bead.Bead
}

type file struct {
	Ring  RingSettings `json:"ring" toml:"ring"`
	Beads []fileBead   `json:"beads" toml:"bead"`
}

type fileBead struct {
	Image       string   `json:"image" toml:"image"`
	Diameter    float64  `json:"diameter" toml:"diameter"`
	AspectRatio float64  `json:"aspect_ratio,omitempty" toml:"aspect_ratio,omitempty"`
	Floating    bool     `json:"floating,omitempty" toml:"floating,omitempty"`
	X           *float64 `json:"x,omitempty" toml:"x,omitempty"`
	Y           *float64 `json:"y,omitempty" toml:"y,omitempty"`
}

func (f file) beadFile() *BeadFile {
	out := &BeadFile{Ring: f.Ring, Beads: make([]bead.Bead, len(f.Beads))}
	for i, fb := range f.Beads {
		b := bead.Bead{
			Image:       fb.Image,
			Diameter:    fb.Diameter,
			AspectRatio: fb.AspectRatio,
			Floating:    fb.Floating,
		}
		if fb.X != nil || fb.Y != nil {
			p := bead.Point{}
			if fb.X != nil {
				p.X = *fb.X
			}
			if fb.Y != nil {
				p.Y = *fb.Y
			}
			b.Position = &p
		}
		out.Beads[i] = b
	}
	return out
}

// ReadTOML decodes a TOML bead file from r. Unknown keys are rejected so
// that typos such as "diamter" do not silently produce zero values.
func ReadTOML(r io.Reader) (*BeadFile, error) {
	var data file
	md, err := toml.NewDecoder(r).Decode(&data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode toml")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown key %q", undecoded[0].String())
	}
	return data.beadFile(), nil
}

// ReadJSON decodes a JSON bead file from r. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*BeadFile, error) {
	var data file
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode json")
	}
	return data.beadFile(), nil
}

// ImportBeads reads the bead file at path, choosing the decoder by
// extension (.toml or .json).
func ImportBeads(path string) (*BeadFile, error) {
	var read func(io.Reader) (*BeadFile, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		read = ReadTOML
	case ".json":
		read = ReadJSON
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported bead file %s (want .toml or .json)", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bf, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bf, nil
}
