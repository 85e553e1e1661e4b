package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/beadring/pkg/ring"
)

func toFile(bf *BeadFile) file {
	out := file{Ring: bf.Ring, Beads: make([]fileBead, len(bf.Beads))}
	for i, b := range bf.Beads {
		fb := fileBead{
			Image:       b.Image,
			Diameter:    b.Diameter,
			AspectRatio: b.AspectRatio,
			Floating:    b.Floating,
		}
		if p := b.Position; p != nil {
			x, y := p.X, p.Y
			fb.X, fb.Y = &x, &y
		}
		out.Beads[i] = fb
	}
	return out
}

// WriteTOML encodes bf as a TOML bead file. The output can be re-read with
// [ReadTOML].
func WriteTOML(w io.Writer, bf *BeadFile) error {
	if err := toml.NewEncoder(w).Encode(toFile(bf)); err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	return nil
}

// WriteJSON encodes bf as an indented JSON bead file.
func WriteJSON(w io.Writer, bf *BeadFile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toFile(bf)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// ExportBeads writes bf to path in the format implied by its extension.
// Anything other than .json is written as TOML.
func ExportBeads(path string, bf *BeadFile) error {
	write := WriteTOML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		write = WriteJSON
	}
	return writeFile(path, func(w io.Writer) error { return write(w, bf) })
}

// WriteLayoutJSON encodes a computed layout as indented JSON.
func WriteLayoutJSON(w io.Writer, l ring.Layout) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportLayoutJSON writes a computed layout to path.
func ExportLayoutJSON(path string, l ring.Layout) error {
	return writeFile(path, func(w io.Writer) error { return WriteLayoutJSON(w, l) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
