package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/matzehuels/beadring/pkg/errors"
)

// Format is an export encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// DefaultJPEGQuality is used when ExportOptions.Quality is 0.
const DefaultJPEGQuality = 90

// ParseFormat accepts "png", "jpeg" and "jpg", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q (want png or jpeg)", s)
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// ExportOptions controls encoding and placement of the output file.
type ExportOptions struct {
	Format  Format
	Quality int     // JPEG quality 1-100
	Scale   float64 // output resolution = Size * Scale; 0 means 1
	Dir     string  // directory for generated names
	Prefix  string  // generated names are <Prefix>-<uuid>.<ext>
	Path    string  // explicit output path; overrides Dir and Prefix
}

// Exported describes a written image.
type Exported struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int64  `json:"bytes"`
	Data   []byte `json:"-"`
}

// Export encodes comp and writes it to disk.
func (r *Renderer) Export(ctx context.Context, comp *Composite, opts ExportOptions) (*Exported, error) {
	out, err := r.Encode(ctx, comp, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.Path = OutputPath(opts)
	if err := WriteFile(out.Path, out.Data); err != nil {
		return nil, err
	}
	r.logger.Debug("composite exported", "path", out.Path, "format", out.Format, "width", out.Width, "height", out.Height, "bytes", out.Bytes)
	return out, nil
}

// Encode resamples and encodes comp in memory. The returned Exported has
// no Path.
func (r *Renderer) Encode(ctx context.Context, comp *Composite, opts ExportOptions) (*Exported, error) {
	if comp == nil || comp.Image == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nothing to export")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}

	img := Resample(comp.Image, opts.Scale)

	var buf bytes.Buffer
	if err := Encode(&buf, img, opts.Format, opts.Quality); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &Exported{
		Format: opts.Format,
		Width:  b.Dx(),
		Height: b.Dy(),
		Bytes:  int64(buf.Len()),
		Data:   buf.Bytes(),
	}, nil
}

// Resample scales img by factor with a Lanczos filter. Factors of 0 or 1
// return img unchanged.
func Resample(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor == 1 {
		return img
	}
	b := img.Bounds()
	w := max(int(math.Round(float64(b.Dx())*factor)), 1)
	h := max(int(math.Round(float64(b.Dy())*factor)), 1)
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Encode writes img in the given format. JPEG output is flattened onto
// white since it carries no alpha channel.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatPNG:
		if err := imaging.Encode(w, img, imaging.PNG); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode png")
		}
	case FormatJPEG:
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		b := img.Bounds()
		flat := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), img, image.Pt(0, 0), 1.0)
		if err := imaging.Encode(w, flat, imaging.JPEG, imaging.JPEGQuality(min(quality, 100))); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode jpeg")
		}
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format)
	}
	return nil
}

// OutputPath returns opts.Path, or a fresh unique name under opts.Dir.
func OutputPath(opts ExportOptions) string {
	if opts.Path != "" {
		return opts.Path
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "beadring"
	}
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	return filepath.Join(opts.Dir, prefix+"-"+uuid.NewString()+"."+opts.Format.Ext())
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}
