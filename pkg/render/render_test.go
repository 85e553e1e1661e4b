package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/beadring/pkg/assets"
	"github.com/matzehuels/beadring/pkg/bead"
	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/ring"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func handle(src string, data []byte) assets.Handle {
	return assets.Handle{Source: src, Data: data, Size: int64(len(data))}
}

// pixel returns the composite pixel under layout point (x, y).
func pixel(l ring.Layout, c *Composite, x, y float64) color.NRGBA {
	b := l.Bounds()
	px := float64(c.Size)/2 + (x-b.CenterX())*c.PixelsPerUnit
	py := float64(c.Size)/2 + (y-b.CenterY())*c.PixelsPerUnit
	return c.Image.NRGBAAt(int(math.Floor(px)), int(math.Floor(py)))
}

func near(got, want color.NRGBA) bool {
	d := func(a, b uint8) bool { return math.Abs(float64(a)-float64(b)) <= 8 }
	return d(got.R, want.R) && d(got.G, want.G) && d(got.B, want.B) && d(got.A, want.A)
}

func sixBeads() []bead.Bead {
	beads := make([]bead.Bead, 6)
	for i := range beads {
		beads[i] = bead.Bead{Image: "https://x/red.png", Diameter: 10}
	}
	return beads
}

func TestRenderEmptyLayout(t *testing.T) {
	r := New(WithSize(64), WithBackground(color.White))
	comp, err := r.Render(context.Background(), ring.Layout{}, Resolved{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b := comp.Image.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("bounds = %v, want 64x64", b)
	}
	if got := comp.Image.NRGBAAt(10, 10); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("background = %v, want white", got)
	}
}

func TestRenderDrawsEveryBead(t *testing.T) {
	l, err := ring.Compute(sixBeads(), ring.Config{Mode: ring.ModeArc})
	if err != nil {
		t.Fatal(err)
	}
	images := Resolved{Handles: map[string]assets.Handle{
		"https://x/red.png": handle("https://x/red.png", solidPNG(t, red)),
	}}

	comp, err := New(WithSize(200)).Render(context.Background(), l, images)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if comp.Drawn != 6 || len(comp.Warnings) != 0 {
		t.Errorf("drawn=%d warnings=%d, want 6/0", comp.Drawn, len(comp.Warnings))
	}
	for _, p := range l.Placements {
		if got := pixel(l, comp, p.X, p.Y); !near(got, red) {
			t.Errorf("bead %d pixel = %v, want red", p.Index, got)
		}
	}
	if got := pixel(l, comp, 0, 0); got.A != 0 {
		t.Errorf("ring center = %v, want transparent", got)
	}
}

func TestRenderFetchFailureDrawsPlaceholder(t *testing.T) {
	beads := sixBeads()
	beads[2].Image = "https://x/missing.png"
	l, _ := ring.Compute(beads, ring.Config{Mode: ring.ModeArc})

	images := Resolved{
		Handles: map[string]assets.Handle{"https://x/red.png": handle("https://x/red.png", solidPNG(t, red))},
		Failed:  map[string]error{"https://x/missing.png": errors.New(errors.ErrCodeFetchFailed, "404")},
	}

	var seen []Warning
	r := New(WithSize(200), WithOnWarning(func(w Warning) { seen = append(seen, w) }))
	comp, err := r.Render(context.Background(), l, images)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if len(comp.Warnings) != 1 || len(seen) != 1 {
		t.Fatalf("warnings = %d, callback = %d, want 1/1", len(comp.Warnings), len(seen))
	}
	w := comp.Warnings[0]
	if w.Index != 2 || w.Code != errors.ErrCodeFetchFailed || w.Source != "https://x/missing.png" {
		t.Errorf("warning = %+v", w)
	}

	p := l.Placements[2]
	want := color.NRGBAModel.Convert(DefaultPlaceholder).(color.NRGBA)
	if got := pixel(l, comp, p.X, p.Y); !near(got, want) {
		t.Errorf("placeholder pixel = %v, want %v", got, want)
	}
	if comp.Drawn != 5 {
		t.Errorf("drawn = %d, want 5", comp.Drawn)
	}
}

func TestRenderDecodeFailure(t *testing.T) {
	l, _ := ring.Compute([]bead.Bead{{Image: "https://x/garbage", Diameter: 10}}, ring.Config{})
	images := Resolved{Handles: map[string]assets.Handle{
		"https://x/garbage": handle("https://x/garbage", []byte("not an image")),
	}}

	comp, err := New(WithSize(64)).Render(context.Background(), l, images)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(comp.Warnings) != 1 || comp.Warnings[0].Code != errors.ErrCodeDecodeFailed {
		t.Errorf("warnings = %+v, want one DECODE_FAILED", comp.Warnings)
	}
}

func TestRenderUnknownSourceIsFetchFailure(t *testing.T) {
	l, _ := ring.Compute([]bead.Bead{{Image: "https://x/none.png", Diameter: 10}}, ring.Config{})
	comp, err := New(WithSize(64)).Render(context.Background(), l, Resolved{})
	if err != nil {
		t.Fatal(err)
	}
	if len(comp.Warnings) != 1 || comp.Warnings[0].Code != errors.ErrCodeFetchFailed {
		t.Errorf("warnings = %+v, want one FETCH_FAILED", comp.Warnings)
	}
}

func TestRenderFloatingDrawnOnTop(t *testing.T) {
	ringBead := bead.Bead{Image: "https://x/red.png", Diameter: 10}
	r := ring.Radius([]bead.Bead{ringBead}, 0)
	beads := []bead.Bead{
		{Image: "https://x/blue.png", Diameter: 4, Floating: true, Position: &bead.Point{X: r, Y: 0}},
		ringBead,
	}
	l, err := ring.Compute(beads, ring.Config{})
	if err != nil {
		t.Fatal(err)
	}
	images := Resolved{Handles: map[string]assets.Handle{
		"https://x/red.png":  handle("https://x/red.png", solidPNG(t, red)),
		"https://x/blue.png": handle("https://x/blue.png", solidPNG(t, blue)),
	}}

	comp, err := New(WithSize(128)).Render(context.Background(), l, images)
	if err != nil {
		t.Fatal(err)
	}
	if got := pixel(l, comp, r, 0); !near(got, blue) {
		t.Errorf("overlap pixel = %v, want floating bead color", got)
	}
}

func TestRenderCancelled(t *testing.T) {
	l, _ := ring.Compute(sixBeads(), ring.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(WithSize(64)).Render(ctx, l, Resolved{})
	if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Errorf("err = %v, want CANCELLED", err)
	}
}

func TestRenderInvalidSize(t *testing.T) {
	_, err := New(WithSize(0)).Render(context.Background(), ring.Layout{}, Resolved{})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestSurfaceReuseStartsClean(t *testing.T) {
	r := New(WithSize(100))
	l, _ := ring.Compute(sixBeads(), ring.Config{})
	images := Resolved{Handles: map[string]assets.Handle{
		"https://x/red.png": handle("https://x/red.png", solidPNG(t, red)),
	}}
	first, _ := r.Render(context.Background(), l, images)

	second, err := r.Render(context.Background(), ring.Layout{}, Resolved{})
	if err != nil {
		t.Fatal(err)
	}
	p := l.Placements[0]
	if got := pixel(l, first, p.X, p.Y); !near(got, red) {
		t.Fatalf("first render pixel = %v, want red", got)
	}
	b := l.Bounds()
	px := int(float64(first.Size)/2 + (p.X-b.CenterX())*first.PixelsPerUnit)
	py := int(float64(first.Size)/2 + (p.Y-b.CenterY())*first.PixelsPerUnit)
	if got := second.Image.NRGBAAt(px, py); got.A != 0 {
		t.Errorf("reused surface kept old pixels: %v", got)
	}
}

func TestFixedPixelsPerUnit(t *testing.T) {
	l, _ := ring.Compute(sixBeads(), ring.Config{})
	comp, err := New(WithSize(64), WithPixelsPerUnit(2)).Render(context.Background(), l, Resolved{})
	if err != nil {
		t.Fatal(err)
	}
	if comp.PixelsPerUnit != 2 {
		t.Errorf("PixelsPerUnit = %v, want 2", comp.PixelsPerUnit)
	}
}

func TestExportPNGScaled(t *testing.T) {
	r := New(WithSize(50))
	comp, _ := r.Render(context.Background(), ring.Layout{}, Resolved{})
	dir := t.TempDir()

	out, err := r.Export(context.Background(), comp, ExportOptions{Format: FormatPNG, Scale: 2, Dir: dir, Prefix: "ring"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if out.Width != 100 || out.Height != 100 {
		t.Errorf("size = %dx%d, want 100x100", out.Width, out.Height)
	}
	if filepath.Dir(out.Path) != dir || !strings.HasPrefix(filepath.Base(out.Path), "ring-") || filepath.Ext(out.Path) != ".png" {
		t.Errorf("path = %s", out.Path)
	}

	f, err := os.Open(out.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 100 {
		t.Errorf("decoded width = %d, want 100", cfg.Width)
	}
	if out.Bytes != int64(len(out.Data)) {
		t.Errorf("Bytes = %d, len(Data) = %d", out.Bytes, len(out.Data))
	}
}

func TestExportJPEGExplicitPath(t *testing.T) {
	r := New(WithSize(32))
	comp, _ := r.Render(context.Background(), ring.Layout{}, Resolved{})
	path := filepath.Join(t.TempDir(), "nested", "out.jpg")

	out, err := r.Export(context.Background(), comp, ExportOptions{Format: FormatJPEG, Quality: 80, Path: path})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if out.Path != path || out.Format != FormatJPEG {
		t.Errorf("out = %+v", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("output is not a JPEG")
	}
}

func TestExportUniqueNames(t *testing.T) {
	opts := ExportOptions{Dir: "out"}
	if OutputPath(opts) == OutputPath(opts) {
		t.Error("generated names should differ")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"", FormatPNG, false},
		{"JPG", FormatJPEG, false},
		{"jpeg", FormatJPEG, false},
		{"gif", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidFormat) {
			t.Errorf("ParseFormat(%q) code = %s", tt.in, errors.GetCode(err))
		}
	}
}

func TestDecodeLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bead.png")
	if err := os.WriteFile(path, solidPNG(t, blue), 0o644); err != nil {
		t.Fatal(err)
	}
	img, err := Decode(assets.Handle{Source: path, Path: path})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("width = %d, want 8", img.Bounds().Dx())
	}

	_, err = Decode(assets.Handle{Source: "nope", Path: filepath.Join(t.TempDir(), "nope.png")})
	if !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Errorf("missing file err = %v, want FETCH_FAILED", err)
	}
}

func TestSizedKeepsOptions(t *testing.T) {
	r := New(WithSize(64), WithBackground(color.White))
	big := r.Sized(128)
	if big.Size() != 128 || r.Size() != 64 {
		t.Fatalf("sizes = %d/%d, want 128/64", big.Size(), r.Size())
	}
	comp, err := big.Render(context.Background(), ring.Layout{}, Resolved{})
	if err != nil {
		t.Fatal(err)
	}
	if got := comp.Image.NRGBAAt(100, 100); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("background = %v, want white", got)
	}
}
