package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/beadring/pkg/assets"
	"github.com/matzehuels/beadring/pkg/bead"
	"github.com/matzehuels/beadring/pkg/cache"
	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/httputil"
	"github.com/matzehuels/beadring/pkg/observability"
	"github.com/matzehuels/beadring/pkg/ring"
)

func pngBytes(t *testing.T, c color.Color) []byte {
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

// imageServer serves one PNG for every source except those in missing.
type imageServer struct {
	data    []byte
	missing map[string]bool
	gate    chan struct{}
	calls   atomic.Int32
}

func (s *imageServer) Fetch(ctx context.Context, src string) ([]byte, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.missing[src] {
		return nil, errors.New(errors.ErrCodeNotFound, "%s not found", src)
	}
	return s.data, nil
}

func newTestRunner(t *testing.T, f httputil.Fetcher) (*Runner, *cache.FileCache) {
	t.Helper()
	ac := assets.New(assets.Options{Fetcher: f, Retry: httputil.Policy{Attempts: 1}})
	t.Cleanup(func() { ac.Close() })

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRunner(Config{Assets: ac, Cache: fc})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r, fc
}

func testBeads(srcs ...string) []bead.Bead {
	beads := make([]bead.Bead, len(srcs))
	for i, src := range srcs {
		beads[i] = bead.Bead{Image: src, Diameter: 10}
	}
	return beads
}

func TestRequestValidate(t *testing.T) {
	good := testBeads("a.png", "b.png")
	tests := []struct {
		name string
		req  Request
		code errors.Code
	}{
		{"defaults", Request{Beads: good}, ""},
		{"jpg alias", Request{Beads: good, Format: "jpg"}, ""},
		{"chord mode", Request{Beads: good, Mode: ring.ModeChord}, ""},
		{"no beads", Request{}, errors.ErrCodeDegenerateLayout},
		{"zero diameter", Request{Beads: []bead.Bead{{Image: "a.png"}}}, errors.ErrCodeDegenerateLayout},
		{"negative spacing", Request{Beads: good, Spacing: -1}, errors.ErrCodeDegenerateLayout},
		{"empty image", Request{Beads: []bead.Bead{{Diameter: 5}}}, errors.ErrCodeInvalidInput},
		{"unknown format", Request{Beads: good, Format: "gif"}, errors.ErrCodeInvalidFormat},
		{"size too large", Request{Beads: good, Size: 1 << 20}, errors.ErrCodeInvalidInput},
		{"negative scale", Request{Beads: good, Scale: -2}, errors.ErrCodeInvalidInput},
		{"bad quality", Request{Beads: good, Format: "jpeg", Quality: 101}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.ValidateAndSetDefaults()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if req.Size != DefaultSize || req.Scale != DefaultScale || req.Format == "" {
					t.Errorf("defaults not applied: %+v", req)
				}
				if tt.req.Mode == "" && req.Mode != ring.ModeArc {
					t.Errorf("mode = %q, want arc", req.Mode)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestArtifactKeyOptsIgnoresPNGQuality(t *testing.T) {
	a := Request{Beads: testBeads("a.png"), Quality: 50}
	b := Request{Beads: testBeads("a.png"), Quality: 90}
	for _, r := range []*Request{&a, &b} {
		if err := r.ValidateAndSetDefaults(); err != nil {
			t.Fatal(err)
		}
	}
	if a.ArtifactKeyOpts() != b.ArtifactKeyOpts() {
		t.Error("PNG keys should not depend on quality")
	}
}

func TestGenerateWritesOutput(t *testing.T) {
	srv := &imageServer{data: pngBytes(t, color.NRGBA{R: 255, A: 255})}
	r, _ := newTestRunner(t, srv)
	dir := t.TempDir()

	req := Request{
		Beads:     testBeads("https://img.test/a.png", "https://img.test/b.png", "https://img.test/a.png"),
		Size:      64,
		OutputDir: dir,
	}
	res, err := r.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Status != StatusSuccess || res.CacheHit {
		t.Errorf("status = %s, cacheHit = %v", res.Status, res.CacheHit)
	}
	if res.Width != 64 || res.Height != 64 {
		t.Errorf("dimensions = %dx%d, want 64x64", res.Width, res.Height)
	}
	if len(res.Layout.Placements) != 3 {
		t.Errorf("placements = %d, want 3", len(res.Layout.Placements))
	}
	if res.Stats.Sources != 2 {
		t.Errorf("sources = %d, want 2", res.Stats.Sources)
	}
	if got := srv.calls.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
	info, err := os.Stat(res.Path)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if info.Size() != res.Stats.Bytes {
		t.Errorf("file size = %d, stats bytes = %d", info.Size(), res.Stats.Bytes)
	}
}

func TestGenerateCacheHit(t *testing.T) {
	srv := &imageServer{data: pngBytes(t, color.NRGBA{B: 255, A: 255})}
	r, _ := newTestRunner(t, srv)
	dir := t.TempDir()

	req := Request{Beads: testBeads("https://img.test/a.png"), Size: 32, Scale: 2, OutputDir: dir}
	first, err := r.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	r.Assets().Purge()

	second, err := r.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Error("second generation should hit the artifact cache")
	}
	if got := srv.calls.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
	if second.Path == first.Path {
		t.Error("cache hit should still write a new file")
	}
	if second.Width != 64 || second.Width != first.Width {
		t.Errorf("width = %d, first = %d, want 64", second.Width, first.Width)
	}
	a, _ := os.ReadFile(first.Path)
	b, _ := os.ReadFile(second.Path)
	if !bytes.Equal(a, b) {
		t.Error("cached output differs from original render")
	}

	req.Refresh = true
	third, err := r.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheHit {
		t.Error("refresh should bypass the artifact cache")
	}
}

func TestGenerateFetchFailureWarns(t *testing.T) {
	srv := &imageServer{
		data:    pngBytes(t, color.NRGBA{G: 255, A: 255}),
		missing: map[string]bool{"https://img.test/gone.png": true},
	}
	r, _ := newTestRunner(t, srv)

	req := Request{
		Beads:     testBeads("https://img.test/a.png", "https://img.test/gone.png"),
		Size:      48,
		OutputDir: t.TempDir(),
	}
	res, err := r.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("status = %s", res.Status)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Index != 1 {
		t.Fatalf("warnings = %v, want one for bead 1", res.Warnings)
	}
	if !errors.Is(res.Warnings[0].Err, errors.ErrCodeFetchFailed) {
		t.Errorf("warning err = %v", res.Warnings[0].Err)
	}
	if res.Stats.FailedSources != 1 {
		t.Errorf("failed sources = %d", res.Stats.FailedSources)
	}

	again, err := r.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if again.CacheHit {
		t.Error("renders with placeholders must not be cached")
	}
}

func TestGenerateFailures(t *testing.T) {
	srv := &imageServer{data: pngBytes(t, color.White)}
	r, _ := newTestRunner(t, srv)

	tests := []struct {
		name string
		req  Request
		code errors.Code
	}{
		{"empty", Request{OutputDir: t.TempDir()}, errors.ErrCodeDegenerateLayout},
		{"format", Request{Beads: testBeads("https://img.test/a.png"), Format: "tiff"}, errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Generate(context.Background(), tt.req)
			if !errors.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if res == nil || res.Status != StatusError || res.Reason == "" {
				t.Errorf("result = %+v, want error status with reason", res)
			}
			if res.GenerationID == "" {
				t.Error("failed generations still carry an id")
			}
		})
	}
}

func TestGenerateCancelledIsNotCached(t *testing.T) {
	srv := &imageServer{data: pngBytes(t, color.Black)}
	r, _ := newTestRunner(t, srv)

	req := Request{Beads: testBeads("https://img.test/a.png"), Size: 32, OutputDir: t.TempDir()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Generate(ctx, req)
	if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Fatalf("err = %v, want CANCELLED", err)
	}
	if res.Status != StatusError {
		t.Errorf("status = %s", res.Status)
	}

	next, err := r.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if next.CacheHit {
		t.Error("cancelled generation must not populate the cache")
	}
}

type renderCounter struct {
	observability.NoopPipelineHooks
	renders atomic.Int32
}

func (c *renderCounter) OnRenderStart(context.Context, string) { c.renders.Add(1) }

func TestGenerateDeduplicatesInFlight(t *testing.T) {
	counter := &renderCounter{}
	observability.SetPipelineHooks(counter)
	t.Cleanup(observability.Reset)

	srv := &imageServer{data: pngBytes(t, color.White), gate: make(chan struct{})}
	r, _ := newTestRunner(t, srv)
	dir := t.TempDir()
	req := Request{Beads: testBeads("https://img.test/a.png"), Size: 32, OutputDir: dir}

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Generate(context.Background(), req)
			if err != nil {
				t.Errorf("Generate: %v", err)
			}
			results[i] = res
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(srv.gate)
	wg.Wait()

	if got := counter.renders.Load(); got != 1 {
		t.Errorf("renders = %d, want 1", got)
	}
	if results[0] == nil || results[1] == nil {
		t.Fatal("missing results")
	}
	if results[0].Path == results[1].Path {
		t.Error("each caller writes its own output")
	}
	for _, res := range results {
		if _, err := os.Stat(res.Path); err != nil {
			t.Errorf("output %s: %v", res.Path, err)
		}
	}
}

func TestComputeLayout(t *testing.T) {
	l, err := ComputeLayout(context.Background(), Request{Beads: testBeads("a", "b", "c", "d", "e", "f")})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := l.Radius, ring.Radius(testBeads("a", "b", "c", "d", "e", "f"), 0); got != want {
		t.Errorf("radius = %v, want %v", got, want)
	}
}
