package render

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/ring"
)

// Warning records a bead drawn as a placeholder.
type Warning struct {
	Index  int
	Source string
	Code   errors.Code
	Err    error
}

func (w Warning) String() string {
	return errors.UserMessage(w.Err)
}

// Composite is a finished raster.
type Composite struct {
	Image         *image.NRGBA
	Size          int
	PixelsPerUnit float64
	Drawn         int // beads drawn from their image
	Warnings      []Warning
}

// Renderer draws ring layouts. It is safe for concurrent use; each render
// takes its own surface from the pool.
type Renderer struct {
	size          int
	background    color.Color
	placeholder   color.Color
	padding       float64
	pixelsPerUnit float64
	onWarning     func(Warning)
	logger        *log.Logger

	surfaces *surfacePool
}

// surfacePool holds reusable drawing contexts per edge length.
type surfacePool struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		size:        DefaultSize,
		background:  color.Transparent,
		placeholder: DefaultPlaceholder,
		padding:     DefaultPadding,
		logger:      log.Default(),
		surfaces:    &surfacePool{pools: make(map[int]*sync.Pool)},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Size returns the surface edge length in pixels.
func (r *Renderer) Size() int { return r.size }

// Sized returns a renderer with the same options drawing at px pixels. The
// two share their surface pools.
func (r *Renderer) Sized(px int) *Renderer {
	c := *r
	c.size = px
	return &c
}

func (s *surfacePool) get(size int) *gg.Context {
	s.mu.Lock()
	p, ok := s.pools[size]
	if !ok {
		p = &sync.Pool{New: func() any { return gg.NewContext(size, size) }}
		s.pools[size] = p
	}
	s.mu.Unlock()
	return p.Get().(*gg.Context)
}

func (s *surfacePool) put(size int, dc *gg.Context) {
	s.mu.Lock()
	p := s.pools[size]
	s.mu.Unlock()
	p.Put(dc)
}

// Render composites l using images for bead pixels. It returns an error only
// for invalid options or cancellation; per-bead failures become warnings.
func (r *Renderer) Render(ctx context.Context, l ring.Layout, images ImageSource) (*Composite, error) {
	if r.size < 1 || r.size > MaxSize {
		return nil, errors.New(errors.ErrCodeInvalidInput, "render size %d out of range [1, %d]", r.size, MaxSize)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	dc := r.surfaces.get(r.size)
	defer r.surfaces.put(r.size, dc)

	dc.Identity()
	dc.ResetClip()
	dc.SetColor(r.background)
	dc.Clear()

	ppu := r.fit(l)
	comp := &Composite{Size: r.size, PixelsPerUnit: ppu}

	if len(l.Placements) > 0 {
		b := l.Bounds()
		dc.Translate(float64(r.size)/2, float64(r.size)/2)
		dc.Scale(ppu, ppu)
		dc.Translate(-b.CenterX(), -b.CenterY())

		decoded := make(map[string]decodeResult)
		for _, pass := range [][]ring.Placement{l.Ring(), l.Floating()} {
			for _, p := range pass {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				r.drawBead(dc, p, images, decoded, comp)
			}
		}
	}

	comp.Image = imaging.Clone(dc.Image())
	r.logger.Debug("composite rendered",
		"beads", len(l.Placements), "drawn", comp.Drawn, "warnings", len(comp.Warnings),
		"size", r.size, "took", time.Since(start))
	return comp, nil
}

type decodeResult struct {
	img image.Image
	err error
}

func (r *Renderer) drawBead(dc *gg.Context, p ring.Placement, images ImageSource, decoded map[string]decodeResult, comp *Composite) {
	src := p.Bead.Image
	res, ok := decoded[src]
	if !ok {
		h, err := images.Lookup(src)
		if err == nil {
			res.img, err = Decode(h)
		}
		res.err = err
		decoded[src] = res
	}

	if res.err != nil {
		r.drawPlaceholder(dc, p)
		r.warn(comp, p, res.err)
		return
	}

	b := res.img.Bounds()
	dc.Push()
	dc.Translate(p.X, p.Y)
	dc.Rotate(p.Angle)
	dc.Scale(p.Width/float64(b.Dx()), p.Height/float64(b.Dy()))
	dc.DrawImageAnchored(res.img, 0, 0, 0.5, 0.5)
	dc.Pop()
	comp.Drawn++
}

func (r *Renderer) drawPlaceholder(dc *gg.Context, p ring.Placement) {
	dc.Push()
	dc.SetColor(r.placeholder)
	dc.DrawCircle(p.X, p.Y, p.Radius())
	dc.Fill()
	dc.Pop()
}

func (r *Renderer) warn(comp *Composite, p ring.Placement, err error) {
	code := errors.GetCode(err)
	if code != errors.ErrCodeDecodeFailed {
		code = errors.ErrCodeFetchFailed
	}
	w := Warning{Index: p.Index, Source: p.Bead.Image, Code: code, Err: err}
	comp.Warnings = append(comp.Warnings, w)
	r.logger.Warn("bead drawn as placeholder", "index", p.Index, "src", p.Bead.Image, "code", code)
	if r.onWarning != nil {
		r.onWarning(w)
	}
}

// fit returns the unit-to-pixel ratio that fits l's bounds into the surface.
func (r *Renderer) fit(l ring.Layout) float64 {
	if r.pixelsPerUnit > 0 {
		return r.pixelsPerUnit
	}
	if len(l.Placements) == 0 {
		return 1
	}
	b := l.Bounds()
	span := math.Max(b.Width(), b.Height())
	avail := float64(r.size) - 2*r.padding
	if avail <= 0 {
		avail = float64(r.size)
	}
	if span <= 0 {
		return 1
	}
	return avail / span
}
