package assets

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/httputil"
	"github.com/matzehuels/beadring/pkg/loader"
)

// fakeFetcher serves fixed-size payloads and counts calls per source.
type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	size  int
	gate  chan struct{} // when non-nil, fetches block until closed
	fail  map[string]error
}

func newFakeFetcher(size int) *fakeFetcher {
	return &fakeFetcher{calls: make(map[string]int), size: size, fail: make(map[string]error)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	f.mu.Lock()
	f.calls[src]++
	err := f.fail[src]
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return make([]byte, f.size), nil
}

func (f *fakeFetcher) count(src string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[src]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, f httputil.Fetcher, mod func(*Options)) *Cache {
	t.Helper()
	opts := Options{
		Fetcher: f,
		Retry:   httputil.Policy{Attempts: 1},
	}
	if mod != nil {
		mod(&opts)
	}
	c := New(opts)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestResolveConcurrentSharesOneFetch(t *testing.T) {
	f := newFakeFetcher(10)
	f.gate = make(chan struct{})
	c := newTestCache(t, f, nil)

	const src = "https://cdn.example.com/amber.png"
	var wg sync.WaitGroup
	results := make([]Handle, 2)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := c.Resolve(context.Background(), src)
			if err != nil {
				t.Errorf("Resolve: %v", err)
			}
			results[i] = h
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if n := f.count(src); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	if results[0].Size != 10 || results[1].Size != 10 {
		t.Errorf("sizes = %d, %d, want 10", results[0].Size, results[1].Size)
	}
	if c.Len() != 1 || c.Size() != 10 {
		t.Errorf("resident = %d entries / %d bytes, want 1 / 10", c.Len(), c.Size())
	}
}

func TestResolveHitDoesNoIO(t *testing.T) {
	f := newFakeFetcher(4)
	c := newTestCache(t, f, nil)
	const src = "https://cdn.example.com/jade.png"

	for i := 0; i < 3; i++ {
		if _, err := c.Resolve(context.Background(), src); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	if n := f.count(src); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", s.Hits, s.Misses)
	}
}

func TestEvictsOldestFirst(t *testing.T) {
	f := newFakeFetcher(40)
	c := newTestCache(t, f, func(o *Options) { o.MaxBytes = 100 })
	ctx := context.Background()

	srcs := []string{
		"https://cdn.example.com/a.png",
		"https://cdn.example.com/b.png",
		"https://cdn.example.com/c.png",
	}
	for _, s := range srcs[:2] {
		if _, err := c.Resolve(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	// Touch a; insertion order still decides eviction.
	c.Resolve(ctx, srcs[0])

	if _, err := c.Resolve(ctx, srcs[2]); err != nil {
		t.Fatal(err)
	}

	if c.Contains(srcs[0]) {
		t.Error("oldest entry should have been evicted")
	}
	if !c.Contains(srcs[1]) || !c.Contains(srcs[2]) {
		t.Error("newer entries should be resident")
	}
	if c.Size() > 100 {
		t.Errorf("resident bytes = %d, exceeds ceiling", c.Size())
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestEntryCeiling(t *testing.T) {
	f := newFakeFetcher(1)
	c := newTestCache(t, f, func(o *Options) { o.MaxEntries = 2 })
	ctx := context.Background()

	for _, s := range []string{"https://x/1", "https://x/2", "https://x/3"} {
		if _, err := c.Resolve(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if c.Contains("https://x/1") {
		t.Error("first entry should have been evicted")
	}
}

func TestOversizedNotCached(t *testing.T) {
	f := newFakeFetcher(200)
	c := newTestCache(t, f, func(o *Options) { o.MaxBytes = 100 })

	h, err := c.Resolve(context.Background(), "https://x/huge.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if h.Size != 200 {
		t.Errorf("Size = %d, want 200", h.Size)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
	if c.Stats().Oversized != 1 {
		t.Errorf("Oversized = %d, want 1", c.Stats().Oversized)
	}
}

func TestTTLLazyExpiry(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	f := newFakeFetcher(8)
	c := newTestCache(t, f, func(o *Options) {
		o.TTL = time.Minute
		o.Now = clk.Now
	})
	const src = "https://x/opal.png"
	ctx := context.Background()

	c.Resolve(ctx, src)
	clk.Advance(30 * time.Second)
	c.Resolve(ctx, src)
	if n := f.count(src); n != 1 {
		t.Fatalf("fetches before expiry = %d, want 1", n)
	}

	clk.Advance(time.Minute)
	if c.Contains(src) {
		t.Error("expired entry reported as resident")
	}
	c.Resolve(ctx, src)
	if n := f.count(src); n != 2 {
		t.Errorf("fetches after expiry = %d, want 2", n)
	}
}

func TestSweepAndJanitor(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	f := newFakeFetcher(8)
	c := newTestCache(t, f, func(o *Options) {
		o.TTL = time.Minute
		o.Now = clk.Now
	})
	ctx := context.Background()
	c.Resolve(ctx, "https://x/1")
	c.Resolve(ctx, "https://x/2")

	clk.Advance(2 * time.Minute)
	if n := c.Sweep(); n != 2 {
		t.Errorf("Sweep = %d, want 2", n)
	}
	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("after sweep: %d entries, %d bytes", c.Len(), c.Size())
	}

	clk2 := &clock{now: time.Unix(1_700_000_000, 0)}
	j := newTestCache(t, f, func(o *Options) {
		o.TTL = time.Minute
		o.Now = clk2.Now
		o.SweepInterval = 5 * time.Millisecond
	})
	j.Resolve(ctx, "https://x/3")
	clk2.Advance(2 * time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for j.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("janitor did not sweep expired entry")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFailureNotCached(t *testing.T) {
	f := newFakeFetcher(8)
	const src = "https://x/broken.png"
	f.fail[src] = errors.New(errors.ErrCodeNotFound, "404")
	c := newTestCache(t, f, nil)

	_, err := c.Resolve(context.Background(), src)
	if !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Fatalf("err = %v, want FETCH_FAILED", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after failure, want 0", c.Len())
	}

	delete(f.fail, src)
	if _, err := c.Resolve(context.Background(), src); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
	if n := f.count(src); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	f := httputil.FetcherFunc(func(ctx context.Context, src string) ([]byte, error) {
		if calls.Add(1) < 3 {
			return nil, httputil.Retryable(errors.New(errors.ErrCodeNetwork, "503"))
		}
		return []byte("ok"), nil
	})
	c := newTestCache(t, f, func(o *Options) {
		o.Retry = httputil.Policy{Attempts: 3, BaseDelay: time.Millisecond}
	})

	h, err := c.Resolve(context.Background(), "https://x/flaky.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(h.Data) != "ok" || calls.Load() != 3 {
		t.Errorf("data = %q after %d calls", h.Data, calls.Load())
	}
}

func TestWaiterCancellation(t *testing.T) {
	f := newFakeFetcher(8)
	f.gate = make(chan struct{})
	c := newTestCache(t, f, nil)
	const src = "https://x/slow.png"

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Resolve(ctx, src)
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-errc; err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	close(f.gate)
	time.Sleep(10 * time.Millisecond)
	if c.Len() != 0 {
		t.Errorf("cancelled fetch inserted an entry")
	}
}

func TestPurgeDropsLateFetch(t *testing.T) {
	f := newFakeFetcher(8)
	f.gate = make(chan struct{})
	c := newTestCache(t, f, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Resolve(context.Background(), "https://x/late.png")
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	c.Purge()

	if err := <-errc; !errors.Is(err, errors.ErrCodeCancelled) {
		t.Errorf("err = %v, want CANCELLED", err)
	}
	close(f.gate)
	if c.Len() != 0 {
		t.Errorf("Len = %d after purge, want 0", c.Len())
	}
}

func TestCloseRejectsResolve(t *testing.T) {
	c := New(Options{Fetcher: newFakeFetcher(1)})
	c.Close()
	c.Close()

	_, err := c.Resolve(context.Background(), "https://x/a.png")
	if err != ErrClosed {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestLocalSourcesPassThrough(t *testing.T) {
	f := newFakeFetcher(1)
	c := newTestCache(t, f, nil)

	path := filepath.Join(t.TempDir(), "bead.png")
	if err := os.WriteFile(path, []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := c.Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !h.Local() || h.Path != path {
		t.Errorf("handle = %+v, want local %s", h, path)
	}
	rc, err := h.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "local" {
		t.Errorf("read %q", b)
	}

	h, _ = c.Resolve(context.Background(), "file://"+path)
	if h.Path != path {
		t.Errorf("file:// path = %q, want %q", h.Path, path)
	}
	if c.Len() != 0 || len(f.calls) != 0 {
		t.Error("local sources must not touch the cache or fetcher")
	}

	if _, err := c.Resolve(context.Background(), " "); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("empty source err = %v, want INVALID_INPUT", err)
	}
}

func TestResolveEachAndAll(t *testing.T) {
	f := newFakeFetcher(4)
	f.fail["https://x/bad.png"] = errors.New(errors.ErrCodeNotFound, "404")
	c := newTestCache(t, f, nil)
	ctx := context.Background()

	srcs := []string{"https://x/a.png", "https://x/bad.png", "https://x/a.png", "https://x/b.png"}
	handles, failed := c.ResolveEach(ctx, srcs)
	if len(handles) != 2 || len(failed) != 1 {
		t.Fatalf("handles=%d failed=%d, want 2/1", len(handles), len(failed))
	}
	if _, ok := failed["https://x/bad.png"]; !ok {
		t.Error("bad source not reported")
	}

	if _, err := c.ResolveAll(ctx, srcs); !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Errorf("ResolveAll err = %v, want FETCH_FAILED", err)
	}
	all, err := c.ResolveAll(ctx, srcs[:1])
	if err != nil || len(all) != 1 {
		t.Errorf("ResolveAll = %v, %v", all, err)
	}
}

func TestSharedQueueSurvivesClose(t *testing.T) {
	q := loader.NewQueue(2)
	c := New(Options{Fetcher: newFakeFetcher(1), Queue: q})
	c.Close()
	if q.Destroyed() {
		t.Error("caller-supplied queue must not be destroyed")
	}
}
