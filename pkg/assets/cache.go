package assets

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/httputil"
	"github.com/matzehuels/beadring/pkg/loader"
	"github.com/matzehuels/beadring/pkg/observability"
)

const keyType = "asset"

// Defaults for [Options].
const (
	DefaultMaxBytes    = 64 << 20
	DefaultMaxEntries  = 256
	DefaultTTL         = 30 * time.Minute
	DefaultConcurrency = 6
)

// ErrClosed is returned by Resolve after [Cache.Close].
var ErrClosed = errors.New(errors.ErrCodeInternal, "asset cache closed")

// Options configures a [Cache]. Zero fields take the defaults.
type Options struct {
	MaxBytes      int64            // resident byte ceiling
	MaxEntries    int              // resident entry ceiling
	TTL           time.Duration    // entry lifetime; negative disables expiry
	SweepInterval time.Duration    // janitor period; 0 disables the janitor
	Fetcher       httputil.Fetcher // download primitive
	Queue         *loader.Queue    // throttle; the cache owns a default one if nil
	Retry         httputil.Policy  // retry policy for each download
	Logger        *log.Logger
	Now           func() time.Time // clock, for tests
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxBytes:   DefaultMaxBytes,
		MaxEntries: DefaultMaxEntries,
		TTL:        DefaultTTL,
		Retry:      httputil.DefaultPolicy(),
	}
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int
	Bytes     int64
	Hits      uint64
	Misses    uint64
	Fetches   uint64
	Failures  uint64
	Evictions uint64
	Oversized uint64
}

type entry struct {
	key    string
	handle Handle
}

// flight tracks the waiters of one in-flight download.
type flight struct {
	id      uint64
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Cache is a memory-bounded, single-flight image cache. It is safe for
// concurrent use.
type Cache struct {
	opts      Options
	fetcher   httputil.Fetcher
	queue     *loader.Queue
	ownsQueue bool
	logger    *log.Logger
	group     singleflight.Group

	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front is oldest inserted
	size     int64
	gen      uint64
	flights  map[string]*flight
	flightID uint64
	closed   bool
	stats    Stats

	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
}

// New creates a cache. Call Close when finished with it.
func New(opts Options) *Cache {
	def := DefaultOptions()
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = def.MaxEntries
	}
	if opts.TTL == 0 {
		opts.TTL = def.TTL
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = def.Retry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		opts:    opts,
		fetcher: opts.Fetcher,
		queue:   opts.Queue,
		logger:  opts.Logger,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		flights: make(map[string]*flight),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if c.fetcher == nil {
		c.fetcher = httputil.NewHTTPFetcher()
	}
	if c.queue == nil {
		c.queue = loader.NewQueue(DefaultConcurrency, loader.WithName("assets"), loader.WithLogger(opts.Logger))
		c.ownsQueue = true
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if opts.SweepInterval > 0 {
		go c.janitor(opts.SweepInterval)
	} else {
		close(c.done)
	}
	return c
}

// Resolve returns a handle for src, downloading it on a miss.
func (c *Cache) Resolve(ctx context.Context, src string) (Handle, error) {
	if strings.TrimSpace(src) == "" {
		return Handle{}, errors.New(errors.ErrCodeInvalidInput, "empty image source")
	}
	if !httputil.IsRemote(src) {
		return localHandle(src), nil
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	h, f, err := c.lookup(ctx, src)
	if err != nil || f == nil {
		return h, err
	}

	key := fmt.Sprintf("%s#%d", src, f.id)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(f, src)
	})

	select {
	case r := <-ch:
		c.leave(src, f)
		if r.Err != nil {
			return Handle{}, r.Err
		}
		return r.Val.(Handle), nil
	case <-ctx.Done():
		c.leave(src, f)
		return Handle{}, ctx.Err()
	}
}

// lookup returns a cached handle, or joins (or starts) the flight for src.
func (c *Cache) lookup(ctx context.Context, src string) (Handle, *flight, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Handle{}, nil, ErrClosed
	}
	if el, ok := c.entries[src]; ok {
		e := el.Value.(*entry)
		if !c.expired(e) {
			c.stats.Hits++
			observability.Cache().OnCacheHit(ctx, keyType)
			return e.handle, nil, nil
		}
		c.remove(el)
	}
	c.stats.Misses++
	observability.Cache().OnCacheMiss(ctx, keyType)

	f, ok := c.flights[src]
	if !ok {
		c.flightID++
		f = &flight{id: c.flightID, gen: c.gen}
		f.ctx, f.cancel = context.WithCancel(c.ctx)
		c.flights[src] = f
	}
	f.waiters++
	return Handle{}, f, nil
}

// leave drops one waiter; the last one out cancels the download.
func (c *Cache) leave(src string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[src] == f {
		delete(c.flights, src)
	}
}

func (c *Cache) load(f *flight, src string) (Handle, error) {
	c.mu.Lock()
	c.stats.Fetches++
	c.mu.Unlock()

	start := c.opts.Now()
	data, err := loader.Enqueue(f.ctx, c.queue, func(ctx context.Context) ([]byte, error) {
		var data []byte
		err := httputil.Retry(ctx, c.opts.Retry, func(ctx context.Context) error {
			var err error
			data, err = c.fetcher.Fetch(ctx, src)
			return err
		})
		return data, err
	})
	if err != nil {
		c.mu.Lock()
		c.stats.Failures++
		c.mu.Unlock()

		switch {
		case f.ctx.Err() != nil:
			return Handle{}, f.ctx.Err()
		case errors.Is(err, errors.ErrCodeQueueDestroyed):
			return Handle{}, err
		}
		c.logger.Warn("image fetch failed", "src", src, "err", err)
		return Handle{}, errors.Wrap(errors.ErrCodeFetchFailed, err, "fetch %s", src)
	}

	h := Handle{
		Source:    src,
		Data:      data,
		Size:      int64(len(data)),
		FetchedAt: c.opts.Now(),
	}
	c.insert(f, h)
	c.logger.Debug("image fetched", "src", src, "bytes", h.Size, "took", h.FetchedAt.Sub(start))
	return h, nil
}

// insert records h unless its flight was abandoned. Check and insert happen
// under one critical section.
func (c *Cache) insert(f *flight, h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || f.gen != c.gen || f.ctx.Err() != nil {
		return
	}
	if h.Size > c.opts.MaxBytes {
		c.stats.Oversized++
		c.logger.Debug("image exceeds cache budget, not cached", "src", h.Source, "bytes", h.Size, "max", c.opts.MaxBytes)
		return
	}
	if el, ok := c.entries[h.Source]; ok {
		c.remove(el)
	}

	if c.size+h.Size > c.opts.MaxBytes {
		c.sweepLocked()
	}
	for c.size+h.Size > c.opts.MaxBytes && c.order.Len() > 0 {
		c.evict(c.order.Front())
	}

	c.entries[h.Source] = c.order.PushBack(&entry{key: h.Source, handle: h})
	c.size += h.Size
	observability.Cache().OnCacheSet(f.ctx, keyType, int(h.Size))

	for c.order.Len() > c.opts.MaxEntries {
		c.evict(c.order.Front())
	}
}

func (c *Cache) expired(e *entry) bool {
	return c.opts.TTL > 0 && c.opts.Now().Sub(e.handle.FetchedAt) >= c.opts.TTL
}

func (c *Cache) remove(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.entries, e.key)
	c.size -= e.handle.Size
}

func (c *Cache) evict(el *list.Element) {
	e := el.Value.(*entry)
	c.remove(el)
	c.stats.Evictions++
	observability.Cache().OnCacheEvict(context.Background(), keyType, int(e.handle.Size))
}

func (c *Cache) sweepLocked() int {
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if c.expired(el.Value.(*entry)) {
			c.evict(el)
			n++
		}
		el = next
	}
	return n
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

func (c *Cache) janitor(every time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("swept expired images", "count", n)
			}
		}
	}
}

// ResolveAll resolves every source concurrently and fails on the first
// error. The result is keyed by source.
func (c *Cache) ResolveAll(ctx context.Context, srcs []string) (map[string]Handle, error) {
	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	out := make(map[string]Handle, len(srcs))

	for _, src := range distinct(srcs) {
		src := src
		g.Go(func() error {
			h, err := c.Resolve(ctx, src)
			if err != nil {
				return err
			}
			mu.Lock()
			out[src] = h
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveEach resolves every source concurrently and reports failures per
// source instead of aborting.
func (c *Cache) ResolveEach(ctx context.Context, srcs []string) (map[string]Handle, map[string]error) {
	var g errgroup.Group
	var mu sync.Mutex
	handles := make(map[string]Handle, len(srcs))
	failed := make(map[string]error)

	for _, src := range distinct(srcs) {
		src := src
		g.Go(func() error {
			h, err := c.Resolve(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[src] = err
			} else {
				handles[src] = h
			}
			return nil
		})
	}
	_ = g.Wait()
	return handles, failed
}

func distinct(srcs []string) []string {
	seen := make(map[string]bool, len(srcs))
	out := make([]string, 0, len(srcs))
	for _, s := range srcs {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.order.Len()
	s.Bytes = c.size
	return s
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Size returns the resident byte total.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Contains reports whether src is resident and unexpired. It does not
// count as a hit.
func (c *Cache) Contains(src string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[src]
	return ok && !c.expired(el.Value.(*entry))
}

// Purge drops every entry and abandons in-flight downloads.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
}

func (c *Cache) purgeLocked() {
	c.gen++
	for src, f := range c.flights {
		f.cancel()
		delete(c.flights, src)
	}
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
}

// Close purges the cache, stops the janitor and rejects later resolves.
// A queue created by the cache is destroyed; a caller-supplied one is not.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.purgeLocked()
	c.mu.Unlock()

	c.cancel()
	close(c.stop)
	<-c.done
	if c.ownsQueue {
		c.queue.Destroy()
	}
	return nil
}
