package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/matzehuels/beadring/pkg/buildinfo"
	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/observability"
)

// DefaultMaxBodyBytes caps a single download at 32 MiB.
const DefaultMaxBodyBytes = 32 << 20

// Fetcher downloads the bytes behind a remote image source.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc func(ctx context.Context, src string) ([]byte, error)

// Fetch calls f(ctx, src).
func (f FetcherFunc) Fetch(ctx context.Context, src string) ([]byte, error) { return f(ctx, src) }

// IsRemote reports whether src names a remote resource that must be fetched.
// Anything else is treated as a local handle and passes through untouched.
func IsRemote(src string) bool {
	s := strings.ToLower(src)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// FetcherOption configures an [HTTPFetcher].
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithRateLimit limits outgoing requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) FetcherOption {
	return func(f *HTTPFetcher) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithMaxBodyBytes caps the size of a single response body.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) { f.maxBytes = n }
}

// HTTPFetcher is the default [Fetcher] for http and https sources.
//
// Transient failures (network errors, 429, 5xx) are returned wrapped in
// [RetryableError] so that [Retry] repeats them; 404 and other client
// errors are final.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	maxBytes  int64
	userAgent string
}

// NewHTTPFetcher creates a fetcher with a 30 second client timeout.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		maxBytes:  DefaultMaxBodyBytes,
		userAgent: buildinfo.UserAgent(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads src. The request is bound to ctx and aborted when ctx ends.
func (f *HTTPFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", src)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", src)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*")

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, u.Host, u.Path)
	start := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, u.Host, u.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "GET %s", src))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, u.Host, u.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp, src); err != nil {
		return nil, err
	}

	limit := f.maxBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "read %s", src))
	}
	if int64(len(data)) > limit {
		return nil, errors.New(errors.ErrCodeFetchFailed, "%s exceeds %d bytes", src, limit)
	}
	return data, nil
}

func checkStatus(resp *http.Response, src string) error {
	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "GET %s: %s", src, resp.Status)
	case code == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return Retryable(errors.Wrap(errors.ErrCodeRateLimited, &errors.RateLimitedError{RetryAfter: retryAfter}, "GET %s", src))
	case code >= 500:
		return Retryable(errors.New(errors.ErrCodeNetwork, "GET %s: %s", src, resp.Status))
	default:
		return errors.New(errors.ErrCodeFetchFailed, "GET %s: %s", src, resp.Status)
	}
}

// String implements fmt.Stringer for log output.
func (f *HTTPFetcher) String() string {
	if f.limiter == nil {
		return "http"
	}
	return fmt.Sprintf("http(%.1f rps)", float64(f.limiter.Limit()))
}
