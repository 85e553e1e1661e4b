// Package httputil provides the network boundary for bead images.
//
// # Overview
//
// This package provides the pieces the asset cache needs to turn a remote
// image source into bytes:
//
//   - [Fetcher]: the injected download primitive
//   - [HTTPFetcher]: the default implementation over net/http
//   - [Retry]: bounded retry with capped exponential backoff
//
// # Fetching
//
// Only sources for which [IsRemote] reports true are fetched. Local paths and
// other handles are never passed to a Fetcher.
//
//	f := httputil.NewHTTPFetcher(httputil.WithRateLimit(10, 4))
//	data, err := f.Fetch(ctx, "https://cdn.example.com/beads/amber.png")
//
// Requests are bound to the caller's context, so cancelling a generation
// aborts its in-flight downloads.
//
// # Retry
//
// [Retry] repeats an operation only for errors wrapped in [RetryableError]:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// The delay doubles after every failed attempt and is capped by
// [Policy.MaxDelay]:
//
//	err := httputil.Retry(ctx, httputil.DefaultPolicy(), func(ctx context.Context) error {
//	    data, err = f.Fetch(ctx, src)
//	    return err
//	})
//
// # Defaults
//
//   - Client timeout: 30 seconds
//   - Max body size: 32 MiB
//   - Attempts: 3, base delay 1 second, max delay 8 seconds
package httputil
