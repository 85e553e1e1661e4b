// Package assets resolves bead image sources to loaded handles and keeps a
// memory-bounded cache of downloaded images.
//
// # Resolution
//
// [Cache.Resolve] turns a source into a [Handle]:
//
//   - Local paths (anything not http:// or https://) resolve immediately
//     without bookkeeping.
//   - A cached, unexpired remote source is returned without I/O.
//   - A miss downloads the source through the throttled loader queue, with
//     retry on transient failures, and records the result.
//
// Concurrent resolves of the same source share a single download. Each
// waiter honors its own context; the download itself is cancelled only
// when every waiter has given up.
//
// # Bounds
//
// The cache enforces two ceilings, total bytes and entry count. When an
// insertion would exceed either, expired entries go first and then the
// oldest-inserted ones. A single image larger than the byte ceiling is
// returned to its callers but never cached.
//
// Entries expire lazily after [Options.TTL]. An optional janitor sweeps
// expired entries every [Options.SweepInterval] until [Cache.Close].
//
// # Lifecycle
//
// [Cache.Purge] drops every entry and abandons in-flight downloads;
// downloads that complete after a purge are not recorded. [Cache.Close]
// additionally stops the janitor and rejects later resolves.
package assets
