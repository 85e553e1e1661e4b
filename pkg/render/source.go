package render

import (
	"github.com/matzehuels/beadring/pkg/assets"
	"github.com/matzehuels/beadring/pkg/errors"
)

// ImageSource yields the loaded handle for an image source.
type ImageSource interface {
	Lookup(src string) (assets.Handle, error)
}

// Resolved adapts the output of [assets.Cache.ResolveEach] to [ImageSource].
type Resolved struct {
	Handles map[string]assets.Handle
	Failed  map[string]error
}

// Lookup returns the handle for src, or the error it failed with.
func (r Resolved) Lookup(src string) (assets.Handle, error) {
	if err, ok := r.Failed[src]; ok {
		return assets.Handle{}, err
	}
	if h, ok := r.Handles[src]; ok {
		return h, nil
	}
	return assets.Handle{}, errors.New(errors.ErrCodeFetchFailed, "image %s was not loaded", src)
}
