package assets

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"
)

// Handle is a loaded image source ready for decoding.
type Handle struct {
	Source    string    // source as requested
	Path      string    // local file path; empty for downloaded images
	Data      []byte    // downloaded bytes; nil for local files
	Size      int64     // len(Data)
	FetchedAt time.Time // zero for local files
}

// Local reports whether the handle refers to a file on disk.
func (h Handle) Local() bool { return h.Data == nil && h.Path != "" }

// Open returns a reader over the image bytes.
func (h Handle) Open() (io.ReadCloser, error) {
	if h.Data != nil {
		return io.NopCloser(bytes.NewReader(h.Data)), nil
	}
	return os.Open(h.Path)
}

func localHandle(src string) Handle {
	return Handle{Source: src, Path: strings.TrimPrefix(src, "file://")}
}
