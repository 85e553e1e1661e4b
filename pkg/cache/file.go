package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Entry files hold a fixed header followed by the raw artifact bytes:
//
//	magic (4 bytes) | expiry, unix nanoseconds, big endian (8 bytes) | data
//
// An expiry of zero never expires.
var entryMagic = []byte("BRC1")

const (
	entryHeaderLen = 12
	entryExt       = ".bin"
)

// FileCache stores artifacts as files under a directory, fanned out into
// subdirectories by the first two hex digits of the key hash. Writes go
// through a temporary file and a rename so concurrent readers never see a
// partial image.
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache creates a file-based cache in dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get returns the artifact stored under key. Expired and unreadable entries
// are removed and reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	data, expires, ok := decodeEntry(raw)
	if !ok || c.expired(expires) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return data, true, nil
}

// Set stores data under key. A ttl <= 0 keeps the entry until cleared.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	var expires int64
	if ttl > 0 {
		expires = c.now().Add(ttl).UnixNano()
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	var header [entryHeaderLen]byte
	copy(header[:4], entryMagic)
	binary.BigEndian.PutUint64(header[4:], uint64(expires))
	if _, err := tmp.Write(header[:]); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes key. Missing entries are not an error.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear removes every entry and returns how many were deleted.
func (c *FileCache) Clear() (int, error) {
	return c.sweep(func([]byte) bool { return true })
}

// Prune removes expired and unreadable entries and returns how many were
// deleted.
func (c *FileCache) Prune() (int, error) {
	return c.sweep(func(raw []byte) bool {
		_, expires, ok := decodeEntry(raw)
		return !ok || c.expired(expires)
	})
}

// sweep deletes every entry file for which drop returns true, then removes
// subdirectories left empty.
func (c *FileCache) sweep(drop func(raw []byte) bool) (int, error) {
	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return 0, nil
	}

	count := 0
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != entryExt {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if drop(raw) && os.Remove(path) == nil {
			count++
		}
		return nil
	})

	entries, _ := os.ReadDir(c.dir)
	for _, e := range entries {
		if e.IsDir() {
			_ = os.Remove(filepath.Join(c.dir, e.Name())) // fails unless empty
		}
	}
	return count, err
}

func (c *FileCache) Close() error { return nil }

func (c *FileCache) expired(unixNano int64) bool {
	return unixNano != 0 && c.now().UnixNano() > unixNano
}

func (c *FileCache) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(c.dir, hash[:2], hash[2:]+entryExt)
}

func decodeEntry(raw []byte) (data []byte, expires int64, ok bool) {
	if len(raw) < entryHeaderLen || !bytes.Equal(raw[:4], entryMagic) {
		return nil, 0, false
	}
	return raw[entryHeaderLen:], int64(binary.BigEndian.Uint64(raw[4:entryHeaderLen])), true
}

var _ Cache = (*FileCache)(nil)
