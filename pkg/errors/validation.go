package errors

import (
	"strings"
	"unicode"
)

// ValidateImageSource validates a bead image reference before it is fetched
// or opened. It accepts remote URLs and local paths alike.
//
// The validation rules are intentionally conservative:
//   - No empty sources
//   - No control characters or null bytes
//   - Maximum length of 2048 characters
//   - Remote sources must use http or https
func ValidateImageSource(src string) error {
	if src == "" {
		return New(ErrCodeInvalidInput, "image source cannot be empty")
	}

	const maxSourceLength = 2048
	if len(src) > maxSourceLength {
		return New(ErrCodeInvalidInput, "image source too long (max %d characters)", maxSourceLength)
	}

	for _, r := range src {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "image source contains invalid control characters")
		}
	}

	if i := strings.Index(src, "://"); i > 0 {
		if err := ValidateURL(src); err != nil && !strings.HasPrefix(src, "file://") {
			return err
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// ValidateOutputPath validates a destination path for an exported image.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 1024 characters
//   - No null bytes or control characters
//   - Must not name a directory (trailing separator)
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "output path cannot be empty")
	}

	const maxPathLength = 1024
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "output path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output path contains invalid characters")
		}
	}

	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		return New(ErrCodeInvalidPath, "output path must name a file, not a directory")
	}

	return nil
}
