package render

import (
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/beadring/pkg/assets"
	"github.com/matzehuels/beadring/pkg/errors"
)

// Decode reads the image behind h, applying EXIF orientation.
func Decode(h assets.Handle) (image.Image, error) {
	rc, err := h.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, err, "open %s", h.Source)
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "decode %s", h.Source)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New(errors.ErrCodeDecodeFailed, "decode %s: empty image", h.Source)
	}
	return img, nil
}
