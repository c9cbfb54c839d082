package processor

import (
	"fmt"

	"sweepin/internal/raster"
	"sweepin/internal/watermark"
)

type Overlayer struct {
	backend raster.Backend
	gravity raster.Gravity
}

// NewOverlayer stamps at the bottom-left corner of every photo.
func NewOverlayer(backend raster.Backend) *Overlayer {
	return &Overlayer{backend: backend, gravity: raster.SouthWest}
}

// Overlay returns the stamped photo encoded in the photo's own format. The
// photo is decoded only when the normalizer passed the upload through.
func (o *Overlayer) Overlay(img *NormalizedImage, stamp *watermark.Stamp) ([]byte, error) {
	const op = "processor.Overlay"

	photo, format := img.Image, img.Format
	if photo == nil {
		var err error
		if photo, format, err = o.backend.Decode(img.Data); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	anchor := raster.Anchor(o.gravity, photo.Bounds(), stamp.Bounds())
	out, err := o.backend.Encode(o.backend.Composite(photo, stamp.Image, anchor), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
