package processor

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"sweepin/internal/raster"
)

const (
	CanonicalWidth  = 2000
	CanonicalHeight = 2667
)

// NormalizedImage is either the untouched upload (Data) or the resized,
// still decoded picture (Image). Format is the upload's format either way.
type NormalizedImage struct {
	Data   []byte
	Image  image.Image
	Width  int
	Height int
	Format imaging.Format
}

type Normalizer struct {
	backend raster.Backend
}

func NewNormalizer(backend raster.Backend) *Normalizer {
	return &Normalizer{backend: backend}
}

// Normalize forces photos onto the canonical resolution. Only the width is
// checked: a photo already 2000 wide passes through byte for byte, anything
// else is stretched to exactly 2000x2667 and kept decoded until overlay.
func (n *Normalizer) Normalize(photo []byte) (*NormalizedImage, error) {
	const op = "processor.Normalize"

	cfg, format, err := n.backend.DecodeConfig(photo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Width == CanonicalWidth {
		return &NormalizedImage{Data: photo, Width: cfg.Width, Height: cfg.Height, Format: format}, nil
	}

	img, _, err := n.backend.Decode(photo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resized := n.backend.Resize(img, CanonicalWidth, CanonicalHeight)
	return &NormalizedImage{Image: resized, Width: CanonicalWidth, Height: CanonicalHeight, Format: format}, nil
}
