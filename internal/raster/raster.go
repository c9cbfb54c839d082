// Package raster isolates the report pipeline from the imaging backend.
//
// Everything that decodes, resizes, composites, encodes or rasterizes text
// goes through Backend, so the watermark and photo code only deals in
// coordinates, sizes and formats.
package raster

import (
	"image"

	"github.com/disintegration/imaging"
)

type Backend interface {
	// DecodeConfig reads only the header: dimensions and container format.
	DecodeConfig(data []byte) (image.Config, imaging.Format, error)
	Decode(data []byte) (image.Image, imaging.Format, error)
	// Resize scales to exactly width x height, ignoring aspect ratio.
	Resize(img image.Image, width, height int) image.Image
	// Composite draws layer over base with layer's top-left corner at anchor.
	// base is left untouched.
	Composite(base, layer image.Image, anchor image.Point) image.Image
	Encode(img image.Image, format imaging.Format) ([]byte, error)
	// RenderText draws lines on a transparent width x height layer.
	RenderText(width, height int, lines []TextLine) (image.Image, error)
}

// TextLine is a string drawn with its baseline origin at (X, Y).
type TextLine struct {
	Text string
	X, Y int
}

type Gravity int

const (
	NorthWest Gravity = iota
	NorthEast
	SouthWest
	SouthEast
	Center
)

// Anchor returns the top-left point at which layer sits inside base for the
// given gravity.
func Anchor(g Gravity, base, layer image.Rectangle) image.Point {
	bw, bh := base.Dx(), base.Dy()
	lw, lh := layer.Dx(), layer.Dy()
	switch g {
	case NorthEast:
		return image.Pt(bw-lw, 0)
	case SouthWest:
		return image.Pt(0, bh-lh)
	case SouthEast:
		return image.Pt(bw-lw, bh-lh)
	case Center:
		return image.Pt((bw-lw)/2, (bh-lh)/2)
	default:
		return image.Pt(0, 0)
	}
}
