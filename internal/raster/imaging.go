package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"sweepin/internal/models"
)

const defaultDPI = 72

// Imaging is the Backend built on disintegration/imaging and freetype.
// It is safe for concurrent use: the parsed font is read-only and every
// RenderText call gets its own freetype context.
type Imaging struct {
	font     *truetype.Font
	fontSize float64
	ink      color.Color
}

// NewImaging parses the TrueType font in fontData, or Go Regular when
// fontData is empty.
func NewImaging(fontData []byte, fontSize float64) (*Imaging, error) {
	const op = "raster.NewImaging"

	if len(fontData) == 0 {
		fontData = goregular.TTF
	}
	f, err := truetype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Imaging{font: f, fontSize: fontSize, ink: color.Black}, nil
}

func (m *Imaging) DecodeConfig(data []byte) (image.Config, imaging.Format, error) {
	const op = "raster.DecodeConfig"

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, 0, fmt.Errorf("%s: %w: %v", op, models.ErrDecode, err)
	}
	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return image.Config{}, 0, fmt.Errorf("%s: %w: %v", op, models.ErrDecode, err)
	}
	return cfg, format, nil
}

func (m *Imaging) Decode(data []byte) (image.Image, imaging.Format, error) {
	const op = "raster.Decode"

	_, format, err := m.DecodeConfig(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w: %v", op, models.ErrDecode, err)
	}
	return img, format, nil
}

func (m *Imaging) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

func (m *Imaging) Composite(base, layer image.Image, anchor image.Point) image.Image {
	return imaging.Overlay(base, layer, anchor, 1.0)
}

func (m *Imaging) Encode(img image.Image, format imaging.Format) ([]byte, error) {
	const op = "raster.Encode"

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

func (m *Imaging) RenderText(width, height int, lines []TextLine) (image.Image, error) {
	const op = "raster.RenderText"

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	ctx := freetype.NewContext()
	ctx.SetDPI(defaultDPI)
	ctx.SetFont(m.font)
	ctx.SetFontSize(m.fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetClip(dst.Bounds())
	ctx.SetDst(dst)
	ctx.SetSrc(image.NewUniform(m.ink))

	for _, l := range lines {
		if l.Text == "" {
			continue
		}
		if _, err := ctx.DrawString(l.Text, freetype.Pt(l.X, l.Y)); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, models.ErrEncoding, err)
		}
	}
	return dst, nil
}
