// Package watermark builds the per-report stamp: QR deep link, logo and two
// text blocks flattened onto the base template.
package watermark

import (
	"fmt"
	"image"
	"time"

	"sweepin/internal/qr"
	"sweepin/internal/raster"
)

// Layout pins every coordinate of the stamp. Points are (left, top).
type Layout struct {
	QRSize   int
	QRAnchor image.Point

	LogoAnchor image.Point

	BlockASize   image.Point
	BlockAAnchor image.Point
	IDLine       image.Point
	DomainLine   image.Point

	BlockBSize   image.Point
	BlockBAnchor image.Point
	DateLine     image.Point
	TimeLine     image.Point
	DescStart    image.Point
	DescStep     int

	WrapWidth   int
	WrapDivisor int

	Domain     string
	Location   *time.Location
	DateFormat string
	TimeFormat string
}

func DefaultLayout() Layout {
	return Layout{
		QRSize:   315,
		QRAnchor: image.Pt(5, 5),

		LogoAnchor: image.Pt(586, 82),

		BlockASize:   image.Pt(470, 93),
		BlockAAnchor: image.Pt(320, 217),
		IDLine:       image.Pt(10, 30),
		DomainLine:   image.Pt(10, 55),

		BlockBSize:   image.Pt(249, 211),
		BlockBAnchor: image.Pt(320, 5),
		DateLine:     image.Pt(10, 30),
		TimeLine:     image.Pt(10, 55),
		DescStart:    image.Pt(10, 80),
		DescStep:     25,

		WrapWidth:   24,
		WrapDivisor: 20,

		Domain:     "www.sweepin.itb.ac.id",
		Location:   time.UTC,
		DateFormat: "1/2/2006",
		TimeFormat: "3:04:05 PM",
	}
}

// Stamp is the flattened watermark for one report. It is built per report
// and never shared across reports.
type Stamp struct {
	Image   image.Image
	Payload string
}

func (s *Stamp) Bounds() image.Rectangle { return s.Image.Bounds() }

type Composer struct {
	assets  *Assets
	backend raster.Backend
	qr      qr.Encoder
	layout  Layout
}

func NewComposer(assets *Assets, backend raster.Backend, encoder qr.Encoder, layout Layout) *Composer {
	if layout.Location == nil {
		layout.Location = time.UTC
	}
	return &Composer{assets: assets, backend: backend, qr: encoder, layout: layout}
}

func (c *Composer) Compose(qrPayload, reportID string, submittedAt time.Time, description string) (*Stamp, error) {
	const op = "watermark.Compose"
	l := c.layout

	code, err := c.qr.Encode(qrPayload, l.QRSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stamp := c.backend.Composite(c.assets.Template, code, l.QRAnchor)
	stamp = c.backend.Composite(stamp, c.assets.Logo, l.LogoAnchor)

	blockA, err := c.backend.RenderText(l.BlockASize.X, l.BlockASize.Y, c.blockALines(reportID))
	if err != nil {
		return nil, fmt.Errorf("%s: block A: %w", op, err)
	}
	stamp = c.backend.Composite(stamp, blockA, l.BlockAAnchor)

	blockB, err := c.backend.RenderText(l.BlockBSize.X, l.BlockBSize.Y, c.blockBLines(submittedAt, description))
	if err != nil {
		return nil, fmt.Errorf("%s: block B: %w", op, err)
	}
	stamp = c.backend.Composite(stamp, blockB, l.BlockBAnchor)

	return &Stamp{Image: stamp, Payload: qrPayload}, nil
}

func (c *Composer) blockALines(reportID string) []raster.TextLine {
	l := c.layout
	return []raster.TextLine{
		{Text: "report id : " + reportID, X: l.IDLine.X, Y: l.IDLine.Y},
		{Text: l.Domain, X: l.DomainLine.X, Y: l.DomainLine.Y},
	}
}

func (c *Composer) blockBLines(submittedAt time.Time, description string) []raster.TextLine {
	l := c.layout
	local := submittedAt.In(l.Location)

	lines := []raster.TextLine{
		{Text: local.Format(l.DateFormat), X: l.DateLine.X, Y: l.DateLine.Y},
		{Text: local.Format(l.TimeFormat), X: l.TimeLine.X, Y: l.TimeLine.Y},
	}
	for i, text := range WrapDescription(description, l.WrapWidth, l.WrapDivisor) {
		lines = append(lines, raster.TextLine{
			Text: text,
			X:    l.DescStart.X,
			Y:    l.DescStart.Y + i*l.DescStep,
		})
	}
	return lines
}
