// Package qr turns a deep-link payload into a square QR bitmap.
package qr

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	bqr "github.com/boombuler/barcode/qr"
	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"

	"sweepin/internal/models"
)

type Encoder interface {
	// Encode returns a size x size bitmap of payload.
	Encode(payload string, size int) (image.Image, error)
}

// New returns the encoder registered under name ("skip2" or "boombuler").
func New(name string) (Encoder, error) {
	switch name {
	case "", "skip2":
		return Skip2{Level: qrcode.Medium}, nil
	case "boombuler":
		return Boombuler{Level: bqr.M}, nil
	}
	return nil, fmt.Errorf("qr.New: unknown encoder %q", name)
}

type Skip2 struct {
	Level qrcode.RecoveryLevel
}

func (e Skip2) Encode(payload string, size int) (image.Image, error) {
	const op = "qr.Skip2.Encode"

	if err := checkInput(payload, size); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	code, err := qrcode.New(payload, e.Level)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrEncoding, err)
	}
	return fit(code.Image(size), size), nil
}

type Boombuler struct {
	Level bqr.ErrorCorrectionLevel
}

func (e Boombuler) Encode(payload string, size int) (image.Image, error) {
	const op = "qr.Boombuler.Encode"

	if err := checkInput(payload, size); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	code, err := bqr.Encode(payload, e.Level, bqr.Auto)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrEncoding, err)
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrEncoding, err)
	}
	return scaled, nil
}

func checkInput(payload string, size int) error {
	if payload == "" {
		return fmt.Errorf("%w: empty payload", models.ErrEncoding)
	}
	if size <= 0 {
		return fmt.Errorf("%w: size %d", models.ErrEncoding, size)
	}
	return nil
}

// fit forces an exact size; skip2 silently grows the image when the payload
// needs more modules than size allows.
func fit(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return img
	}
	return imaging.Resize(img, size, size, imaging.NearestNeighbor)
}
