package watermark

import (
	"fmt"
	"image"
	"os"

	"sweepin/internal/models"
	"sweepin/internal/raster"
)

// Assets holds the decoded template and logo. Loaded once at startup and
// never written afterwards, so one value is shared by every submission.
type Assets struct {
	Template image.Image
	Logo     image.Image
}

func LoadAssets(backend raster.Backend, templatePath, logoPath string) (*Assets, error) {
	const op = "watermark.LoadAssets"

	template, err := loadAsset(backend, templatePath)
	if err != nil {
		return nil, fmt.Errorf("%s: template: %w", op, err)
	}
	logo, err := loadAsset(backend, logoPath)
	if err != nil {
		return nil, fmt.Errorf("%s: logo: %w", op, err)
	}
	return &Assets{Template: template, Logo: logo}, nil
}

func loadAsset(backend raster.Backend, path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAssetMissing, err)
	}
	img, _, err := backend.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrAssetMissing, path, err)
	}
	return img, nil
}
