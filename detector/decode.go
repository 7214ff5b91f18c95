package detector

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
)

// MaxDecodePixels bounds the images Decode accepts. Larger images are
// rejected from their header, before any pixel memory is allocated.
const MaxDecodePixels = 2 * MaxImageWidth * MaxImageHeight

var ErrImageTooLarge = errors.New("detector: image too large")

// Decode reads an image after checking its dimensions.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxDecodePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
