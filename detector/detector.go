// Package detector runs a pretrained object detector over uploaded images
// and draws the results onto a copy of the image.
package detector

import (
	"context"
	"image"
)

// Detector is implemented by the model backends in the dnn and gemini
// subpackages.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Detection is a single object found by a model. Box is in pixel
// coordinates of the image passed to Detect.
type Detection struct {
	Box   image.Rectangle
	Label string
	Score float64
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}
