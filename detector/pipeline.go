package detector

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"slices"
	"time"

	// decoders for uploaded images
	_ "image/png"

	"github.com/disintegration/gift"
)

const (
	MaxImageWidth  = 4000
	MaxImageHeight = 4000
	JPEGQuality    = 90

	DefaultThreshold = 0.5
)

// Result is the outcome of one pipeline run.
type Result struct {
	// Tags holds each detected label once, in detection order.
	Tags []string
	// Image is the annotated picture encoded as JPEG. When nothing was
	// detected it is the original picture re-encoded.
	Image []byte
}

// Pipeline decodes an image, runs the detector and draws every accepted
// detection onto a copy of the image.
type Pipeline struct {
	Detector  Detector
	Threshold float64
	// Color picks the frame color for each accepted detection.
	Color func() color.RGBA
	// Backend names the detector in metrics.
	Backend string
}

func NewPipeline(d Detector, backend string, threshold float64) *Pipeline {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Pipeline{Detector: d, Threshold: threshold, Color: RandomColor, Backend: backend}
}

func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	res, err := p.run(ctx, r)
	observeRun(p.Backend, start, res, err)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, r io.Reader) (*Result, error) {
	src, err := Decode(r)
	if err != nil {
		return nil, err
	}
	src = fit(src)

	detections, err := p.Detector.Detect(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	canvas := toRGBA(src)
	tags := make([]string, 0, len(detections))
	for _, det := range detections {
		if det.Score <= p.Threshold || slices.Contains(tags, det.Label) {
			continue
		}

		col := p.color()
		line := LineThickness(canvas.Bounds())
		DrawBox(canvas, det.Box.Min, det.Box.Max, col, line)
		if err := DrawLabel(canvas, det.Box.Min, det.Label, col, line); err != nil {
			return nil, fmt.Errorf("draw label: %w", err)
		}
		tags = append(tags, det.Label)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &Result{Tags: tags, Image: buf.Bytes()}, nil
}

func (p *Pipeline) color() color.RGBA {
	if p.Color != nil {
		return p.Color()
	}
	return RandomColor()
}

// fit shrinks images larger than MaxImageWidth x MaxImageHeight.
func fit(src image.Image) image.Image {
	b := src.Bounds()
	if b.Dx() <= MaxImageWidth && b.Dy() <= MaxImageHeight {
		return src
	}
	g := gift.New(gift.ResizeToFit(MaxImageWidth, MaxImageHeight, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(b))
	g.Draw(dst, src)
	return dst
}
