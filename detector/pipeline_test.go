package detector

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func staticDetector(dets ...Detection) Detector {
	return DetectorFunc(func(context.Context, image.Image) ([]Detection, error) {
		return dets, nil
	})
}

func red() color.RGBA { return color.RGBA{R: 255, A: 255} }

func TestPipeline_KeepsUniqueLabelsAboveThreshold(t *testing.T) {
	p := NewPipeline(staticDetector(
		Detection{Box: image.Rect(100, 300, 600, 800), Label: "dog", Score: 0.9},
		Detection{Box: image.Rect(200, 400, 700, 900), Label: "dog", Score: 0.95},
		Detection{Box: image.Rect(50, 500, 400, 900), Label: "person", Score: 0.7},
		Detection{Box: image.Rect(50, 500, 400, 900), Label: "cat", Score: 0.5},
		Detection{Box: image.Rect(50, 500, 400, 900), Label: "car", Score: 0.2},
	), "test", 0)
	p.Color = red

	res, err := p.Run(context.Background(), bytes.NewReader(solidPNG(t, 1000, 1000, color.White)))
	require.NoError(t, err)
	assert.Equal(t, []string{"dog", "person"}, res.Tags)

	out, err := jpeg.Decode(bytes.NewReader(res.Image))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1000, 1000), out.Bounds())

	// right edge of the first dog frame is drawn
	r, g, b, _ := out.At(600, 700).RGBA()
	assert.Greater(t, r>>8, uint32(180))
	assert.Less(t, g>>8, uint32(100))
	assert.Less(t, b>>8, uint32(100))

	// the second dog frame is skipped
	r, g, b, _ = out.At(700, 650).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestPipeline_NothingDetectedReencodesOriginal(t *testing.T) {
	p := NewPipeline(staticDetector(), "test", 0.5)

	res, err := p.Run(context.Background(), bytes.NewReader(solidPNG(t, 32, 16, color.White)))
	require.NoError(t, err)
	assert.Empty(t, res.Tags)

	out, err := jpeg.Decode(bytes.NewReader(res.Image))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 16), out.Bounds())
	r, g, b, _ := out.At(16, 8).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestPipeline_Errors(t *testing.T) {
	p := NewPipeline(staticDetector(), "test", 0.5)
	_, err := p.Run(context.Background(), bytes.NewReader([]byte("not an image")))
	assert.ErrorContains(t, err, "failed to decode image")

	boom := errors.New("boom")
	p = NewPipeline(DetectorFunc(func(context.Context, image.Image) ([]Detection, error) {
		return nil, boom
	}), "test", 0.5)
	_, err = p.Run(context.Background(), bytes.NewReader(solidPNG(t, 4, 4, color.Black)))
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_ShrinksOversizedImages(t *testing.T) {
	var seen image.Rectangle
	p := NewPipeline(DetectorFunc(func(_ context.Context, img image.Image) ([]Detection, error) {
		seen = img.Bounds()
		return nil, nil
	}), "test", 0.5)

	_, err := p.Run(context.Background(), bytes.NewReader(solidPNG(t, MaxImageWidth*2, 10, color.White)))
	require.NoError(t, err)
	assert.Equal(t, MaxImageWidth, seen.Dx())
	assert.Equal(t, 5, seen.Dy())
}
