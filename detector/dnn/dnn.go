// Package dnn runs a pretrained TensorFlow COCO detection graph through the
// OpenCV DNN module.
package dnn

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"sync"

	"github.com/krishkalaria12/snap-detect/detector"
	"gocv.io/x/gocv"
)

// Detector wraps a loaded gocv.Net. The net is not safe for concurrent
// Forward calls, so every detection holds mu.
type Detector struct {
	mu  sync.Mutex
	net gocv.Net

	inputSize image.Point
	scale     float64
	mean      gocv.Scalar
}

// New loads modelPath (frozen graph) with its text graph configPath.
func New(modelPath, configPath string) (*Detector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable target: %w", err)
	}

	return &Detector{
		net:       net,
		inputSize: image.Pt(300, 300),
		scale:     1.0 / 127.5,
		mean:      gocv.NewScalar(127.5, 127.5, 127.5, 0),
	}, nil
}

// Detect returns every detection of the network; thresholding is left to the
// caller.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detector.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: detector.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	mat, err := gocv.IMDecode(buf.Bytes(), gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	blob := gocv.BlobFromImage(mat, d.scale, d.inputSize, d.mean, true, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// rows of [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates normalized
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols, height := float32(mat.Cols()), float32(mat.Rows())
	results := make([]detector.Detection, 0, rows.Rows())
	for i := 0; i < rows.Rows(); i++ {
		classID := int(rows.GetFloatAt(i, 1))
		x1 := int(rows.GetFloatAt(i, 3) * cols)
		y1 := int(rows.GetFloatAt(i, 4) * height)
		x2 := int(rows.GetFloatAt(i, 5) * cols)
		y2 := int(rows.GetFloatAt(i, 6) * height)

		results = append(results, detector.Detection{
			Box:   image.Rect(x1, y1, x2, y2),
			Label: detector.LabelFor(classID),
			Score: float64(rows.GetFloatAt(i, 2)),
		})
	}
	return results, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
