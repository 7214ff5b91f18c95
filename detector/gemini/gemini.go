// Package gemini asks a Google GenAI vision model for bounding boxes.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/krishkalaria12/snap-detect/detector"
	"google.golang.org/genai"
)

const prompt = `Detect the objects in this image. Use only these labels: %s.
Answer with a JSON array. Each element is an object with "label" (string),
"score" (confidence between 0 and 1) and "box_2d" ([ymin, xmin, ymax, xmax]
normalized to 0-1000). Answer [] when nothing is found.`

// generator is the subset of genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Detector struct {
	models generator
	model  string
}

func New(ctx context.Context, apiKey, model string) (*Detector, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Detector{models: client.Models, model: model}, nil
}

func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detector.Detection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: detector.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(buf.Bytes(), "image/jpeg"),
			genai.NewPartFromText(fmt.Sprintf(prompt, strings.Join(knownLabels(), ", "))),
		}, genai.RoleUser),
	}

	result, err := d.models.GenerateContent(ctx, d.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return parseDetections(result.Text(), img.Bounds())
}

type box struct {
	Label string    `json:"label"`
	Score float64   `json:"score"`
	Box2D []float64 `json:"box_2d"`
}

// parseDetections converts the model answer into pixel boxes of bounds.
func parseDetections(text string, bounds image.Rectangle) ([]detector.Detection, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var boxes []box
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &boxes); err != nil {
		return nil, fmt.Errorf("invalid detection response: %w", err)
	}

	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	out := make([]detector.Detection, 0, len(boxes))
	for _, b := range boxes {
		if len(b.Box2D) != 4 || b.Label == "" {
			continue
		}
		ymin, xmin, ymax, xmax := b.Box2D[0], b.Box2D[1], b.Box2D[2], b.Box2D[3]
		out = append(out, detector.Detection{
			Box: image.Rect(
				bounds.Min.X+int(xmin/1000*w), bounds.Min.Y+int(ymin/1000*h),
				bounds.Min.X+int(xmax/1000*w), bounds.Min.Y+int(ymax/1000*h),
			),
			Label: strings.ToLower(strings.TrimSpace(b.Label)),
			Score: b.Score,
		})
	}
	return out, nil
}

func knownLabels() []string {
	labels := make([]string, 0, len(detector.Labels))
	for _, l := range detector.Labels[1:] {
		if l != "N/A" {
			labels = append(labels, l)
		}
	}
	return labels
}
