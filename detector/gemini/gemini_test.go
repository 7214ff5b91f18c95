package gemini

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	text     string
	model    string
	contents []*genai.Content
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestDetect(t *testing.T) {
	fake := &fakeModels{text: `[{"label":"Dog","score":0.92,"box_2d":[100,200,500,600]}]`}
	d := &Detector{models: fake, model: "gemini-test"}

	dets, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 200, 100)))
	require.NoError(t, err)
	require.Len(t, dets, 1)

	assert.Equal(t, "dog", dets[0].Label)
	assert.Equal(t, 0.92, dets[0].Score)
	assert.Equal(t, image.Rect(40, 10, 120, 50), dets[0].Box)

	assert.Equal(t, "gemini-test", fake.model)
	require.Len(t, fake.contents, 1)
	require.Len(t, fake.contents[0].Parts, 2)
	assert.Equal(t, "image/jpeg", fake.contents[0].Parts[0].InlineData.MIMEType)
}

func TestParseDetections(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 1000)

	dets, err := parseDetections("```json\n[{\"label\":\"cat\",\"score\":0.7,\"box_2d\":[0,0,1000,1000]}]\n```", bounds)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, bounds, dets[0].Box)

	dets, err = parseDetections(`[{"label":"","box_2d":[0,0,1,1]},{"label":"cup","box_2d":[1,2]}]`, bounds)
	require.NoError(t, err)
	assert.Empty(t, dets)

	_, err = parseDetections("sorry, no", bounds)
	assert.ErrorContains(t, err, "invalid detection response")
}

func TestKnownLabels(t *testing.T) {
	labels := knownLabels()
	assert.NotContains(t, labels, "N/A")
	assert.NotContains(t, labels, "unlabeled")
	assert.Contains(t, labels, "person")
}
