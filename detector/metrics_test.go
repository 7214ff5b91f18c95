package detector

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricLabel(t *testing.T) {
	assert.Equal(t, "person", metricLabel("person"))
	assert.Equal(t, "teddy bear", metricLabel("teddy bear"))
	assert.Equal(t, "other", metricLabel("N/A"))
	assert.Equal(t, "other", metricLabel("unknown95"))
	assert.Equal(t, "other", metricLabel("a red umbrella on the left"))
}

func TestPipeline_CountsFreeFormLabelsAsOther(t *testing.T) {
	p := NewPipeline(staticDetector(
		Detection{Box: image.Rect(20, 40, 120, 160), Label: "dog", Score: 0.9},
		Detection{Box: image.Rect(60, 80, 180, 180), Label: "shiba inu puppy", Score: 0.9},
	), "test", 0.5)

	otherBefore := testutil.ToFloat64(objectsTotal.WithLabelValues("other"))
	dogBefore := testutil.ToFloat64(objectsTotal.WithLabelValues("dog"))

	_, err := p.Run(context.Background(), bytes.NewReader(solidPNG(t, 200, 200, color.White)))
	require.NoError(t, err)

	assert.Equal(t, otherBefore+1, testutil.ToFloat64(objectsTotal.WithLabelValues("other")))
	assert.Equal(t, dogBefore+1, testutil.ToFloat64(objectsTotal.WithLabelValues("dog")))
	assert.Zero(t, testutil.ToFloat64(objectsTotal.WithLabelValues("shiba inu puppy")))
}
