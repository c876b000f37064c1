package overlay

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestStainingExtentScoreBuckets(t *testing.T) {
	cases := []struct {
		share float64
		want  int
	}{
		{0, 1}, {0.5, 1}, {1, 2}, {9.9, 2}, {10, 3}, {32.9, 3},
		{33, 4}, {65.9, 4}, {66, 5}, {100, 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stainingExtentScore(tc.share), "share %.1f", tc.share)
	}
}

func TestStainingExtentScoreMonotonic(t *testing.T) {
	prev := 0
	for share := 0.0; share <= 100.0; share += 0.25 {
		score := stainingExtentScore(share)
		assert.GreaterOrEqual(t, score, prev, "share %.2f", share)
		prev = score
	}
}

func TestStainIntensityScoreDarkerScoresHigher(t *testing.T) {
	assert.Equal(t, 3, stainIntensityScore(0.1))
	assert.Equal(t, 3, stainIntensityScore(0.29))
	assert.Equal(t, 2, stainIntensityScore(0.3))
	assert.Equal(t, 2, stainIntensityScore(0.59))
	assert.Equal(t, 1, stainIntensityScore(0.6))
	assert.Equal(t, 1, stainIntensityScore(1.0))
}

func TestEROutcomeMapping(t *testing.T) {
	assert.Equal(t, "Negative", erOutcome(2))
	assert.Equal(t, "Low Positive", erOutcome(3))
	assert.Equal(t, "Positive", erOutcome(4))
	assert.Equal(t, "Positive", erOutcome(8))
}

func TestEstrogenReceptorNoStainedPixels(t *testing.T) {
	p := NewEstrogenReceptorPipeline()
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(250, 250, 250, 0), 240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	result, metrics, err := p.Process(frame, nil)
	require.NoError(t, err)
	defer result.Close()

	requireSameDims(t, frame, result)
	assert.Equal(t, 0, metrics["brown_cell_count"])
	assert.Equal(t, 0.0, metrics["stain_intensity"])
	assert.Equal(t, 1, metrics["intensity_score"])
	assert.Equal(t, 1, metrics["staining_score"])
	assert.Equal(t, 2, metrics["total_score"])
	assert.Equal(t, "Negative", metrics["outcome"])
}

func TestEstrogenReceptorStainedFrame(t *testing.T) {
	p := NewEstrogenReceptorPipeline()
	frame := stainedFrame(t, []image.Point{{X: 80, Y: 80}, {X: 200, Y: 160}}, 14)

	result, metrics, err := p.Process(frame, nil)
	require.NoError(t, err)
	defer result.Close()

	requireSameDims(t, frame, result)
	assert.Greater(t, metrics["brown_area_percent"].(float64), 0.0)
	assert.Greater(t, metrics["brown_cell_count"].(int), 0)

	total := metrics["total_score"].(int)
	assert.GreaterOrEqual(t, total, 2)
	assert.LessOrEqual(t, total, 8)
	assert.Equal(t, metrics["staining_score"].(int)+metrics["intensity_score"].(int), total)
}

func TestEstrogenReceptorDeterministic(t *testing.T) {
	p := NewEstrogenReceptorPipeline()
	frame := stainedFrame(t, []image.Point{{X: 100, Y: 100}}, 14)

	r1, m1, err := p.Process(frame, nil)
	require.NoError(t, err)
	defer r1.Close()
	r2, m2, err := p.Process(frame, nil)
	require.NoError(t, err)
	defer r2.Close()

	assert.Equal(t, m1, m2)
}
