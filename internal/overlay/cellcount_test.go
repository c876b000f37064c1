package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var cellCenters = []image.Point{
	{X: 60, Y: 60}, {X: 160, Y: 60}, {X: 60, Y: 160}, {X: 160, Y: 160},
}

func cellFrame(t *testing.T) gocv.Mat {
	frame := blankFrame(t, 320, 240)
	drawCells(&frame, cellCenters, 10, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	return frame
}

func TestCellCountDetectsCells(t *testing.T) {
	p := NewCellCountPipeline()
	frame := cellFrame(t)

	result, metrics, err := p.Process(frame, nil)
	require.NoError(t, err)
	defer result.Close()

	requireSameDims(t, frame, result)
	assert.Equal(t, len(cellCenters), metrics["cell_count"])

	sizes, ok := metrics["sizes"].(Metrics)
	require.True(t, ok)
	assert.Contains(t, sizes, "min_size")
	assert.Contains(t, sizes, "max_size")
	assert.Contains(t, sizes, "avg_size")
}

func TestCellCountDoesNotMutateInput(t *testing.T) {
	p := NewCellCountPipeline()
	frame := cellFrame(t)
	before := frame.Clone()
	defer before.Close()

	result, _, err := p.Process(frame, nil)
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, before.ToBytes(), frame.ToBytes())
}

func TestCellCountSizeFilterBounds(t *testing.T) {
	p := NewCellCountPipeline()
	frame := cellFrame(t)

	result, metrics, err := p.Process(frame, Params{"min_size": 100.0, "max_size": 500.0})
	require.NoError(t, err)
	defer result.Close()

	sizes, ok := metrics["sizes"].(Metrics)
	require.True(t, ok)
	if len(sizes) > 0 {
		assert.GreaterOrEqual(t, sizes["min_size"].(float64), 100.0)
		assert.LessOrEqual(t, sizes["max_size"].(float64), 500.0)
	}
}

func TestCellCountSizeFilterExcludesAll(t *testing.T) {
	p := NewCellCountPipeline()
	frame := cellFrame(t)

	// Every drawn cell is far smaller than this window.
	result, metrics, err := p.Process(frame, Params{"min_size": 5000.0, "max_size": 9000.0})
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, 0, metrics["cell_count"])
	assert.Empty(t, metrics["sizes"])
}

func TestCellCountAllBlackFrame(t *testing.T) {
	p := NewCellCountPipeline()
	frame := blankFrame(t, 320, 240)

	result, metrics, err := p.Process(frame, nil)
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, 0, metrics["cell_count"])
	assert.Empty(t, metrics["sizes"])
}

func TestCellCountDeterministic(t *testing.T) {
	p := NewCellCountPipeline()
	frame := cellFrame(t)

	r1, m1, err := p.Process(frame, nil)
	require.NoError(t, err)
	defer r1.Close()
	r2, m2, err := p.Process(frame, nil)
	require.NoError(t, err)
	defer r2.Close()

	assert.Equal(t, m1, m2)
	assert.Equal(t, r1.ToBytes(), r2.ToBytes())
}

func TestCellCountGrayscaleInput(t *testing.T) {
	p := NewCellCountPipeline()
	gray := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC1)
	defer gray.Close()
	gocv.Circle(&gray, image.Pt(100, 100), 10, color.RGBA{R: 200, G: 200, B: 200, A: 255}, -1)

	result, metrics, err := p.Process(gray, nil)
	require.NoError(t, err)
	defer result.Close()

	requireSameDims(t, gray, result)
	assert.Equal(t, 1, metrics["cell_count"])
}
