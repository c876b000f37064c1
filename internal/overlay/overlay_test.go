package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestMergeParamsEmptyOverrideYieldsDefaults(t *testing.T) {
	defaults := Params{"threshold": 128, "min_size": 50}

	merged := mergeParams(defaults, Params{})
	assert.Equal(t, Params{"threshold": 128, "min_size": 50}, merged)

	merged = mergeParams(defaults, nil)
	assert.Equal(t, Params{"threshold": 128, "min_size": 50}, merged)
}

func TestMergeParamsOverrideWinsOthersKeepDefaults(t *testing.T) {
	defaults := Params{"threshold": 128, "min_size": 50, "max_size": 1000}

	merged := mergeParams(defaults, Params{"threshold": 42.0})
	assert.Equal(t, 42.0, merged["threshold"])
	assert.Equal(t, 50, merged["min_size"])
	assert.Equal(t, 1000, merged["max_size"])
}

func TestMergeParamsDoesNotMutateInputs(t *testing.T) {
	defaults := Params{"threshold": 128}
	overrides := Params{"threshold": 200, "extra": true}

	merged := mergeParams(defaults, overrides)
	merged["threshold"] = 7

	assert.Equal(t, 128, defaults["threshold"])
	assert.Equal(t, 200, overrides["threshold"])
}

func TestMergeParamsUnknownKeysHarmless(t *testing.T) {
	merged := mergeParams(Params{"threshold": 128}, Params{"no_such_param": 1})
	assert.Equal(t, 128, merged["threshold"])
	assert.Equal(t, 1, merged["no_such_param"])
}

func TestParamAccessorsCoerceJSONNumbers(t *testing.T) {
	p := Params{
		"int_as_float": 30.0,
		"plain_int":    12,
		"flag":         true,
		"color":        []interface{}{255.0, 128.0, 0.0},
		"position":     []interface{}{10.0, 30.0},
	}

	assert.Equal(t, 30, intParam(p, "int_as_float", 0))
	assert.Equal(t, 12, intParam(p, "plain_int", 0))
	assert.Equal(t, 12.0, floatParam(p, "plain_int", 0))
	assert.True(t, boolParam(p, "flag", false))
	assert.Equal(t, color.RGBA{R: 255, G: 128, B: 0, A: 255}, colorParam(p, "color", color.RGBA{}))
	assert.Equal(t, image.Pt(10, 30), pointParam(p, "position", image.Point{}))
}

func TestParamAccessorsFallBackOnMissingOrWrongType(t *testing.T) {
	p := Params{"threshold": "not a number"}

	assert.Equal(t, 128, intParam(p, "threshold", 128))
	assert.Equal(t, 0.5, floatParam(p, "missing", 0.5))
	assert.False(t, boolParam(p, "missing", false))
	fallback := color.RGBA{G: 255, A: 255}
	assert.Equal(t, fallback, colorParam(p, "missing", fallback))
}

func TestToBGRPromotesGrayscale(t *testing.T) {
	gray := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV8UC1)
	defer gray.Close()
	gray.SetUCharAt(5, 5, 200)

	bgr := toBGR(gray)
	defer bgr.Close()
	assert.Equal(t, 3, bgr.Channels())
	assert.Equal(t, gocv.Vecb{200, 200, 200}, bgr.GetVecbAt(5, 5))

	clone := toBGR(bgr)
	defer clone.Close()
	assert.Equal(t, bgr.ToBytes(), clone.ToBytes())
}

// blankFrame creates a black BGR frame the tests own.
func blankFrame(t *testing.T, width, height int) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return frame
}

// drawCells stamps filled gray circles onto a frame.
func drawCells(frame *gocv.Mat, centers []image.Point, radius int, c color.RGBA) {
	for _, center := range centers {
		gocv.Circle(frame, center, radius, c, -1)
	}
}

func requireSameDims(t *testing.T, frame, result gocv.Mat) {
	t.Helper()
	require.Equal(t, frame.Rows(), result.Rows())
	require.Equal(t, frame.Cols(), result.Cols())
}
