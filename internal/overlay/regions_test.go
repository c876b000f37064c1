package overlay

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestExtractRegionsMeasuresComponents(t *testing.T) {
	mask := binaryMask(t, 200, 200)
	gocv.Circle(&mask, image.Pt(50, 50), 15, white, -1)
	gocv.Rectangle(&mask, image.Rect(120, 90, 170, 100), white, -1)

	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 0, 0, 0), 200, 200, gocv.MatTypeCV8UC1)
	defer gray.Close()

	regions := extractRegions(mask, gray, 10)
	require.Len(t, regions, 2)

	var circle, bar regionFeatures
	if regions[0].area > regions[1].area {
		circle, bar = regions[0], regions[1]
	} else {
		bar, circle = regions[0], regions[1]
	}

	// Discrete circle of radius 15.
	assert.InDelta(t, 700, circle.area, 80)
	assert.InDelta(t, 50, circle.centroidX, 1.5)
	assert.InDelta(t, 50, circle.centroidY, 1.5)
	assert.Greater(t, circle.circularity, 0.8)
	assert.Less(t, circle.eccentricity, 0.3)
	assert.Greater(t, circle.solidity, 0.9)
	assert.InDelta(t, 90, circle.meanIntensity, 0.5)
	assert.InDelta(t, 0, circle.intensityStd, 0.1)

	// A 50x10 bar is strongly elongated.
	assert.Greater(t, bar.eccentricity, 0.9)
	assert.Greater(t, bar.aspectRatio, 3.0)
	assert.Greater(t, bar.majorAxis, bar.minorAxis)
}

func TestExtractRegionsMinAreaFilter(t *testing.T) {
	mask := binaryMask(t, 100, 100)
	gocv.Circle(&mask, image.Pt(30, 30), 12, white, -1)
	gocv.Rectangle(&mask, image.Rect(70, 70, 73, 73), white, -1)

	gray := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer gray.Close()

	regions := extractRegions(mask, gray, 100)
	require.Len(t, regions, 1)
	assert.GreaterOrEqual(t, regions[0].area, 100.0)
}

func TestExtractRegionsEmptyMask(t *testing.T) {
	mask := binaryMask(t, 50, 50)
	gray := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC1)
	defer gray.Close()

	assert.Empty(t, extractRegions(mask, gray, 0))
}

func TestRemoveEccentricDropsElongatedObjects(t *testing.T) {
	mask := binaryMask(t, 200, 200)
	gocv.Circle(&mask, image.Pt(50, 50), 15, white, -1)
	gocv.Rectangle(&mask, image.Rect(100, 90, 190, 96), white, -1)

	round := removeEccentric(mask, 0.9)
	defer round.Close()

	assert.Equal(t, 1, countComponents(round))
	assert.Equal(t, 255, int(round.GetUCharAt(50, 50)))
	assert.Equal(t, 0, int(round.GetUCharAt(93, 140)))
}

func TestRemoveEccentricEmptyMask(t *testing.T) {
	mask := binaryMask(t, 50, 50)

	out := removeEccentric(mask, 0.9)
	defer out.Close()

	assert.Equal(t, 0, gocv.CountNonZero(out))
}
