package overlay

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestTubuleScore(t *testing.T) {
	assert.Equal(t, 1, tubuleScore(0.9))
	assert.Equal(t, 1, tubuleScore(0.76))
	assert.Equal(t, 2, tubuleScore(0.75))
	assert.Equal(t, 2, tubuleScore(0.5))
	assert.Equal(t, 2, tubuleScore(0.11))
	assert.Equal(t, 3, tubuleScore(0.10))
	assert.Equal(t, 3, tubuleScore(0.0))
}

func TestTubuleOverlayDarkensOutsideMask(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), 40, 40, gocv.MatTypeCV8UC3)
	defer frame.Close()

	mask := gocv.Zeros(40, 40, gocv.MatTypeCV8UC1)
	defer mask.Close()
	gocv.Rectangle(&mask, image.Rect(5, 5, 25, 25), white, -1)

	result := tubuleOverlay(frame, mask)
	defer result.Close()

	inside := result.GetVecbAt(10, 10)
	outside := result.GetVecbAt(35, 35)
	assert.EqualValues(t, 200, inside[0], "masked area keeps original intensity")
	assert.Less(t, int(outside[0]), 50, "unmasked area is darkened")
}
