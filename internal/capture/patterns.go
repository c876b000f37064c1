package capture

import (
	"image"
	"image/color"
	"math/rand"

	"gocv.io/x/gocv"
)

// testPatterns builds the synthetic frames served when no camera is
// available: a regular cell grid, a fluorescence-like dot field and a
// randomized cluster pattern.
func testPatterns(width, height int) []gocv.Mat {
	return []gocv.Mat{
		cellGridPattern(width, height),
		fluorescencePattern(width, height),
		clusterPattern(width, height),
	}
}

func cellGridPattern(width, height int) gocv.Mat {
	grid := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	for y := 50; y < height; y += 100 {
		for x := 50; x < width; x += 100 {
			gocv.Circle(&grid, image.Pt(x, y), 20, color.RGBA{R: 200, G: 200, B: 200, A: 255}, -1)
			gocv.Circle(&grid, image.Pt(x, y), 20, color.RGBA{R: 100, G: 100, B: 100, A: 255}, 2)
		}
	}
	return grid
}

func fluorescencePattern(width, height int) gocv.Mat {
	dots := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	for y := 50; y < height; y += 100 {
		for x := 50; x < width; x += 100 {
			brightness := uint8(100 + rand.Intn(155))
			gocv.Circle(&dots, image.Pt(x, y), 30, color.RGBA{G: brightness, A: 255}, -1)
		}
	}
	return dots
}

func clusterPattern(width, height int) gocv.Mat {
	clusters := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	for i := 0; i < 5; i++ {
		centerX := 100 + rand.Intn(width-200)
		centerY := 100 + rand.Intn(height-200)
		for j := 0; j < 20; j++ {
			x := centerX + rand.Intn(161) - 80
			y := centerY + rand.Intn(161) - 80
			size := 10 + rand.Intn(15)
			gocv.Circle(&clusters, image.Pt(x, y), size, color.RGBA{R: 200, G: 200, B: 200, A: 255}, -1)
			gocv.Circle(&clusters, image.Pt(x, y), size, color.RGBA{R: 100, G: 100, B: 100, A: 255}, 1)
		}
	}
	return clusters
}
