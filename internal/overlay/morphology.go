package overlay

import (
	"image/color"

	"gocv.io/x/gocv"
)

// Mask cleanup helpers shared by the segmentation pipelines. All masks are
// single-channel 8-bit with foreground 255.

// removeSmallObjects returns a new mask with every connected component
// smaller than minSize pixels removed.
func removeSmallObjects(mask gocv.Mat, minSize int) gocv.Mat {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)

	keep := make([]bool, n)
	for label := 1; label < n; label++ {
		keep[label] = int(stats.GetIntAt(label, int(gocv.CCStatArea))) >= minSize
	}

	out := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1)
	for y := 0; y < mask.Rows(); y++ {
		for x := 0; x < mask.Cols(); x++ {
			label := int(labels.GetIntAt(y, x))
			if label > 0 && keep[label] {
				out.SetUCharAt(y, x, 255)
			}
		}
	}
	return out
}

// fillSmallHoles returns a new mask with every background pocket not
// touching the image border and at most holeSize pixels filled in.
func fillSmallHoles(mask gocv.Mat, holeSize int) gocv.Mat {
	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(mask, &inverted)

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(inverted, &labels, &stats, &centroids)

	fill := make([]bool, n)
	for label := 1; label < n; label++ {
		left := int(stats.GetIntAt(label, int(gocv.CCStatLeft)))
		top := int(stats.GetIntAt(label, int(gocv.CCStatTop)))
		width := int(stats.GetIntAt(label, int(gocv.CCStatWidth)))
		height := int(stats.GetIntAt(label, int(gocv.CCStatHeight)))
		area := int(stats.GetIntAt(label, int(gocv.CCStatArea)))

		touchesBorder := left == 0 || top == 0 ||
			left+width >= mask.Cols() || top+height >= mask.Rows()
		fill[label] = !touchesBorder && area <= holeSize
	}

	out := mask.Clone()
	for y := 0; y < mask.Rows(); y++ {
		for x := 0; x < mask.Cols(); x++ {
			label := int(labels.GetIntAt(y, x))
			if label > 0 && fill[label] {
				out.SetUCharAt(y, x, 255)
			}
		}
	}
	return out
}

// countComponents returns the number of connected components in the mask,
// excluding background.
func countComponents(mask gocv.Mat) int {
	labels := gocv.NewMat()
	defer labels.Close()
	return gocv.ConnectedComponents(mask, &labels) - 1
}

// drawMaskContours burns the external contours of mask into dst.
func drawMaskContours(dst *gocv.Mat, mask gocv.Mat, c color.RGBA, thickness int) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	gocv.DrawContours(dst, contours, -1, c, thickness)
}
