package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// stainSegmentParams tunes the LAB/watershed stain segmentation shared by
// the cell count v2 and estrogen receptor pipelines.
type stainSegmentParams struct {
	otsuMultiplier float64
	minPeakDist    int
	minSize        int
	holeSize       int
}

// segmentStained isolates stained regions of a BGR frame. The lightness
// channel of the LAB conversion is thresholded at the Otsu level scaled by
// a multiplier (stain is darker than background, so below-threshold pixels
// are foreground), touching cells are split by a distance-transform
// watershed seeded at local maxima, and the result is cleaned with
// small-object removal and small-hole filling.
//
// The returned mask is a new 8-bit single-channel Mat owned by the caller.
func segmentStained(frame gocv.Mat, sp stainSegmentParams) gocv.Mat {
	bgr := toBGR(frame)
	defer bgr.Close()

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(bgr, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()
	lightness := channels[0]

	// Otsu level from a throwaway pass, then the actual inverse threshold
	// at the scaled level.
	scratch := gocv.NewMat()
	otsuLevel := gocv.Threshold(lightness, &scratch, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	scratch.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(lightness, &binary, float32(float64(otsuLevel)*sp.otsuMultiplier), 255, gocv.ThresholdBinaryInv)

	distance := gocv.NewMat()
	defer distance.Close()
	distLabels := gocv.NewMat()
	defer distLabels.Close()
	gocv.DistanceTransform(binary, &distance, &distLabels, gocv.DistL2, gocv.DistanceMask3, gocv.DistanceLabelCComp)

	markers := watershedMarkers(distance, binary, sp.minPeakDist)
	defer markers.Close()
	surface := distanceSurface(distance)
	defer surface.Close()
	gocv.Watershed(surface, &markers)

	segmented := gocv.NewMatWithSize(frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC1)
	defer segmented.Close()
	for y := 0; y < frame.Rows(); y++ {
		for x := 0; x < frame.Cols(); x++ {
			if markers.GetIntAt(y, x) > 0 && binary.GetUCharAt(y, x) > 0 {
				segmented.SetUCharAt(y, x, 255)
			}
		}
	}

	opened := removeSmallObjects(segmented, sp.minSize)
	defer opened.Close()
	return fillSmallHoles(opened, sp.holeSize)
}

// distanceSurface builds the 3-channel flooding surface for the watershed:
// the distance map normalized to 8 bits and negated, so every seeded peak
// sits at the bottom of its own basin and touching cells split along the
// equidistant ridge between them rather than along image gradients.
func distanceSurface(distance gocv.Mat) gocv.Mat {
	norm := gocv.NewMat()
	defer norm.Close()
	gocv.Normalize(distance, &norm, 0, 255, gocv.NormMinMax)

	negated := gocv.NewMat()
	defer negated.Close()
	norm.ConvertToWithParams(&negated, gocv.MatTypeCV8UC1, -1, 255)

	surface := gocv.NewMat()
	gocv.Merge([]gocv.Mat{negated, negated, negated}, &surface)
	return surface
}

// watershedMarkers labels the local maxima of the distance map within the
// foreground mask as watershed seeds. Maxima are detected by comparing the
// map against its dilation with a (2*minDist+1) square footprint; the image
// border is excluded.
func watershedMarkers(distance, foreground gocv.Mat, minDist int) gocv.Mat {
	if minDist < 1 {
		minDist = 1
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2*minDist+1, 2*minDist+1))
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(distance, &dilated, kernel)

	isMax := gocv.NewMat()
	defer isMax.Close()
	gocv.Compare(distance, dilated, &isMax, gocv.CompareEQ)

	positiveF := gocv.NewMat()
	defer positiveF.Close()
	gocv.Threshold(distance, &positiveF, 0, 255, gocv.ThresholdBinary)
	positive := gocv.NewMat()
	defer positive.Close()
	positiveF.ConvertTo(&positive, gocv.MatTypeCV8UC1)

	peaks := gocv.NewMat()
	defer peaks.Close()
	gocv.BitwiseAnd(isMax, positive, &peaks)
	gocv.BitwiseAnd(peaks, foreground, &peaks)
	gocv.Rectangle(&peaks, image.Rect(0, 0, peaks.Cols(), peaks.Rows()), color.RGBA{}, 1)

	markers := gocv.NewMat()
	gocv.ConnectedComponents(peaks, &markers)
	return markers
}
