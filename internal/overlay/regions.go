package overlay

import (
	"math"

	"gocv.io/x/gocv"
)

// regionFeatures holds the morphometric measurements of one connected
// component of a binary mask.
type regionFeatures struct {
	area          float64
	perimeter     float64
	circularity   float64
	solidity      float64
	eccentricity  float64
	majorAxis     float64
	minorAxis     float64
	aspectRatio   float64
	meanIntensity float64
	maxIntensity  float64
	minIntensity  float64
	intensityStd  float64
	equivDiameter float64
	centroidX     float64
	centroidY     float64
}

// labelAccum accumulates raw spatial and intensity moments for one label.
type labelAccum struct {
	n             float64
	sx, sy        float64
	sxx, syy, sxy float64
	sumI, sumI2   float64
	minI, maxI    float64
	seenIntensity bool
}

// accumulateLabels walks the label image once, gathering moments per label.
// gray may be empty when intensity features are not needed.
func accumulateLabels(labels gocv.Mat, count int, gray gocv.Mat) []labelAccum {
	acc := make([]labelAccum, count)
	hasGray := !gray.Empty()
	for y := 0; y < labels.Rows(); y++ {
		for x := 0; x < labels.Cols(); x++ {
			label := int(labels.GetIntAt(y, x))
			if label <= 0 || label >= count {
				continue
			}
			a := &acc[label]
			fx, fy := float64(x), float64(y)
			a.n++
			a.sx += fx
			a.sy += fy
			a.sxx += fx * fx
			a.syy += fy * fy
			a.sxy += fx * fy
			if hasGray {
				v := float64(gray.GetUCharAt(y, x))
				a.sumI += v
				a.sumI2 += v * v
				if !a.seenIntensity || v < a.minI {
					a.minI = v
				}
				if !a.seenIntensity || v > a.maxI {
					a.maxI = v
				}
				a.seenIntensity = true
			}
		}
	}
	return acc
}

// shape derives the ellipse-equivalent axes and eccentricity from the
// accumulated second-order central moments.
func (a *labelAccum) shape() (major, minor, eccentricity float64) {
	if a.n == 0 {
		return 0, 0, 0
	}
	cx, cy := a.sx/a.n, a.sy/a.n
	mu20 := a.sxx/a.n - cx*cx
	mu02 := a.syy/a.n - cy*cy
	mu11 := a.sxy/a.n - cx*cy

	common := math.Sqrt(4*mu11*mu11 + (mu20-mu02)*(mu20-mu02))
	l1 := (mu20 + mu02 + common) / 2
	l2 := (mu20 + mu02 - common) / 2
	if l2 < 0 {
		l2 = 0
	}
	major = 4 * math.Sqrt(l1)
	minor = 4 * math.Sqrt(l2)
	if l1 > 0 {
		eccentricity = math.Sqrt(1 - l2/l1)
	}
	return major, minor, eccentricity
}

// extractRegions measures every connected component of mask with at least
// minArea pixels. gray supplies the intensity image; pass the grayscale of
// the original frame.
func extractRegions(mask, gray gocv.Mat, minArea int) []regionFeatures {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	count := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)
	if count <= 1 {
		return nil
	}
	acc := accumulateLabels(labels, count, gray)
	perimeters, solidities := contourShapeStats(mask, labels, count)

	var regions []regionFeatures
	for label := 1; label < count; label++ {
		area := float64(stats.GetIntAt(label, int(gocv.CCStatArea)))
		if area < float64(minArea) {
			continue
		}
		a := &acc[label]
		major, minor, ecc := a.shape()

		f := regionFeatures{
			area:          area,
			perimeter:     perimeters[label],
			solidity:      solidities[label],
			eccentricity:  ecc,
			majorAxis:     major,
			minorAxis:     minor,
			equivDiameter: math.Sqrt(4 * area / math.Pi),
			centroidX:     centroids.GetDoubleAt(label, 0),
			centroidY:     centroids.GetDoubleAt(label, 1),
		}
		if f.perimeter > 0 {
			f.circularity = 4 * math.Pi * area / (f.perimeter * f.perimeter)
		}
		if minor > 0 {
			f.aspectRatio = major / minor
		}
		if a.n > 0 {
			f.meanIntensity = a.sumI / a.n
			f.minIntensity = a.minI
			f.maxIntensity = a.maxI
			variance := a.sumI2/a.n - f.meanIntensity*f.meanIntensity
			if variance > 0 {
				f.intensityStd = math.Sqrt(variance)
			}
		}
		regions = append(regions, f)
	}
	return regions
}

// contourShapeStats matches each external contour of mask to its component
// label and records perimeter and solidity per label.
func contourShapeStats(mask, labels gocv.Mat, count int) (perimeters, solidities []float64) {
	perimeters = make([]float64, count)
	solidities = make([]float64, count)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if contour.Size() == 0 {
			continue
		}
		pt := contour.At(0)
		label := int(labels.GetIntAt(pt.Y, pt.X))
		if label <= 0 || label >= count {
			continue
		}
		perimeters[label] = gocv.ArcLength(contour, true)

		hull := gocv.NewMat()
		gocv.ConvexHull(contour, &hull, false, true)
		hullPoints := gocv.NewPointVectorFromMat(hull)
		hullArea := gocv.ContourArea(hullPoints)
		if hullArea > 0 {
			solidities[label] = gocv.ContourArea(contour) / hullArea
		}
		hullPoints.Close()
		hull.Close()
	}
	return perimeters, solidities
}

// removeEccentric returns a new mask holding only the components whose
// eccentricity is below the given maximum. Used to discard elongated
// artifacts that cannot be cell nuclei.
func removeEccentric(mask gocv.Mat, maxEccentricity float64) gocv.Mat {
	labels := gocv.NewMat()
	defer labels.Close()

	count := gocv.ConnectedComponents(mask, &labels)
	out := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1)
	if count <= 1 {
		return out
	}

	noIntensity := gocv.NewMat()
	defer noIntensity.Close()
	acc := accumulateLabels(labels, count, noIntensity)
	keep := make([]bool, count)
	for label := 1; label < count; label++ {
		_, _, ecc := acc[label].shape()
		keep[label] = ecc < maxEccentricity
	}
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
