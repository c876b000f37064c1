package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// EstrogenReceptorPipeline detects ER staining and computes an Allred-like
// score from staining extent and intensity. Brown (DAB-stained) regions are
// found with the watershed stain segmentation; blue (hematoxylin
// counterstain) regions with a fixed-range color threshold.
type EstrogenReceptorPipeline struct {
	desc Descriptor
}

// Fixed BGR bounds of the hematoxylin counterstain class.
var (
	counterstainLower = gocv.NewScalar(165, 154, 130, 0)
	counterstainUpper = gocv.NewScalar(190, 170, 170, 0)
)

// NewEstrogenReceptorPipeline creates the ER staining pipeline.
func NewEstrogenReceptorPipeline() *EstrogenReceptorPipeline {
	return &EstrogenReceptorPipeline{
		desc: Descriptor{
			Name:        "estrogen_receptor",
			DisplayName: "Estrogen Receptor Overlay",
			Description: "Detects and scores estrogen receptor (ER) staining in microscope images.",
			DefaultParams: Params{
				"min_size":            50,
				"max_eccentricity":    0.9,
				"show_contours":       true,
				"contour_color_blue":  []int{0, 0, 255},
				"contour_color_brown": []int{255, 255, 255},
			},
			ParamDescriptions: map[string]string{
				"min_size":            "Minimum object size in pixels",
				"max_eccentricity":    "Maximum eccentricity for round objects",
				"show_contours":       "Whether to draw contours around detected cells",
				"contour_color_blue":  "RGB color for blue cell contours",
				"contour_color_brown": "RGB color for brown cell contours",
			},
		},
	}
}

func (ep *EstrogenReceptorPipeline) Descriptor() Descriptor { return ep.desc }

func (ep *EstrogenReceptorPipeline) Process(frame gocv.Mat, params Params) (gocv.Mat, Metrics, error) {
	p := mergeParams(ep.desc.DefaultParams, params)
	minSize := intParam(p, "min_size", 50)

	brownMask := segmentStained(frame, stainSegmentParams{
		otsuMultiplier: 1.0,
		minPeakDist:    4,
		minSize:        minSize,
		holeSize:       0,
	})
	defer brownMask.Close()

	blueMask := ep.counterstainMask(frame, minSize, floatParam(p, "max_eccentricity", 0.9))
	defer blueMask.Close()

	totalPixels := float64(frame.Rows() * frame.Cols())
	bluePercent := float64(gocv.CountNonZero(blueMask)) / totalPixels * 100
	brownPercent := float64(gocv.CountNonZero(brownMask)) / totalPixels * 100

	stainedTotal := bluePercent + brownPercent
	brownShare := 0.0
	if stainedTotal > 0 {
		brownShare = brownPercent / stainedTotal * 100
	}
	extentScore := stainingExtentScore(brownShare)

	gray := toGray(frame)
	defer gray.Close()
	median := 0.0
	intensityScore := 1
	if gocv.CountNonZero(brownMask) > 0 {
		median = maskedGrayStats(gray, brownMask).median / 255.0
		intensityScore = stainIntensityScore(median)
	}

	totalScore := extentScore + intensityScore
	outcome := erOutcome(totalScore)

	result := frame.Clone()
	if boolParam(p, "show_contours", true) {
		drawMaskContours(&result, blueMask, colorParam(p, "contour_color_blue", color.RGBA{B: 255, A: 255}), 1)
		drawMaskContours(&result, brownMask, colorParam(p, "contour_color_brown", color.RGBA{R: 255, G: 255, B: 255, A: 255}), 1)
	}
	gocv.PutText(&result,
		fmt.Sprintf("ER Score: %d (%s)", totalScore, outcome),
		image.Pt(10, 30), gocv.FontHersheySimplex, 1.0,
		color.RGBA{R: 255, G: 255, B: 255, A: 255}, 2)

	metrics := Metrics{
		"blue_cell_count":    countComponents(blueMask),
		"brown_cell_count":   countComponents(brownMask),
		"blue_area_percent":  bluePercent,
		"brown_area_percent": brownPercent,
		"staining_score":     extentScore,
		"stain_intensity":    median,
		"intensity_score":    intensityScore,
		"total_score":        totalScore,
		"outcome":            outcome,
	}
	return result, metrics, nil
}

// counterstainMask thresholds the fixed counterstain color range, fills
// small holes, drops small objects and removes elongated artifacts.
func (ep *EstrogenReceptorPipeline) counterstainMask(frame gocv.Mat, minSize int, maxEcc float64) gocv.Mat {
	inRange := gocv.NewMat()
	defer inRange.Close()
	gocv.InRangeWithScalar(frame, counterstainLower, counterstainUpper, &inRange)

	filled := fillSmallHoles(inRange, 50)
	defer filled.Close()
	opened := removeSmallObjects(filled, minSize)
	defer opened.Close()
	return removeEccentric(opened, maxEcc)
}

// stainingExtentScore buckets the brown share of total stained area (in
// percent) into the five ordinal extent levels.
func stainingExtentScore(brownShare float64) int {
	switch {
	case brownShare < 1:
		return 1
	case brownShare < 10:
		return 2
	case brownShare < 33:
		return 3
	case brownShare < 66:
		return 4
	default:
		return 5
	}
}

// stainIntensityScore buckets the normalized median stain intensity; darker
// staining scores higher.
func stainIntensityScore(median float64) int {
	switch {
	case median < 0.3:
		return 3
	case median < 0.6:
		return 2
	default:
		return 1
	}
}

// erOutcome maps the combined score (2-8) to the reported outcome.
func erOutcome(total int) string {
	switch {
	case total <= 2:
		return "Negative"
	case total == 3:
		return "Low Positive"
	default:
		return "Positive"
	}
}
