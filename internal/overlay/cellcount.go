package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// CellCountPipeline detects and counts cells with a global intensity
// threshold followed by external contour extraction and an area filter.
type CellCountPipeline struct {
	desc Descriptor
}

// NewCellCountPipeline creates the threshold/contour cell counter.
func NewCellCountPipeline() *CellCountPipeline {
	return &CellCountPipeline{
		desc: Descriptor{
			Name:        "cell_count",
			DisplayName: "Cell Count Overlay",
			Description: "Detects and counts cells in microscope images",
			DefaultParams: Params{
				"threshold":      128,
				"min_size":       50,
				"max_size":       1000,
				"show_contours":  true,
				"contour_color":  []int{0, 255, 0},
				"show_count":     true,
				"count_position": []int{10, 30},
				"font_scale":     1.0,
				"font_color":     []int{255, 255, 255},
			},
			ParamDescriptions: map[string]string{
				"threshold":      "Threshold value for binary conversion (0-255)",
				"min_size":       "Minimum cell size in pixels",
				"max_size":       "Maximum cell size in pixels",
				"show_contours":  "Whether to draw contours around detected cells",
				"contour_color":  "RGB color for contours",
				"show_count":     "Whether to show the cell count on the image",
				"count_position": "Position [x, y] to display the count",
				"font_scale":     "Scale of the font for the count",
				"font_color":     "RGB color for the count text",
			},
		},
	}
}

func (cp *CellCountPipeline) Descriptor() Descriptor { return cp.desc }

func (cp *CellCountPipeline) Process(frame gocv.Mat, params Params) (gocv.Mat, Metrics, error) {
	p := mergeParams(cp.desc.DefaultParams, params)

	gray := toGray(frame)
	defer gray.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, float32(intParam(p, "threshold", 128)), 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minSize := floatParam(p, "min_size", 50)
	maxSize := floatParam(p, "max_size", 1000)

	accepted := gocv.NewPointsVector()
	defer accepted.Close()
	var areas []float64
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area >= minSize && area <= maxSize {
			accepted.Append(contours.At(i))
			areas = append(areas, area)
		}
	}

	result := frame.Clone()

	if boolParam(p, "show_contours", true) {
		gocv.DrawContours(&result, accepted, -1, colorParam(p, "contour_color", color.RGBA{G: 255, A: 255}), 2)
	}

	cellCount := accepted.Size()
	if boolParam(p, "show_count", true) {
		gocv.PutText(&result,
			fmt.Sprintf("Cell Count: %d", cellCount),
			pointParam(p, "count_position", image.Pt(10, 30)),
			gocv.FontHersheySimplex,
			floatParam(p, "font_scale", 1.0),
			colorParam(p, "font_color", color.RGBA{R: 255, G: 255, B: 255, A: 255}),
			2)
	}

	sizes := Metrics{}
	if len(areas) > 0 {
		minArea, maxArea, sum := areas[0], areas[0], 0.0
		for _, a := range areas {
			if a < minArea {
				minArea = a
			}
			if a > maxArea {
				maxArea = a
			}
			sum += a
		}
		sizes["min_size"] = minArea
		sizes["max_size"] = maxArea
		sizes["avg_size"] = sum / float64(len(areas))
	}

	metrics := Metrics{
		"cell_count": cellCount,
		"sizes":      sizes,
	}
	return result, metrics, nil
}

// toGray returns a new single-channel Mat regardless of the input's channel
// count.
func toGray(frame gocv.Mat) gocv.Mat {
	if frame.Channels() == 1 {
		return frame.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	return gray
}

// toBGR returns a new 3-channel Mat regardless of the input's channel count.
func toBGR(frame gocv.Mat) gocv.Mat {
	if frame.Channels() == 1 {
		bgr := gocv.NewMat()
		gocv.CvtColor(frame, &bgr, gocv.ColorGrayToBGR)
		return bgr
	}
	return frame.Clone()
}
