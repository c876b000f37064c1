package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// FluorescencePipeline measures fluorescence intensity above a threshold
// and blends a false-color map of the grayscale signal into the detected
// regions.
type FluorescencePipeline struct {
	desc Descriptor
}

// NewFluorescencePipeline creates the fluorescence intensity pipeline.
func NewFluorescencePipeline() *FluorescencePipeline {
	return &FluorescencePipeline{
		desc: Descriptor{
			Name:        "fluorescence",
			DisplayName: "Fluorescence Detection",
			Description: "Detects and measures fluorescence intensity in microscope images",
			DefaultParams: Params{
				"threshold":          50,
				"color_map":          int(gocv.ColormapJet),
				"alpha":              0.5,
				"show_intensity":     true,
				"intensity_position": []int{10, 30},
				"font_scale":         1.0,
				"font_color":         []int{255, 255, 255},
			},
			ParamDescriptions: map[string]string{
				"threshold":          "Threshold value for fluorescence detection (0-255)",
				"color_map":          "OpenCV colormap to apply (0-21)",
				"alpha":              "Transparency of the overlay (0.0-1.0)",
				"show_intensity":     "Whether to show the intensity value on the image",
				"intensity_position": "Position [x, y] to display the intensity",
				"font_scale":         "Scale of the font for the intensity",
				"font_color":         "RGB color for the intensity text",
			},
		},
	}
}

func (fp *FluorescencePipeline) Descriptor() Descriptor { return fp.desc }

func (fp *FluorescencePipeline) Process(frame gocv.Mat, params Params) (gocv.Mat, Metrics, error) {
	p := mergeParams(fp.desc.DefaultParams, params)

	bgr := toBGR(frame)
	defer bgr.Close()
	gray := toGray(frame)
	defer gray.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, float32(intParam(p, "threshold", 50)), 255, gocv.ThresholdBinary)

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(gray, &colored, gocv.ColormapTypes(intParam(p, "color_map", int(gocv.ColormapJet))))

	// Blend the false color into a scratch surface, then copy only the
	// masked regions back so below-threshold pixels keep their original
	// values.
	alpha := floatParam(p, "alpha", 0.5)
	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(colored, alpha, bgr, 1-alpha, 0, &blended)

	result := bgr.Clone()
	blended.CopyToWithMask(&result, mask)

	maskedPixels := gocv.CountNonZero(mask)
	totalPixels := mask.Rows() * mask.Cols()
	areaPercentage := 0.0
	if totalPixels > 0 {
		areaPercentage = float64(maskedPixels) / float64(totalPixels) * 100
	}

	intensity := Metrics{}
	if maskedPixels > 0 {
		stats := maskedGrayStats(gray, mask)
		intensity = Metrics{
			"min_intensity":   stats.min,
			"max_intensity":   stats.max,
			"avg_intensity":   int(stats.mean),
			"area_percentage": areaPercentage,
		}
		if boolParam(p, "show_intensity", true) {
			gocv.PutText(&result,
				fmt.Sprintf("Avg Intensity: %d", int(stats.mean)),
				pointParam(p, "intensity_position", image.Pt(10, 30)),
				gocv.FontHersheySimplex,
				floatParam(p, "font_scale", 1.0),
				colorParam(p, "font_color", color.RGBA{R: 255, G: 255, B: 255, A: 255}),
				2)
		}
	}

	metrics := Metrics{
		"intensity":       intensity,
		"area_percentage": areaPercentage,
	}
	return result, metrics, nil
}

type grayStats struct {
	min    int
	max    int
	mean   float64
	median float64
}

// maskedGrayStats computes min/max/mean/median of the gray values selected
// by a non-zero mask, via a 256-bin histogram. A zero mask yields all-zero
// stats.
func maskedGrayStats(gray, mask gocv.Mat) grayStats {
	hist := gocv.NewMat()
	defer hist.Close()
	gocv.CalcHist([]gocv.Mat{gray}, []int{0}, mask, &hist, []int{256}, []float64{0, 256}, false)

	var stats grayStats
	total := 0.0
	sum := 0.0
	stats.min = -1
	for i := 0; i < 256; i++ {
		count := float64(hist.GetFloatAt(i, 0))
		if count == 0 {
			continue
		}
		if stats.min < 0 {
			stats.min = i
		}
		stats.max = i
		total += count
		sum += count * float64(i)
	}
	if total == 0 {
		stats.min = 0
		return stats
	}
	stats.mean = sum / total

	half := total / 2
	cum := 0.0
	for i := 0; i < 256; i++ {
		cum += float64(hist.GetFloatAt(i, 0))
		if cum >= half {
			stats.median = float64(i)
			break
		}
	}
	return stats
}
