package overlay

import (
	"gocv.io/x/gocv"
)

// NottinghamTubulePipeline segments tubule formations with a learned model
// and computes the Nottingham tubule score. The model is loaded from disk
// on the first Process call.
type NottinghamTubulePipeline struct {
	desc  Descriptor
	model *segModel
}

// NewNottinghamTubulePipeline creates the tubule formation pipeline.
func NewNottinghamTubulePipeline(opts ModelOptions) *NottinghamTubulePipeline {
	return &NottinghamTubulePipeline{
		desc: Descriptor{
			Name:        "nottingham_tubule",
			DisplayName: "Nottingham Tubular Formation",
			Description: "Segments tubule regions and computes Nottingham tubule score.",
			DefaultParams: Params{
				"min_size":  500,
				"hole_size": 500,
				"threshold": 0.5,
			},
			ParamDescriptions: map[string]string{
				"min_size":  "Minimum object size in pixels for cleaning mask.",
				"hole_size": "Maximum hole size to fill in mask.",
				"threshold": "Threshold for mask binarization (0-1).",
			},
		},
		model: newSegModel("nottingham_tubule", 512, true, opts),
	}
}

func (tp *NottinghamTubulePipeline) Descriptor() Descriptor { return tp.desc }

func (tp *NottinghamTubulePipeline) Process(frame gocv.Mat, params Params) (gocv.Mat, Metrics, error) {
	p := mergeParams(tp.desc.DefaultParams, params)

	raw, err := tp.model.predictMask(frame, floatParam(p, "threshold", 0.5))
	if err != nil {
		return gocv.NewMat(), nil, err
	}
	defer raw.Close()

	opened := removeSmallObjects(raw, intParam(p, "min_size", 500))
	defer opened.Close()
	clean := fillSmallHoles(opened, intParam(p, "hole_size", 500))
	defer clean.Close()

	tubuleArea := gocv.CountNonZero(clean)
	patchArea := clean.Rows() * clean.Cols()
	fraction := 0.0
	if patchArea > 0 {
		fraction = float64(tubuleArea) / float64(patchArea)
	}

	result := tubuleOverlay(frame, clean)
	metrics := Metrics{
		"tubule_fraction":         fraction,
		"nottingham_tubule_score": tubuleScore(fraction),
	}
	return result, metrics, nil
}

// tubuleScore maps the tubule-area fraction to the Nottingham ordinal
// score. More tubule formation grades lower by convention.
func tubuleScore(fraction float64) int {
	switch {
	case fraction > 0.75:
		return 1
	case fraction > 0.10:
		return 2
	default:
		return 3
	}
}

// tubuleOverlay keeps the original pixels inside the tubule mask and blends
// everything outside toward black.
func tubuleOverlay(frame, mask gocv.Mat) gocv.Mat {
	const alpha = 0.9

	black := gocv.NewMatWithSize(frame.Rows(), frame.Cols(), frame.Type())
	defer black.Close()

	blended := gocv.NewMat()
	gocv.AddWeighted(frame, 1-alpha, black, alpha, 0, &blended)
	frame.CopyToWithMask(&blended, mask)
	return blended
}
