// Package overlay implements the per-frame image analysis pipelines that
// annotate live microscope video and extract quantitative metrics.
//
// Every pipeline implements the same contract: given an input frame and a
// set of parameter overrides, it returns a freshly allocated annotated frame
// of the same dimensions plus a metrics map for that single frame. The input
// frame is never modified. Degenerate inputs (nothing detected, zero-area
// masks) degrade to zero or empty metrics rather than errors; only the
// learned pipelines can fail, and only on model load or inference.
package overlay

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Params holds caller-supplied parameter overrides for a single Process
// call. Values are scalars or short numeric slices (colors, positions), the
// same shapes that arrive from a decoded JSON body.
type Params map[string]interface{}

// Metrics holds the quantitative findings of one Process call.
type Metrics map[string]interface{}

// Descriptor is the identity metadata a pipeline exposes for registry
// enumeration and presentation.
type Descriptor struct {
	Name              string            `json:"name"`
	DisplayName       string            `json:"display_name"`
	Description       string            `json:"description"`
	DefaultParams     Params            `json:"default_params"`
	ParamDescriptions map[string]string `json:"param_descriptions"`
}

// Pipeline is the uniform contract all overlay pipelines implement.
//
// Process is synchronous and blocking. It must not mutate frame; the
// returned Mat is a new allocation owned by the caller. Implementations
// merge params over their declared defaults per call and never mutate the
// stored defaults.
type Pipeline interface {
	Descriptor() Descriptor
	Process(frame gocv.Mat, params Params) (gocv.Mat, Metrics, error)
}

// Config selects a pipeline by name together with its parameter overrides.
type Config struct {
	Name   string `json:"name"`
	Params Params `json:"params"`
}

// ErrModelNotLoaded is returned when inference is attempted on a learned
// pipeline whose model state did not reach Loaded.
var ErrModelNotLoaded = errors.New("model is not loaded")

// mergeParams applies caller overrides onto defaults, returning a fresh map.
// Caller values win, unknown keys are kept, neither input is mutated.
func mergeParams(defaults, overrides Params) Params {
	merged := make(Params, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
