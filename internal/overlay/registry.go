package overlay

import (
	"sort"

	"github.com/rs/zerolog"
)

// Registry maps pipeline names to their implementations. It is built once
// at startup and treated as read-only afterwards; nothing forbids late
// registration, but the serving loop assumes a stable set.
type Registry struct {
	pipelines map[string]Pipeline
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]Pipeline)}
}

// Register adds a pipeline under its descriptor name, replacing any
// previous registration with the same name.
func (r *Registry) Register(p Pipeline) {
	r.pipelines[p.Descriptor().Name] = p
}

// Get returns the pipeline registered under name.
func (r *Registry) Get(name string) (Pipeline, bool) {
	p, ok := r.pipelines[name]
	return p, ok
}

// List returns the descriptors of all registered pipelines, sorted by name
// for stable presentation.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		out = append(out, p.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ModelOptions configures the learned pipelines a registry hosts.
type ModelOptions struct {
	// Dir is the directory holding one serialized model artifact per
	// learned pipeline, keyed by pipeline name.
	Dir string
	// CUDA selects the CUDA DNN backend; inference falls back to CPU when
	// the build has no CUDA support.
	CUDA bool
	// Logger receives model lifecycle events.
	Logger zerolog.Logger
}

// DefaultRegistry constructs and registers every known pipeline. This is
// the single place the process populates its pipeline set.
func DefaultRegistry(opts ModelOptions) *Registry {
	r := NewRegistry()
	r.Register(NewCellCountPipeline())
	r.Register(NewCellCountV2Pipeline())
	r.Register(NewFluorescencePipeline())
	r.Register(NewEstrogenReceptorPipeline())
	r.Register(NewNottinghamTubulePipeline(opts))
	r.Register(NewNuclearPleomorphismPipeline(opts))
	return r
}
