package overlay

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// segModel is the lazily loaded model state owned by a learned pipeline:
// Unloaded until the first Process call, then Loaded (or stuck with its
// load error, which resurfaces on every later call; loading is never
// retried). The one-time transition is guarded by sync.Once, so the state
// machine holds even if the serving loop ever issues concurrent first
// calls.
type segModel struct {
	name       string
	dir        string
	inputSize  int
	minMaxNorm bool
	cuda       bool
	log        zerolog.Logger

	once    sync.Once
	net     gocv.Net
	loaded  bool
	loadErr error
}

func newSegModel(name string, inputSize int, minMaxNorm bool, opts ModelOptions) *segModel {
	return &segModel{
		name:       name,
		dir:        opts.Dir,
		inputSize:  inputSize,
		minMaxNorm: minMaxNorm,
		cuda:       opts.CUDA,
		log:        opts.Logger.With().Str("component", "seg_model").Str("model", name).Logger(),
	}
}

// artifactPath is the fixed on-disk location of this model's weights.
func (m *segModel) artifactPath() string {
	return filepath.Join(m.dir, m.name+".onnx")
}

// ensureLoaded performs the one-time load transition and reports the sticky
// outcome.
func (m *segModel) ensureLoaded() error {
	m.once.Do(func() {
		m.loadErr = m.load()
		m.loaded = m.loadErr == nil
	})
	if m.loadErr != nil {
		return errors.Wrapf(m.loadErr, "load model %q", m.name)
	}
	if !m.loaded {
		return ErrModelNotLoaded
	}
	return nil
}

func (m *segModel) load() error {
	path := m.artifactPath()
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(err, "model artifact missing")
	}

	// The artifact may ship a sidecar metadata file with auxiliary values
	// from training (e.g. mask label values). They are logged and stripped;
	// nothing auxiliary reaches the network loader.
	m.stripAuxMetadata()

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return errors.Errorf("failed to read network from %s", path)
	}

	if m.cuda {
		if err := net.SetPreferableBackend(gocv.NetBackendCUDA); err != nil {
			m.log.Warn().Err(err).Msg("CUDA backend unavailable, falling back to CPU")
		} else if err := net.SetPreferableTarget(gocv.NetTargetCUDA); err != nil {
			m.log.Warn().Err(err).Msg("CUDA target unavailable, falling back to CPU")
		}
	}

	m.net = net
	m.log.Info().Str("path", path).Bool("cuda", m.cuda).Msg("segmentation model loaded")
	return nil
}

func (m *segModel) stripAuxMetadata() {
	sidecar := filepath.Join(m.dir, m.name+".json")
	raw, err := os.ReadFile(sidecar)
	if err != nil {
		return
	}
	var aux map[string]interface{}
	if err := json.Unmarshal(raw, &aux); err != nil {
		m.log.Warn().Err(err).Str("path", sidecar).Msg("unreadable model metadata, ignoring")
		return
	}
	for key := range aux {
		m.log.Debug().Str("key", key).Msg("dropping auxiliary model metadata key")
	}
}

// predictMask runs segmentation inference and returns a binary 8-bit mask
// (0/255) at the frame's original resolution. The probability map is
// thresholded at thresh; the mask is scaled back with nearest-neighbor
// interpolation so it stays strictly binary.
func (m *segModel) predictMask(frame gocv.Mat, thresh float64) (gocv.Mat, error) {
	if err := m.ensureLoaded(); err != nil {
		return gocv.NewMat(), err
	}

	// The nets expect 3-channel input; promote grayscale frames up front.
	bgr := toBGR(frame)
	defer bgr.Close()

	patch := gocv.NewMat()
	defer patch.Close()
	gocv.Resize(bgr, &patch, image.Pt(m.inputSize, m.inputSize), 0, 0, gocv.InterpolationLinear)

	scaled := gocv.NewMat()
	defer scaled.Close()
	patch.ConvertToWithParams(&scaled, gocv.MatTypeCV32F, 1.0/255.0, 0)

	if m.minMaxNorm {
		normalizeChannelsInPlace(&scaled)
	}

	blob := gocv.BlobFromImage(scaled, 1.0, image.Pt(m.inputSize, m.inputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	logits := m.net.Forward("")
	defer logits.Close()

	reshaped := logits.Reshape(1, m.inputSize)
	defer reshaped.Close()
	probs := sigmoid(reshaped)
	defer probs.Close()

	binaryF := gocv.NewMat()
	defer binaryF.Close()
	gocv.Threshold(probs, &binaryF, float32(thresh), 1, gocv.ThresholdBinary)

	binary := gocv.NewMat()
	defer binary.Close()
	binaryF.ConvertToWithParams(&binary, gocv.MatTypeCV8UC1, 255, 0)

	mask := gocv.NewMat()
	gocv.Resize(binary, &mask, image.Pt(frame.Cols(), frame.Rows()), 0, 0, gocv.InterpolationNearestNeighbor)
	return mask, nil
}

// normalizeChannelsInPlace min-max normalizes each channel of a float Mat
// to [0,1] independently.
func normalizeChannelsInPlace(m *gocv.Mat) {
	channels := gocv.Split(*m)
	for i := range channels {
		minVal, maxVal, _, _ := gocv.MinMaxLoc(channels[i])
		channels[i].SubtractFloat(minVal)
		channels[i].DivideFloat(maxVal - minVal + 1e-18)
	}
	gocv.Merge(channels, m)
	for i := range channels {
		channels[i].Close()
	}
}

// sigmoid computes 1/(1+exp(-x)) element-wise, returning a new Mat.
func sigmoid(logits gocv.Mat) gocv.Mat {
	neg := logits.Clone()
	defer neg.Close()
	neg.MultiplyFloat(-1)

	exp := gocv.NewMat()
	defer exp.Close()
	gocv.Exp(neg, &exp)
	exp.AddFloat(1)

	out := gocv.NewMat()
	gocv.Pow(exp, -1, &out)
	return out
}

// loadState reports the model state for logging and tests.
func (m *segModel) loadState() string {
	switch {
	case m.loaded:
		return "loaded"
	case m.loadErr != nil:
		return fmt.Sprintf("failed: %v", m.loadErr)
	default:
		return "unloaded"
	}
}
