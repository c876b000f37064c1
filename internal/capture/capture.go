// Package capture acquires live frames from the microscope camera (or
// synthetic test patterns when no camera is present) and orchestrates
// per-frame overlay processing.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"pathoassist/internal/config"
	"pathoassist/internal/overlay"
)

// Snapshot is the metrics record of the most recently processed frame.
type Snapshot struct {
	Timestamp float64         `json:"timestamp"`
	Pipeline  string          `json:"pipeline"`
	Metrics   overlay.Metrics `json:"metrics"`
}

// Capture owns the camera, the latest raw frame and the latest metrics
// snapshot. The capture loop runs in its own goroutine; everything else is
// pull-based and mutex-guarded.
type Capture struct {
	cfg      config.CameraConfig
	registry *overlay.Registry
	log      zerolog.Logger

	mu         sync.RWMutex
	frame      gocv.Mat
	haveFrame  bool
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	camera     *gocv.VideoCapture
	patterns   []gocv.Mat
	patternIdx int

	metricsMu sync.RWMutex
	latest    Snapshot
}

// New creates a capture bound to a pipeline registry.
func New(cfg config.CameraConfig, registry *overlay.Registry, log zerolog.Logger) *Capture {
	return &Capture{
		cfg:      cfg,
		registry: registry,
		log:      log.With().Str("component", "capture").Logger(),
		frame:    gocv.NewMat(),
	}
}

// Start opens the camera and launches the capture loop. When the camera
// cannot be opened (or test patterns are forced), synthetic patterns are
// cycled instead so the rest of the system keeps working.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	if !c.cfg.TestPattern {
		camera, err := gocv.OpenVideoCapture(c.cfg.DeviceID)
		if err != nil {
			c.log.Warn().Err(err).Int("device", c.cfg.DeviceID).
				Msg("failed to open camera, using test patterns instead")
		} else {
			camera.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
			camera.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
			camera.Set(gocv.VideoCaptureFPS, float64(c.cfg.FPS))
			c.camera = camera
		}
	}
	if c.camera == nil {
		c.patterns = testPatterns(c.cfg.Width, c.cfg.Height)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.running = true
	go c.loop(ctx)
	c.log.Info().Bool("camera", c.camera != nil).Msg("video capture started")
	return nil
}

// Stop terminates the capture loop and releases the camera and pattern
// buffers.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	done := c.done
	c.mu.Unlock()
	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.camera != nil {
		c.camera.Close()
		c.camera = nil
	}
	for i := range c.patterns {
		c.patterns[i].Close()
	}
	c.patterns = nil
	c.frame.Close()
	c.frame = gocv.NewMat()
	c.haveFrame = false
	c.log.Info().Msg("video capture stopped")
}

func (c *Capture) loop(ctx context.Context) {
	defer close(c.done)

	interval := time.Second / time.Duration(c.cfg.FPS)
	if interval <= 0 {
		interval = time.Second / 30
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.grab(); err != nil {
				c.log.Warn().Err(err).Msg("failed to capture frame")
			}
		}
	}
}

// grab reads one frame from the camera or the pattern cycle into the
// latest-frame cell.
func (c *Capture) grab() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}

	if c.camera != nil {
		if ok := c.camera.Read(&c.frame); !ok || c.frame.Empty() {
			// Camera went away mid-session; degrade to patterns.
			c.camera.Close()
			c.camera = nil
			c.patterns = testPatterns(c.cfg.Width, c.cfg.Height)
			return errors.New("camera read failed, switching to test patterns")
		}
		c.haveFrame = true
		return nil
	}

	pattern := c.patterns[c.patternIdx]
	c.patternIdx = (c.patternIdx + 1) % len(c.patterns)
	pattern.CopyTo(&c.frame)
	c.haveFrame = true
	return nil
}

// Frame returns a clone of the most recent frame. The second result is
// false until the first frame has been captured.
func (c *Capture) Frame() (gocv.Mat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.haveFrame {
		return gocv.NewMat(), false
	}
	return c.frame.Clone(), true
}

// ProcessFrame runs the configured pipeline over a frame. An unknown
// pipeline name or a pipeline failure degrades to a clone of the input and
// empty metrics; the serving loop never dies on a pipeline error.
func (c *Capture) ProcessFrame(frame gocv.Mat, cfg overlay.Config) (result gocv.Mat, metrics overlay.Metrics) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("pipeline", cfg.Name).
				Msg("pipeline panicked, passing frame through")
			result = frame.Clone()
			metrics = overlay.Metrics{}
		}
	}()

	pipeline, ok := c.registry.Get(cfg.Name)
	if !ok {
		c.log.Warn().Str("pipeline", cfg.Name).Msg("pipeline not found")
		return frame.Clone(), overlay.Metrics{}
	}

	processed, m, err := pipeline.Process(frame, cfg.Params)
	if err != nil {
		processed.Close()
		c.log.Error().Err(err).Str("pipeline", cfg.Name).Msg("error processing frame")
		return frame.Clone(), overlay.Metrics{}
	}
	return processed, m
}

// PublishMetrics records the snapshot for the most recent processed frame.
func (c *Capture) PublishMetrics(pipeline string, metrics overlay.Metrics) {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	c.latest = Snapshot{
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Pipeline:  pipeline,
		Metrics:   metrics,
	}
}

// LatestMetrics returns the most recent snapshot; the zero Snapshot before
// any frame has been processed.
func (c *Capture) LatestMetrics() Snapshot {
	c.metricsMu.RLock()
	defer c.metricsMu.RUnlock()
	return c.latest
}

// FPS reports the configured capture rate for pacing consumers.
func (c *Capture) FPS() int {
	if c.cfg.FPS <= 0 {
		return 30
	}
	return c.cfg.FPS
}
