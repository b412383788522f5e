// Package capture implements the recording state machine that keeps the
// video stream and the annotation stream in lockstep.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/simcapture/internal/annotate"
	"github.com/ivlev/simcapture/internal/geom"
	"github.com/ivlev/simcapture/internal/scene"
	"github.com/ivlev/simcapture/internal/session"
	"github.com/ivlev/simcapture/internal/system"
	"github.com/ivlev/simcapture/internal/video"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

type State int

const (
	Idle State = iota
	Armed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Armed:
		return "ARMED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sampling selects which rendered frames become session frames.
type Sampling struct {
	// Interval of zero samples every rendered frame. A positive interval
	// samples at most once per interval; skipped frames are neither annotated
	// nor encoded.
	Interval time.Duration
}

// RenderedFrame is what the host renderer hands over after drawing a frame.
// Pixels may be nil when the host encodes video on its own.
type RenderedFrame struct {
	Snapshot *scene.Snapshot
	Camera   geom.Camera
	Pixels   image.Image
}

// Controller owns one recording at a time. OnFrameRendered is expected on the
// render thread; the encoder's finalize completes on another goroutine.
type Controller struct {
	encoder   video.Encoder
	annotator *annotate.Annotator
	prober    system.HostProber
	logger    *slog.Logger
	sampling  Sampling
	fps       int
	container string
	now       func() time.Time

	mu         sync.Mutex
	state      State
	finalizing bool
	scene      *scene.Config
	buf        *session.Buffer
	stream     video.Stream
	spec       video.StreamSpec
	lastSample time.Time
	dropped    int
	writeErrs  int
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithSampling(s Sampling) Option {
	return func(c *Controller) { c.sampling = s }
}

// WithClock replaces the wall clock, mainly for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithHostProber attaches machine provenance to sealed sessions.
func WithHostProber(p system.HostProber) Option {
	return func(c *Controller) { c.prober = p }
}

// WithStream sets the encoder frame rate and container.
func WithStream(fps int, container string) Option {
	return func(c *Controller) {
		c.fps = fps
		c.container = container
	}
}

func NewController(enc video.Encoder, opts ...Option) *Controller {
	c := &Controller{
		encoder:   enc,
		logger:    slog.Default(),
		fps:       30,
		container: "webm",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.encoder == nil {
		c.encoder = video.NullEncoder{}
	}
	c.annotator = annotate.New(c.logger)
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start arms a new recording. width and height must be the render surface's
// physical pixel size so annotations and video share one pixel space.
// cfg is snapshotted once; every frame resolves class ids against that
// snapshot so ids stay stable for the whole session.
func (c *Controller) Start(ctx context.Context, cfg *scene.Config, width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Armed {
		return ErrAlreadyRecording
	}
	if cfg == nil {
		def := scene.DefaultConfig()
		cfg = &def
	}

	spec := video.StreamSpec{Width: width, Height: height, FPS: c.fps, Container: c.container}
	// the stream outlives ctx; Stop always finalizes what was captured
	stream, err := c.encoder.Open(context.WithoutCancel(ctx), spec)
	if err != nil {
		return fmt.Errorf("open video stream: %w", err)
	}

	start := c.now()
	res := session.Resolution{Width: width, Height: height}
	snap := cfg.Clone()
	c.buf = session.NewBuffer(uuid.NewString(), start, snap, res)
	c.scene = &snap
	c.stream = stream
	c.spec = spec
	c.lastSample = time.Time{}
	c.dropped = 0
	c.writeErrs = 0
	c.finalizing = false
	c.state = Armed

	c.logger.Info("recording started", "width", width, "height", height, "sampling_interval", c.sampling.Interval)
	return nil
}

// OnFrameRendered samples one rendered frame. It does nothing unless armed.
func (c *Controller) OnFrameRendered(f RenderedFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Armed || c.finalizing {
		return
	}

	now := c.now()
	if c.sampling.Interval > 0 && !c.lastSample.IsZero() && now.Sub(c.lastSample) < c.sampling.Interval {
		c.dropped++
		return
	}
	c.lastSample = now

	vp := annotate.Viewport{Width: c.spec.Width, Height: c.spec.Height}
	boxes, _ := c.annotator.Annotate(f.Snapshot, c.scene, &f.Camera, vp)
	c.buf.Append(now, boxes, session.CameraSnapshot{Position: f.Camera.Position, Target: f.Camera.Target})

	if f.Pixels != nil {
		if err := c.stream.WriteFrame(f.Pixels); err != nil {
			c.writeErrs++
			c.logger.Warn("video frame write failed", "frame", c.buf.Len()-1, "err", err)
		}
	}
}

// Stop requests the encoder to finalize. done runs once the session is
// sealed and the controller is idle again; until then Start keeps failing.
// Whatever was captured is kept.
func (c *Controller) Stop(done func(*session.Session, error)) error {
	c.mu.Lock()
	if c.state != Armed || c.finalizing {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.finalizing = true
	stream := c.stream
	frames := c.buf.Len()
	c.mu.Unlock()

	c.logger.Info("recording stopping", "frames", frames)

	stream.Finalize(func(res video.Result) {
		sess, err := c.seal(res)
		if done != nil {
			done(sess, err)
		}
	})
	return nil
}

// StopAndWait stops and blocks until the session is sealed or ctx is done.
// It must not be called from the render thread.
func (c *Controller) StopAndWait(ctx context.Context) (*session.Session, error) {
	type result struct {
		sess *session.Session
		err  error
	}
	ch := make(chan result, 1)
	if err := c.Stop(func(s *session.Session, err error) { ch <- result{s, err} }); err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.sess, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) seal(res video.Result) (*session.Session, error) {
	var host *system.HostInfo
	if c.prober != nil {
		host = c.prober.Probe()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	finalRes := session.Resolution{Width: res.Width, Height: res.Height}
	sess := c.buf.Seal(c.now(), res.Data, res.Container, finalRes, host)

	c.buf = nil
	c.stream = nil
	c.scene = nil
	c.finalizing = false
	c.state = Idle

	c.logger.Info("recording sealed",
		"session", sess.ID,
		"frames", len(sess.Frames),
		"video_bytes", len(sess.Video),
		"skipped_by_sampling", c.dropped,
		"frame_write_errors", c.writeErrs,
	)
	if res.Err != nil {
		c.logger.Warn("video finalize failed; session kept without video", "err", res.Err)
		return sess, fmt.Errorf("finalize video: %w", res.Err)
	}
	return sess, nil
}
