package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/simcapture/internal/geom"
	"github.com/ivlev/simcapture/internal/scene"
	"github.com/ivlev/simcapture/internal/session"
	"github.com/ivlev/simcapture/internal/system"
	"github.com/ivlev/simcapture/internal/video"
)

type fakeEncoder struct {
	openErr     error
	finalizeErr error
	gate        chan struct{}
	last        *fakeStream
	ctx         context.Context
}

func (e *fakeEncoder) Open(ctx context.Context, spec video.StreamSpec) (video.Stream, error) {
	e.ctx = ctx
	if e.openErr != nil {
		return nil, e.openErr
	}
	e.last = &fakeStream{spec: spec, gate: e.gate, err: e.finalizeErr}
	return e.last, nil
}

type fakeStream struct {
	spec   video.StreamSpec
	gate   chan struct{}
	err    error
	mu     sync.Mutex
	frames int
}

func (s *fakeStream) WriteFrame(image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *fakeStream) Finalize(done func(video.Result)) {
	go func() {
		if s.gate != nil {
			<-s.gate
		}
		s.mu.Lock()
		res := video.Result{Container: s.spec.Container, Width: s.spec.Width, Height: s.spec.Height, Frames: s.frames}
		s.mu.Unlock()
		if s.err != nil {
			res.Err = s.err
		} else if res.Frames > 0 {
			res.Data = []byte("encoded")
		}
		done(res)
	}()
}

// stepClock advances by step on every read.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

type staticProber struct{}

func (staticProber) Probe() *system.HostInfo { return &system.HostInfo{Hostname: "rig-01"} }

func testScene() *scene.Config {
	cfg := scene.DefaultConfig()
	cfg.AssetGroups = []scene.AssetGroup{{ID: "crates", Name: "Crate", Count: 1}}
	return &cfg
}

func testFrame(withPixels bool) RenderedFrame {
	n := &scene.Node{ID: "crate-0"}
	n.World.SetIdentity()
	b := math32.B3(-0.5, -0.5, -0.5, 0.5, 0.5, 0.5)
	n.Bounds = &b

	f := RenderedFrame{
		Snapshot: &scene.Snapshot{Roots: []*scene.Node{n}, Tags: scene.Tags{"crate-0": "crates"}},
		Camera: geom.NewPerspectiveCamera(
			math32.Vec3(0, 0, 10), math32.Vec3(0, 0, 0), math32.Vec3(0, 1, 0),
			geom.DefaultLens(), 640.0/480.0,
		),
	}
	if withPixels {
		f.Pixels = image.NewRGBA(image.Rect(0, 0, 640, 480))
	}
	return f
}

func TestRecordingLifecycle(t *testing.T) {
	enc := &fakeEncoder{}
	clock := &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), step: 16 * time.Millisecond}
	c := NewController(enc, WithClock(clock.Now), WithHostProber(staticProber{}), WithStream(30, "webm"))
	ctx := context.Background()

	require.Equal(t, Idle, c.State())
	require.NoError(t, c.Start(ctx, testScene(), 640, 480))
	assert.Equal(t, Armed, c.State())
	assert.Equal(t, 640, enc.last.spec.Width)
	assert.Equal(t, 480, enc.last.spec.Height)

	const n = 12
	for i := 0; i < n; i++ {
		c.OnFrameRendered(testFrame(true))
	}

	sess, err := c.StopAndWait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Idle, c.State())

	require.Len(t, sess.Frames, n)
	for i, f := range sess.Frames {
		assert.Equal(t, i, f.FrameID)
		require.Len(t, f.Objects, 1)
		assert.Equal(t, 1, f.Objects[0].ClassID)
		assert.Equal(t, "Crate", f.Objects[0].Label)
		assert.Equal(t, float32(10), f.Camera.Position.Z)
	}
	assert.Less(t, sess.Frames[0].TimestampMs, sess.Frames[n-1].TimestampMs)
	assert.Equal(t, []byte("encoded"), sess.Video)
	assert.Equal(t, "webm", sess.VideoExt)
	assert.Equal(t, session.Resolution{Width: 640, Height: 480}, sess.Resolution)
	assert.True(t, !sess.EndTime.Before(sess.StartTime))
	assert.Equal(t, n, enc.last.frames)
	require.NotNil(t, sess.Host)
	assert.Equal(t, "rig-01", sess.Host.Hostname)
	assert.NotEmpty(t, sess.ID)
}

func TestStopWhileIdle(t *testing.T) {
	c := NewController(&fakeEncoder{})

	err := c.Stop(nil)
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.Equal(t, Idle, c.State())

	_, err = c.StopAndWait(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestStartTwice(t *testing.T) {
	c := NewController(&fakeEncoder{})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, testScene(), 64, 64))
	assert.ErrorIs(t, c.Start(ctx, testScene(), 64, 64), ErrAlreadyRecording)
	assert.Equal(t, Armed, c.State())
}

func TestFramesIgnoredWhileIdle(t *testing.T) {
	enc := &fakeEncoder{}
	c := NewController(enc)

	c.OnFrameRendered(testFrame(true))
	assert.Nil(t, enc.last)
	assert.Equal(t, Idle, c.State())
}

func TestStartBlockedUntilFinalizeCompletes(t *testing.T) {
	enc := &fakeEncoder{gate: make(chan struct{})}
	c := NewController(enc)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, testScene(), 64, 64))
	c.OnFrameRendered(testFrame(false))

	done := make(chan *session.Session, 1)
	require.NoError(t, c.Stop(func(s *session.Session, err error) {
		assert.NoError(t, err)
		done <- s
	}))

	// finalize still pending
	assert.ErrorIs(t, c.Start(ctx, testScene(), 64, 64), ErrAlreadyRecording)
	assert.ErrorIs(t, c.Stop(nil), ErrNotRecording)
	c.OnFrameRendered(testFrame(false))

	close(enc.gate)
	sess := <-done
	assert.Len(t, sess.Frames, 1, "frames after stop are not recorded")
	assert.Equal(t, Idle, c.State())

	require.NoError(t, c.Start(ctx, testScene(), 64, 64))
}

func TestIntervalSampling(t *testing.T) {
	enc := &fakeEncoder{}
	clock := &stepClock{t: time.Unix(1000, 0), step: 10 * time.Millisecond}
	c := NewController(enc, WithClock(clock.Now), WithSampling(Sampling{Interval: 30 * time.Millisecond}))
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, testScene(), 640, 480))
	for i := 0; i < 9; i++ {
		c.OnFrameRendered(testFrame(true))
	}
	sess, err := c.StopAndWait(ctx)
	require.NoError(t, err)

	// render ticks at 10ms, samples at >= 30ms spacing
	require.Len(t, sess.Frames, 3)
	for i, f := range sess.Frames {
		assert.Equal(t, i, f.FrameID)
	}
	assert.Equal(t, 3, enc.last.frames, "video and annotations stay in lockstep")
}

func TestFinalizeFailureKeepsFrames(t *testing.T) {
	boom := errors.New("disk full")
	c := NewController(&fakeEncoder{finalizeErr: boom})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, testScene(), 64, 64))
	c.OnFrameRendered(testFrame(true))
	sess, err := c.StopAndWait(ctx)

	assert.ErrorIs(t, err, boom)
	require.NotNil(t, sess)
	assert.Len(t, sess.Frames, 1)
	assert.False(t, sess.HasVideo())
	assert.Equal(t, Idle, c.State())
}

func TestOpenFailureStaysIdle(t *testing.T) {
	c := NewController(&fakeEncoder{openErr: errors.New("no ffmpeg")})

	err := c.Start(context.Background(), testScene(), 64, 64)
	assert.Error(t, err)
	assert.Equal(t, Idle, c.State())
}

func TestCancelledStartContextKeepsStream(t *testing.T) {
	enc := &fakeEncoder{}
	c := NewController(enc)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, c.Start(ctx, testScene(), 640, 480))
	cancel()
	assert.NoError(t, enc.ctx.Err(), "encoder must not see the caller's cancellation")

	c.OnFrameRendered(testFrame(true))
	sess, err := c.StopAndWait(context.Background())
	require.NoError(t, err)
	assert.Len(t, sess.Frames, 1)
	assert.True(t, sess.HasVideo())
}

func TestSessionIsolatedFromLiveScene(t *testing.T) {
	c := NewController(&fakeEncoder{})
	ctx := context.Background()
	cfg := testScene()

	require.NoError(t, c.Start(ctx, cfg, 640, 480))
	cfg.AssetGroups[0].Name = "Renamed"
	c.OnFrameRendered(testFrame(false))
	sess, err := c.StopAndWait(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Crate", sess.Scene.AssetGroups[0].Name)
	assert.Equal(t, "Crate", sess.Frames[0].Objects[0].Label)
	assert.Nil(t, sess.Video, "no pixels means no video")
}
