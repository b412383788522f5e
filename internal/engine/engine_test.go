package engine

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/simcapture/internal/config"
	"github.com/ivlev/simcapture/internal/export"
	"github.com/ivlev/simcapture/internal/scene"
	"github.com/ivlev/simcapture/internal/video"
)

// countingEncoder returns a fake container holding one byte per frame.
type countingEncoder struct{}

func (countingEncoder) Open(_ context.Context, spec video.StreamSpec) (video.Stream, error) {
	return &countingStream{spec: spec}, nil
}

type countingStream struct {
	spec   video.StreamSpec
	frames int
}

func (s *countingStream) WriteFrame(img image.Image) error {
	if img.Bounds().Dx() != s.spec.Width {
		return video.ErrStreamClosed
	}
	s.frames++
	return nil
}

func (s *countingStream) Finalize(done func(video.Result)) {
	go done(video.Result{
		Data:      make([]byte, s.frames),
		Container: s.spec.Container,
		Width:     s.spec.Width,
		Height:    s.spec.Height,
		Frames:    s.frames,
	})
}

func testTrace(frames int) *scene.Trace {
	tr := &scene.Trace{
		Scene: scene.DefaultConfig(),
		Camera: scene.CameraTrack{
			FOV: 45,
			Keyframes: []scene.CameraKeyframe{
				{Time: 0, Position: math32.Vec3(0, 0, 10)},
				{Time: 1, Position: math32.Vec3(0, 0, 14)},
			},
		},
	}
	tr.Scene.Scene.Name = "Unit"
	tr.Scene.AssetGroups = []scene.AssetGroup{{ID: "crates", Name: "Crate", Count: 1}}
	for i := 0; i < frames; i++ {
		tr.Frames = append(tr.Frames, scene.TraceFrame{
			Time: float64(i) / 60,
			Objects: []scene.ObjectSpec{
				{ID: "crate-0", Group: "crates", Position: math32.Vec3(0, 2-float32(i)*0.05, 0), Size: math32.Vec3(1, 1, 1)},
				{ID: "floor", Size: math32.Vec3(10, 0.1, 10)},
			},
		})
	}
	return tr
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Width, cfg.Height = 320, 240
	cfg.OutputDir = t.TempDir()
	cfg.Formats = []string{"video", "coco", "yolo", "report"}
	return cfg
}

var epoch = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func TestReplayWritesArtifacts(t *testing.T) {
	cfg := testConfig(t)
	p := NewReplayProject(cfg, testTrace(30), countingEncoder{})
	p.Epoch = epoch

	sum, err := p.Run(context.Background())
	require.NoError(t, err)

	sess := sum.Session
	require.Len(t, sess.Frames, 30)
	assert.Len(t, sess.Video, 30, "every sampled frame reached the encoder")
	assert.Equal(t, epoch, sess.StartTime)
	assert.Equal(t, epoch.UnixMilli()+250, sess.Frames[15].TimestampMs)
	for _, f := range sess.Frames {
		require.Len(t, f.Objects, 1)
		assert.Equal(t, "Crate", f.Objects[0].Label)
	}

	for _, f := range []export.Format{export.FormatVideo, export.FormatCOCO, export.FormatYOLO, export.FormatReport} {
		path, ok := sum.Written[f]
		require.True(t, ok, f)
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}

	data, err := os.ReadFile(sum.Written[export.FormatCOCO])
	require.NoError(t, err)
	var coco struct {
		Images      []json.RawMessage `json:"images"`
		Annotations []json.RawMessage `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(data, &coco))
	assert.Len(t, coco.Images, 30)
	assert.Len(t, coco.Annotations, 30)
}

func TestReplayWithoutVideo(t *testing.T) {
	cfg := testConfig(t)
	cfg.NoVideo = true
	p := NewReplayProject(cfg, testTrace(5), video.NullEncoder{})

	sum, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, sum.Session.Frames, 5)
	assert.NotContains(t, sum.Written, export.FormatVideo)
	assert.ErrorIs(t, sum.Results[0].Err, export.ErrNoVideoCaptured)
	assert.Contains(t, sum.Written, export.FormatCOCO)
}

func TestReplayIntervalSampling(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sampling = config.SamplingInterval
	cfg.IntervalMs = 50
	cfg.Formats = []string{"coco"}
	p := NewReplayProject(cfg, testTrace(60), countingEncoder{})
	p.Epoch = epoch

	sum, err := p.Run(context.Background())
	require.NoError(t, err)

	// 60 frames at 60Hz span 983ms; one sample per 50ms
	assert.Len(t, sum.Session.Frames, 20)
	assert.Len(t, sum.Session.Video, 20)
}

func TestReplayStatsLog(t *testing.T) {
	cfg := testConfig(t)
	cfg.ShowStats = true
	cfg.Formats = []string{"report"}
	p := NewReplayProject(cfg, testTrace(3), countingEncoder{})

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "benchmark.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Frames: 3")
}

func TestReplayRejectsBadInput(t *testing.T) {
	cfg := testConfig(t)

	_, err := NewReplayProject(cfg, &scene.Trace{}, countingEncoder{}).Run(context.Background())
	assert.Error(t, err)

	cfg.Formats = []string{"pascal"}
	_, err = NewReplayProject(cfg, testTrace(2), countingEncoder{}).Run(context.Background())
	assert.ErrorIs(t, err, export.ErrUnknownFormat)
}

func TestReplayCancelledKeepsCapture(t *testing.T) {
	cfg := testConfig(t)
	cfg.Formats = []string{"coco"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := NewReplayProject(cfg, testTrace(4), countingEncoder{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, sum)
	assert.Empty(t, sum.Session.Frames)
	assert.Contains(t, sum.Written, export.FormatCOCO)
}

func TestReplayDirectsMissingCameraPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Formats = []string{"coco"}
	tr := testTrace(10)
	tr.Camera.Keyframes = nil
	p := NewReplayProject(cfg, tr, countingEncoder{})

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Session.Frames, 10)
	assert.NotEmpty(t, sum.Session.Frames[0].Objects, "directed camera frames the crate")
	assert.Nil(t, tr.Camera.Keyframes, "trace is left untouched")
}

func TestDirectCamera(t *testing.T) {
	cfg := testConfig(t)
	tr := testTrace(120)
	p := NewReplayProject(cfg, tr, countingEncoder{})
	out := filepath.Join(cfg.OutputDir, "directed.yaml")

	path, err := p.DirectCamera(out)
	require.NoError(t, err)
	assert.Equal(t, out, path)
	assert.Len(t, tr.Camera.Keyframes, 2, "source trace keeps its own path")

	directed, err := scene.ReadTrace(path)
	require.NoError(t, err)
	require.Len(t, directed.Camera.Keyframes, 3, "intro, one subject, outro")
	assert.Equal(t, "full_view", directed.Camera.Keyframes[0].Focus)
	assert.Equal(t, "Crate", directed.Camera.Keyframes[1].Focus)
	assert.Len(t, directed.Frames, 120)
}

func TestDirectCameraDefaultName(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputPath = "input/traces/drop.yaml"

	path, err := NewReplayProject(cfg, testTrace(2), countingEncoder{}).DirectCamera("")
	require.NoError(t, err)
	assert.Equal(t, cfg.OutputDir, filepath.Dir(path))
	assert.Contains(t, filepath.Base(path), "drop_directed_")
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
