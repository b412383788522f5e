package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ivlev/simcapture/internal/capture"
	"github.com/ivlev/simcapture/internal/config"
	"github.com/ivlev/simcapture/internal/director"
	"github.com/ivlev/simcapture/internal/export"
	"github.com/ivlev/simcapture/internal/geom"
	"github.com/ivlev/simcapture/internal/renderer"
	"github.com/ivlev/simcapture/internal/scene"
	"github.com/ivlev/simcapture/internal/session"
	"github.com/ivlev/simcapture/internal/system"
	"github.com/ivlev/simcapture/internal/video"
)

// ReplayProject feeds a recorded trace through the capture pipeline as if a
// live renderer were delivering frames, then writes the selected artifacts.
type ReplayProject struct {
	Config  *config.Config
	Trace   *scene.Trace
	Encoder video.Encoder
	Prober  system.HostProber
	Logger  *slog.Logger

	// Epoch anchors trace time zero; zero means the wall clock at Run.
	Epoch time.Time
}

// Summary is what a replay produced.
type Summary struct {
	Session *session.Session
	Results []export.Result
	Written map[export.Format]string
}

func NewReplayProject(cfg *config.Config, trace *scene.Trace, enc video.Encoder) *ReplayProject {
	return &ReplayProject{
		Config:  cfg,
		Trace:   trace,
		Encoder: enc,
		Logger:  slog.Default(),
	}
}

// replayClock reports trace time instead of wall time. The controller reads
// it from the render loop and from the encoder's finalize goroutine.
type replayClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *replayClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *replayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func offset(epoch time.Time, seconds float64) time.Time {
	return epoch.Add(time.Duration(math.Round(seconds * float64(time.Second))))
}

func (p *ReplayProject) Run(ctx context.Context) (*Summary, error) {
	startTime := time.Now()
	cfg := p.Config
	if p.Trace == nil || len(p.Trace.Frames) == 0 {
		return nil, fmt.Errorf("trace contains no frames")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	formats, err := export.ParseFormats(cfg.Formats)
	if err != nil {
		return nil, err
	}

	sceneCfg, err := p.sceneConfig()
	if err != nil {
		return nil, err
	}

	lens := p.lens()

	epoch := p.Epoch
	if epoch.IsZero() {
		epoch = time.Now()
	}
	clock := &replayClock{}

	opts := []capture.Option{
		capture.WithLogger(p.logger()),
		capture.WithClock(clock.Now),
		capture.WithStream(cfg.FPS, cfg.Container),
	}
	if cfg.Sampling == config.SamplingInterval {
		opts = append(opts, capture.WithSampling(capture.Sampling{Interval: time.Duration(cfg.IntervalMs) * time.Millisecond}))
	}
	if p.Prober != nil {
		opts = append(opts, capture.WithHostProber(p.Prober))
	}
	ctrl := capture.NewController(p.Encoder, opts...)

	frames := p.Trace.Frames
	fmt.Println("--- [SIMCAPTURE: REPLAY] ---")
	fmt.Printf("[*] Scene: %s | Groups: %d | Frames: %d | Trace: %.2fs\n", sceneName(&sceneCfg), len(sceneCfg.AssetGroups), len(frames), p.Trace.Duration())
	fmt.Printf("[*] Resolution: %dx%d @ %d FPS | Sampling: %s\n", cfg.Width, cfg.Height, cfg.FPS, cfg.Sampling)
	fmt.Println("-----------------------------")
	keyframes := p.cameraPath(&sceneCfg, lens)

	clock.set(offset(epoch, frames[0].Time))
	if err := ctrl.Start(ctx, &sceneCfg, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	aspect := float32(cfg.Width) / float32(cfg.Height)
	preview := renderer.Preview{Width: cfg.Width, Height: cfg.Height}
	step := len(frames) / 10
	if step == 0 {
		step = 1
	}

	renderStart := time.Now()
	var runErr error
	for i := range frames {
		if err := ctx.Err(); err != nil {
			// keep whatever was captured
			runErr = err
			break
		}
		f := &frames[i]
		snap := f.Snapshot()
		pose := renderer.InterpolateKeyframes(keyframes, f.Time)
		cam := geom.NewPerspectiveCamera(pose.Position, pose.Target, p.Trace.Camera.Up, lens, aspect)

		rf := capture.RenderedFrame{Snapshot: &snap, Camera: cam}
		var pixels *image.RGBA
		if !cfg.NoVideo {
			pixels = preview.Render(&snap, &sceneCfg, &cam)
			rf.Pixels = pixels
		}

		clock.set(offset(epoch, f.Time))
		ctrl.OnFrameRendered(rf)
		if pixels != nil {
			system.PutFrame(pixels)
		}

		if (i+1)%step == 0 || i == len(frames)-1 {
			fmt.Printf("[>] Rendered: %d/%d\n", i+1, len(frames))
		}
	}
	renderEnd := time.Now()

	clock.set(offset(epoch, frames[len(frames)-1].Time+1/float64(cfg.FPS)))
	encodeStart := time.Now()
	sess, err := ctrl.StopAndWait(context.WithoutCancel(ctx))
	encodeEnd := time.Now()
	if sess == nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	if err != nil {
		fmt.Printf("[!] Video not captured: %v\n", err)
	}

	if err := export.CheckSession(sess); errors.Is(err, export.ErrEmptySession) {
		fmt.Println("[!] Empty session: no frames were sampled, artifacts will be empty")
	}

	exportStart := time.Now()
	results := export.ExportAll(context.WithoutCancel(ctx), sess, formats, export.Options{
		OverlayStride: cfg.OverlayStride,
		Logger:        p.logger(),
	})
	written, err := p.writeArtifacts(results)
	if err != nil {
		return nil, err
	}
	exportTime := time.Since(exportStart)

	if path, ok := written[export.FormatVideo]; ok {
		p.checkVideoDuration(path, len(sess.Frames))
	}

	if cfg.ShowStats {
		p.report(sess, startTime, renderEnd.Sub(renderStart), encodeEnd.Sub(encodeStart), exportTime)
	}

	return &Summary{Session: sess, Results: results, Written: written}, runErr
}

// sceneConfig is the trace's scene unless a scene file overrides it.
func (p *ReplayProject) sceneConfig() (scene.Config, error) {
	if p.Config.ScenePath == "" {
		return p.Trace.Scene.Clone(), nil
	}
	loaded, err := scene.LoadConfig(p.Config.ScenePath)
	if err != nil {
		return scene.Config{}, fmt.Errorf("scene config: %w", err)
	}
	fmt.Printf("[*] Scene config: %s\n", p.Config.ScenePath)
	return *loaded, nil
}

// lens prefers the trace's recorded lens over the configured one.
func (p *ReplayProject) lens() geom.Lens {
	cfg := p.Config
	lens := geom.Lens{FOV: cfg.FOV, Near: cfg.Near, Far: cfg.Far}
	if tc := p.Trace.Camera; tc.FOV > 0 {
		lens = geom.Lens{FOV: tc.FOV, Near: tc.Near, Far: tc.Far}
		if lens.Near <= 0 {
			lens.Near = cfg.Near
		}
		if lens.Far <= lens.Near {
			lens.Far = cfg.Far
		}
	}
	return lens
}

// cameraPath returns the trace's keyframes, or directs a path over the first
// frame when the trace was recorded without one.
func (p *ReplayProject) cameraPath(sceneCfg *scene.Config, lens geom.Lens) []scene.CameraKeyframe {
	if len(p.Trace.Camera.Keyframes) > 0 {
		return p.Trace.Camera.Keyframes
	}
	snap := p.Trace.Frames[0].Snapshot()
	d := director.NewDirector(p.Config.Width, p.Config.Height)
	d.Lens = lens
	keyframes, err := d.GeneratePath(director.Stage(&snap), director.Subjects(&snap, sceneCfg), p.Trace.Duration())
	if err != nil {
		fmt.Printf("[!] Could not direct a camera path: %v\n", err)
		return nil
	}
	fmt.Printf("[*] Trace has no camera path, directed %d keyframes\n", len(keyframes))
	return keyframes
}

// DirectCamera writes a copy of the trace with a generated camera path and
// returns its location. Existing keyframes are replaced.
func (p *ReplayProject) DirectCamera(outputPath string) (string, error) {
	if p.Trace == nil || len(p.Trace.Frames) == 0 {
		return "", fmt.Errorf("trace contains no frames")
	}
	if err := p.Config.Validate(); err != nil {
		return "", err
	}
	fmt.Println("[*] Directing camera path...")

	sceneCfg, err := p.sceneConfig()
	if err != nil {
		return "", err
	}

	directed := *p.Trace
	directed.Camera.Keyframes = nil
	lens := p.lens()
	q := *p
	q.Trace = &directed
	keyframes := q.cameraPath(&sceneCfg, lens)
	if keyframes == nil {
		return "", fmt.Errorf("no camera path generated")
	}
	directed.Camera.Keyframes = keyframes
	directed.Camera.FOV, directed.Camera.Near, directed.Camera.Far = lens.FOV, lens.Near, lens.Far

	if outputPath == "" {
		outputPath = director.GeneratePathFile(p.Config.OutputDir, p.Config.InputPath, time.Now())
	}
	os.MkdirAll(filepath.Dir(outputPath), 0755)
	if err := scene.WriteTrace(&directed, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

func (p *ReplayProject) writeArtifacts(results []export.Result) (map[export.Format]string, error) {
	if err := os.MkdirAll(p.Config.OutputDir, 0755); err != nil {
		return nil, err
	}
	written := make(map[export.Format]string)
	for _, r := range results {
		if r.Err != nil {
			if errors.Is(r.Err, export.ErrNoVideoCaptured) {
				fmt.Printf("[!] %s: skipped, no video was captured\n", r.Format)
			} else {
				fmt.Printf("[!] %s: %v\n", r.Format, r.Err)
			}
			continue
		}
		path := filepath.Join(p.Config.OutputDir, r.Artifact.Filename)
		if err := os.WriteFile(path, r.Artifact.Data, 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		written[r.Format] = path
		fmt.Printf("[+] %s: %s (%d bytes)\n", r.Format, path, len(r.Artifact.Data))
	}
	return written, nil
}

// checkVideoDuration warns when the encoded length drifts from the sampled
// frame count. Frame density follows the render rate, so some drift is normal.
func (p *ReplayProject) checkVideoDuration(path string, frames int) {
	if !system.HasFFmpeg() {
		return
	}
	dur, err := system.GetVideoDuration(path)
	if err != nil {
		p.logger().Debug("ffprobe failed", "path", path, "err", err)
		return
	}
	expected := float64(frames) / float64(p.Config.FPS)
	if math.Abs(dur-expected) > 2/float64(p.Config.FPS) {
		fmt.Printf("[!] Video is %.2fs but %d frames at %d FPS is %.2fs\n", dur, frames, p.Config.FPS, expected)
	}
}

func (p *ReplayProject) report(sess *session.Session, startTime time.Time, renderTime, encodeTime, exportTime time.Duration) {
	totalTime := time.Since(startTime)
	fps := float64(len(sess.Frames)) / totalTime.Seconds()

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Replay (render+annotate): %.2fs\n"+
			"Encoder finalize: %.2fs\n"+
			"Export: %.2fs\n"+
			"Frames: %d | Boxes: %d\n"+
			"Effective FPS: %.2f\n"+
			"----------------------------\n",
		p.Config.BuildVersion, totalTime.Seconds(), renderTime.Seconds(), encodeTime.Seconds(), exportTime.Seconds(),
		len(sess.Frames), sess.ObjectCount(), fps,
	)
	fmt.Print(report)

	logEntry := fmt.Sprintf("[%s] Build: %s | Input: %s | Frames: %d | Boxes: %d | Total: %.2fs | Replay: %.2fs | Finalize: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion,
		filepath.Base(p.Config.InputPath),
		len(sess.Frames),
		sess.ObjectCount(),
		totalTime.Seconds(),
		renderTime.Seconds(),
		encodeTime.Seconds(),
		fps,
	)

	f, err := os.OpenFile(filepath.Join(p.Config.OutputDir, "benchmark.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		fmt.Printf("[!] Could not write benchmark.log: %v\n", err)
	}
}

func (p *ReplayProject) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func sceneName(cfg *scene.Config) string {
	if cfg.Scene.Name != "" {
		return cfg.Scene.Name
	}
	return "untitled"
}
