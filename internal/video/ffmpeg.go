package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"golang.org/x/image/draw"

	"github.com/ivlev/simcapture/internal/system"
)

// FFmpegEncoder encodes raw RGBA frames piped through an ffmpeg child process.
type FFmpegEncoder struct {
	EncoderName string
	Quality     int
	TempDir     string
	Logger      *slog.Logger
}

func (e *FFmpegEncoder) Open(ctx context.Context, spec StreamSpec) (Stream, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("invalid stream size %dx%d", spec.Width, spec.Height)
	}
	if spec.FPS <= 0 {
		spec.FPS = 30
	}
	if spec.Container == "" {
		spec.Container = "webm"
	}
	encoderName := e.EncoderName
	if encoderName == "" {
		encoderName = system.GetBestEncoder(spec.Container)
	}
	quality := e.Quality
	if quality == 0 {
		quality = system.DefaultQuality(encoderName)
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := os.MkdirTemp(e.TempDir, "simcapture_")
	if err != nil {
		return nil, err
	}
	outPath := filepath.Join(dir, "capture."+spec.Container)

	args := buildFFmpegArgs(spec, outPath, encoderName, quality)
	s, err := startStream(exec.CommandContext(ctx, "ffmpeg", args...), spec, dir, outPath, logger)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	logger.Info("video stream opened",
		"encoder", encoderName,
		"size", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"fps", spec.FPS,
		"container", spec.Container,
	)
	return s, nil
}

// startStream runs cmd and starts the goroutine feeding its stdin.
func startStream(cmd *exec.Cmd, spec StreamSpec, dir, outPath string, logger *slog.Logger) (*ffmpegStream, error) {
	s := &ffmpegStream{
		spec:    spec,
		dir:     dir,
		outPath: outPath,
		cmd:     cmd,
		logger:  logger,
		drained: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	cmd.Stdout = &s.log
	cmd.Stderr = &s.log

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	s.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	go s.writeLoop()
	return s, nil
}

// encodedSize is the frame size ffmpeg produces for spec. yuv420p needs
// even dimensions, so odd sizes are padded by one pixel.
func encodedSize(spec StreamSpec) (int, int) {
	return spec.Width + spec.Width%2, spec.Height + spec.Height%2
}

func buildFFmpegArgs(spec StreamSpec, outPath, encoderName string, quality int) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-framerate", fmt.Sprintf("%d", spec.FPS),
		"-i", "-",
	}

	// yuv420p needs even dimensions; pad right/bottom so pixel coordinates
	// of the annotations stay valid
	if spec.Width%2 != 0 || spec.Height%2 != 0 {
		args = append(args, "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2")
	}

	args = append(args, "-pix_fmt", "yuv420p", "-c:v", encoderName)

	switch encoderName {
	case "h264_videotoolbox":
		// VideoToolbox does not accept -q:v everywhere; use bitrate
		bitrate := quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", quality))
	case "libvpx-vp9":
		args = append(args, "-crf", fmt.Sprintf("%d", quality), "-b:v", "0", "-deadline", "realtime")
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", quality), "-preset", "medium")
	}

	args = append(args, outPath)
	return args
}

type ffmpegStream struct {
	spec    StreamSpec
	dir     string
	outPath string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	log     bytes.Buffer
	logger  *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*image.RGBA
	written int
	werr    error
	closed  bool
	drained chan struct{}
}

// WriteFrame copies img and queues it for the writer goroutine. It never
// waits on ffmpeg; a failed pipe write is reported by the next call.
func (s *ffmpegStream) WriteFrame(img image.Image) error {
	frame := s.copyFrame(img)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		system.PutFrame(frame)
		return ErrStreamClosed
	}
	if s.werr != nil {
		system.PutFrame(frame)
		return s.werr
	}
	s.queue = append(s.queue, frame)
	s.cond.Signal()
	return nil
}

func (s *ffmpegStream) writeLoop() {
	defer close(s.drained)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		frame := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		failed := s.werr != nil
		s.mu.Unlock()

		var err error
		if !failed {
			_, err = s.stdin.Write(frame.Pix)
		}
		system.PutFrame(frame)

		s.mu.Lock()
		if err != nil && s.werr == nil {
			s.werr = fmt.Errorf("write raw error: %w", err)
			s.logger.Warn("ffmpeg stopped reading frames", "err", err)
		} else if err == nil && !failed {
			s.written++
		}
		s.mu.Unlock()
	}
}

// copyFrame returns a pooled, tightly packed RGBA copy of img at the stream
// size, scaling when the renderer delivered a different size.
func (s *ffmpegStream) copyFrame(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := system.GetFrame(s.spec.Width, s.spec.Height)
	if b.Dx() == s.spec.Width && b.Dy() == s.spec.Height {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return dst
}

func (s *ffmpegStream) Finalize(done func(Result)) {
	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	if alreadyClosed {
		go done(Result{Err: ErrStreamClosed})
		return
	}

	go func() {
		// queued frames still go to ffmpeg before stdin closes
		<-s.drained

		s.mu.Lock()
		frames, werr := s.written, s.werr
		s.mu.Unlock()

		w, h := encodedSize(s.spec)
		res := Result{
			Container: s.spec.Container,
			Width:     w,
			Height:    h,
			Frames:    frames,
		}
		defer os.RemoveAll(s.dir)

		if frames == 0 {
			// nothing to flush; ffmpeg would only fail on empty input
			s.stdin.Close()
			if s.cmd.Process != nil {
				s.cmd.Process.Kill()
			}
			s.cmd.Wait()
			res.Err = werr
			done(res)
			return
		}

		s.stdin.Close()
		if err := s.cmd.Wait(); err != nil {
			res.Err = fmt.Errorf("ffmpeg wait error: %w, output: %s", err, s.log.String())
			done(res)
			return
		}
		if werr != nil {
			res.Err = werr
			done(res)
			return
		}

		data, err := os.ReadFile(s.outPath)
		if err != nil {
			res.Err = fmt.Errorf("read encoded video: %w", err)
			done(res)
			return
		}
		res.Data = data
		s.logger.Info("video stream finalized", "frames", frames, "bytes", len(data))
		done(res)
	}()
}
