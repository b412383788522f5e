package video

import (
	"context"
	"errors"
	"image"
)

// ErrStreamClosed is returned when frames are written after Finalize.
var ErrStreamClosed = errors.New("video stream already finalized")

// StreamSpec sizes an encoding stream. Width and Height are the render
// surface's physical pixel dimensions.
type StreamSpec struct {
	Width     int
	Height    int
	FPS       int
	Container string
}

// Result is what a finalized stream produced. Data is nil when nothing was
// encoded.
type Result struct {
	Data      []byte
	Container string
	Width     int
	Height    int
	Frames    int
	Err       error
}

// Encoder opens encoding streams.
type Encoder interface {
	Open(ctx context.Context, spec StreamSpec) (Stream, error)
}

// Stream is one running encode. WriteFrame is called from the render thread
// and must not wait on the encoder; the caller may reuse img once it returns.
// Finalize flushes in the background and reports through done exactly once.
type Stream interface {
	WriteFrame(img image.Image) error
	Finalize(done func(Result))
}

// NullEncoder produces streams that discard frames, for annotation-only
// capture on hosts without an encoder.
type NullEncoder struct{}

func (NullEncoder) Open(_ context.Context, spec StreamSpec) (Stream, error) {
	return &nullStream{spec: spec}, nil
}

type nullStream struct {
	spec   StreamSpec
	frames int
	closed bool
}

func (s *nullStream) WriteFrame(image.Image) error {
	if s.closed {
		return ErrStreamClosed
	}
	s.frames++
	return nil
}

func (s *nullStream) Finalize(done func(Result)) {
	s.closed = true
	res := Result{Container: s.spec.Container, Width: s.spec.Width, Height: s.spec.Height, Frames: s.frames}
	go done(res)
}
