package session

import (
	"time"

	"github.com/ivlev/simcapture/internal/scene"
	"github.com/ivlev/simcapture/internal/system"
)

// Buffer accumulates frames while a recording is armed. It is owned by a
// single recorder and is not safe for concurrent use.
type Buffer struct {
	id         string
	start      time.Time
	scene      scene.Config
	resolution Resolution
	frames     []Frame
}

// NewBuffer starts an empty buffer. The scene config is copied so later edits
// to the live scene do not leak into the recording.
func NewBuffer(id string, start time.Time, cfg scene.Config, res Resolution) *Buffer {
	return &Buffer{
		id:         id,
		start:      start,
		scene:      cfg.Clone(),
		resolution: res,
	}
}

// Append adds a frame and assigns it the next frame id.
func (b *Buffer) Append(ts time.Time, objects []BoundingBox2D, cam CameraSnapshot) Frame {
	f := Frame{
		FrameID:     len(b.frames),
		TimestampMs: ts.UnixMilli(),
		Objects:     objects,
		Camera:      cam,
	}
	b.frames = append(b.frames, f)
	return f
}

// Len returns the number of frames captured so far.
func (b *Buffer) Len() int {
	return len(b.frames)
}

// Seal produces the immutable session. The buffer must not be used afterwards.
func (b *Buffer) Seal(end time.Time, video []byte, videoExt string, res Resolution, host *system.HostInfo) *Session {
	if end.Before(b.start) {
		end = b.start
	}
	if res.Width <= 0 || res.Height <= 0 {
		res = b.resolution
	}
	frames := make([]Frame, len(b.frames))
	for i, f := range b.frames {
		f.Objects = append([]BoundingBox2D(nil), f.Objects...)
		frames[i] = f
	}
	var v []byte
	if len(video) > 0 {
		v = append([]byte(nil), video...)
	}
	b.frames = nil
	return &Session{
		ID:         b.id,
		Frames:     frames,
		Video:      v,
		VideoExt:   videoExt,
		StartTime:  b.start,
		EndTime:    end,
		Scene:      b.scene,
		Resolution: res,
		Host:       host,
	}
}
