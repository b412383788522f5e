package session

import (
	"time"

	"cogentcore.org/core/math32"

	"github.com/ivlev/simcapture/internal/scene"
	"github.com/ivlev/simcapture/internal/system"
)

// BoundingBox2D is one annotated object in pixel space, top-left origin.
// ClassID is the 1-based ordinal of the object's asset group.
type BoundingBox2D struct {
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
	Width   float64 `json:"width" yaml:"width"`
	Height  float64 `json:"height" yaml:"height"`
	Label   string  `json:"label" yaml:"label"`
	ClassID int     `json:"classId" yaml:"classId"`
}

// CameraSnapshot records where the camera was when a frame was sampled.
type CameraSnapshot struct {
	Position math32.Vector3 `json:"position" yaml:"position"`
	Target   math32.Vector3 `json:"target" yaml:"target"`
}

// Frame is one sampled instant of a recording.
type Frame struct {
	FrameID     int             `json:"frameId" yaml:"frameId"`
	TimestampMs int64           `json:"timestamp" yaml:"timestamp"`
	Objects     []BoundingBox2D `json:"objects" yaml:"objects"`
	Camera      CameraSnapshot  `json:"camera" yaml:"camera"`
}

// Resolution is the encoded video size in physical pixels.
type Resolution struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Session is a sealed recording. Nothing mutates it after Seal, so any number
// of exporters may read it concurrently.
type Session struct {
	ID         string
	Frames     []Frame
	Video      []byte
	VideoExt   string
	StartTime  time.Time
	EndTime    time.Time
	Scene      scene.Config
	Resolution Resolution
	Host       *system.HostInfo
}

// HasVideo reports whether the encoder produced any bytes.
func (s *Session) HasVideo() bool {
	return len(s.Video) > 0
}

// Empty reports whether no frames were captured.
func (s *Session) Empty() bool {
	return len(s.Frames) == 0
}

// Duration is EndTime - StartTime, never negative.
func (s *Session) Duration() time.Duration {
	d := s.EndTime.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// ObjectCount is the number of annotations across all frames.
func (s *Session) ObjectCount() int {
	n := 0
	for i := range s.Frames {
		n += len(s.Frames[i].Objects)
	}
	return n
}
