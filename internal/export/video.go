package export

import (
	"bytes"

	"github.com/ivlev/simcapture/internal/session"
)

// VideoExporter passes the encoded capture through unchanged.
type VideoExporter struct{}

func (VideoExporter) Format() Format { return FormatVideo }

func (VideoExporter) Export(s *session.Session) (*Artifact, error) {
	if s == nil || !s.HasVideo() {
		return nil, ErrNoVideoCaptured
	}
	ext := s.VideoExt
	if ext == "" {
		ext = "webm"
	}
	return &Artifact{
		Filename:    baseName(s) + "." + ext,
		ContentType: "video/" + ext,
		Data:        bytes.Clone(s.Video),
	}, nil
}
