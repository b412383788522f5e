package export

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/ivlev/simcapture/internal/overlay"
	"github.com/ivlev/simcapture/internal/session"
)

// OverlayExporter renders the boxes of every Stride-th frame onto a blank
// canvas of the session resolution, for eyeballing annotation quality.
type OverlayExporter struct {
	Stride int
}

func (OverlayExporter) Format() Format { return FormatOverlay }

func (e OverlayExporter) Export(s *session.Session) (*Artifact, error) {
	if s == nil {
		s = &session.Session{}
	}
	stride := e.Stride
	if stride < 1 {
		stride = 1
	}

	a := newArchive(s.StartTime)
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	w, h := s.Resolution.Width, s.Resolution.Height

	if w > 0 && h > 0 {
		var buf bytes.Buffer
		for i := 0; i < len(s.Frames); i += stride {
			f := s.Frames[i]
			img := overlay.Annotated(w, h, f.Objects)
			overlay.Label(img, 4, h-6, fmt.Sprintf("frame %d  t=%dms  boxes=%d", f.FrameID, f.TimestampMs, len(f.Objects)), overlay.Background)

			buf.Reset()
			if err := enc.Encode(&buf, img); err != nil {
				return nil, fmt.Errorf("overlay frame %d: %w", f.FrameID, err)
			}
			if err := a.add(fmt.Sprintf("overlay/%06d.png", f.FrameID), buf.Bytes(), false); err != nil {
				return nil, err
			}
		}
	}

	data, err := a.bytes()
	if err != nil {
		return nil, fmt.Errorf("overlay archive: %w", err)
	}
	return &Artifact{
		Filename:    baseName(s) + "_overlay.zip",
		ContentType: "application/zip",
		Data:        data,
	}, nil
}
