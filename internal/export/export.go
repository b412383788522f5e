// Package export turns a sealed recording session into downloadable
// artifacts. Every exporter is a pure function of the session: the same
// session always yields the same bytes.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ivlev/simcapture/internal/session"
)

var (
	ErrNoVideoCaptured = errors.New("no video captured")
	// ErrEmptySession marks a session with zero frames. Exporters still return
	// a valid empty artifact; callers that care use CheckSession.
	ErrEmptySession  = errors.New("empty session")
	ErrUnknownFormat = errors.New("unknown export format")
)

type Format string

const (
	FormatVideo   Format = "video"
	FormatCOCO    Format = "coco"
	FormatYOLO    Format = "yolo"
	FormatReport  Format = "report"
	FormatOverlay Format = "overlay"
	FormatBundle  Format = "bundle"
)

// AllFormats lists every format in the order artifacts are presented.
var AllFormats = []Format{FormatVideo, FormatCOCO, FormatYOLO, FormatReport, FormatOverlay, FormatBundle}

// Artifact is one exported file.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Exporter interface {
	Format() Format
	Export(s *session.Session) (*Artifact, error)
}

// Options tune the exporters that have knobs.
type Options struct {
	// OverlayStride renders every n-th frame into the overlay archive.
	OverlayStride int
	// BundleFormats are packed into the bundle; empty means every other format.
	BundleFormats []Format
	Logger        *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// New creates an exporter for the given format.
func New(format Format, opts Options) (Exporter, error) {
	switch format {
	case FormatVideo:
		return VideoExporter{}, nil
	case FormatCOCO:
		return COCOExporter{}, nil
	case FormatYOLO:
		return YOLOExporter{}, nil
	case FormatReport:
		return ReportExporter{}, nil
	case FormatOverlay:
		return OverlayExporter{Stride: opts.OverlayStride}, nil
	case FormatBundle:
		return &BundleExporter{Formats: opts.BundleFormats, Options: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ParseFormats converts user-supplied names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool)
	var out []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		if f == "" || seen[f] {
			continue
		}
		if _, err := New(f, Options{}); err != nil {
			return nil, err
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

// CheckSession reports ErrEmptySession for a session without frames.
func CheckSession(s *session.Session) error {
	if s == nil || s.Empty() {
		return ErrEmptySession
	}
	return nil
}

// baseName is the deterministic file stem shared by a session's artifacts.
func baseName(s *session.Session) string {
	return "capture_" + s.StartTime.UTC().Format("20060102_150405")
}
