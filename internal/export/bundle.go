package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/simcapture/internal/session"
)

// BundleExporter packs the artifacts of several formats into one zip with a
// manifest and a QR provenance tag. Formats that fail are listed in the
// manifest instead of failing the bundle.
type BundleExporter struct {
	Formats []Format
	Options Options
}

type bundleManifest struct {
	Session          string          `yaml:"session"`
	Frames           int             `yaml:"frames"`
	Annotations      int             `yaml:"annotations"`
	AnnotationDigest string          `yaml:"annotationDigest"`
	Files            []manifestEntry `yaml:"files"`
	Skipped          []manifestSkip  `yaml:"skipped,omitempty"`
}

type manifestEntry struct {
	Format Format `yaml:"format"`
	Name   string `yaml:"name"`
	Size   int    `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

type manifestSkip struct {
	Format Format `yaml:"format"`
	Reason string `yaml:"reason"`
}

func (*BundleExporter) Format() Format { return FormatBundle }

func (e *BundleExporter) Export(s *session.Session) (*Artifact, error) {
	if s == nil {
		s = &session.Session{}
	}
	formats := e.Formats
	if len(formats) == 0 {
		formats = AllFormats
	}

	var parts []Format
	for _, f := range formats {
		if f != FormatBundle {
			parts = append(parts, f)
		}
	}

	arts := make([]*Artifact, len(parts))
	errs := make([]error, len(parts))
	var g errgroup.Group
	for i, f := range parts {
		g.Go(func() error {
			exp, err := New(f, e.Options)
			if err != nil {
				errs[i] = err
				return nil
			}
			arts[i], errs[i] = exp.Export(s)
			return nil
		})
	}
	_ = g.Wait()

	digest := annotationDigest(s)
	m := bundleManifest{
		Session:          s.ID,
		Frames:           len(s.Frames),
		Annotations:      s.ObjectCount(),
		AnnotationDigest: digest,
	}

	a := newArchive(s.StartTime)
	for i, f := range parts {
		if errs[i] != nil {
			m.Skipped = append(m.Skipped, manifestSkip{Format: f, Reason: errs[i].Error()})
			e.Options.logger().Warn("bundle part skipped", "format", f, "err", errs[i])
			continue
		}
		art := arts[i]
		sum := sha256.Sum256(art.Data)
		m.Files = append(m.Files, manifestEntry{Format: f, Name: art.Filename, Size: len(art.Data), SHA256: hex.EncodeToString(sum[:])})
		// archives and video are already compressed
		if err := a.add(art.Filename, art.Data, art.ContentType == "application/json" || art.ContentType == "text/markdown"); err != nil {
			return nil, fmt.Errorf("bundle %s: %w", art.Filename, err)
		}
	}

	qr, err := qrcode.Encode(provenanceText(s, digest), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("bundle provenance: %w", err)
	}
	if err := a.add("provenance.png", qr, false); err != nil {
		return nil, err
	}

	manifest, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("bundle manifest: %w", err)
	}
	if err := a.add("manifest.yaml", manifest, true); err != nil {
		return nil, err
	}

	data, err := a.bytes()
	if err != nil {
		return nil, fmt.Errorf("bundle archive: %w", err)
	}
	return &Artifact{
		Filename:    baseName(s) + "_bundle.zip",
		ContentType: "application/zip",
		Data:        data,
	}, nil
}

// annotationDigest hashes every frame's boxes in order, so two bundles can be
// compared without unpacking their datasets.
func annotationDigest(s *session.Session) string {
	h := sha256.New()
	for _, f := range s.Frames {
		fmt.Fprintf(h, "f%d@%d\n", f.FrameID, f.TimestampMs)
		for _, b := range f.Objects {
			fmt.Fprintf(h, "%d %g %g %g %g\n", b.ClassID, b.X, b.Y, b.Width, b.Height)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func provenanceText(s *session.Session, digest string) string {
	return fmt.Sprintf("simcapture session=%s frames=%d boxes=%d sha256=%s", s.ID, len(s.Frames), s.ObjectCount(), digest[:16])
}
