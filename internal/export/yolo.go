package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/simcapture/internal/session"
)

// YOLOExporter writes one normalized label file per frame into a zip.
type YOLOExporter struct{}

type yoloData struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	NC    int            `yaml:"nc"`
	Names map[int]string `yaml:"names"`
}

func (YOLOExporter) Format() Format { return FormatYOLO }

func (YOLOExporter) Export(s *session.Session) (*Artifact, error) {
	if s == nil {
		s = &session.Session{}
	}
	a := newArchive(s.StartTime)

	for _, f := range s.Frames {
		name := fmt.Sprintf("labels/%06d.txt", f.FrameID)
		if err := a.add(name, []byte(yoloLabels(f.Objects, s.Resolution)), true); err != nil {
			return nil, fmt.Errorf("yolo %s: %w", name, err)
		}
	}

	if len(s.Frames) > 0 {
		data, err := yaml.Marshal(yoloDataFor(s))
		if err != nil {
			return nil, fmt.Errorf("yolo data.yaml: %w", err)
		}
		if err := a.add("data.yaml", data, true); err != nil {
			return nil, err
		}
	}

	data, err := a.bytes()
	if err != nil {
		return nil, fmt.Errorf("yolo archive: %w", err)
	}
	return &Artifact{
		Filename:    baseName(s) + "_yolo.zip",
		ContentType: "application/zip",
		Data:        data,
	}, nil
}

// yoloLabels renders "class cx cy w h" lines normalized by the resolution.
func yoloLabels(boxes []session.BoundingBox2D, res session.Resolution) string {
	if res.Width <= 0 || res.Height <= 0 {
		return ""
	}
	w, h := float64(res.Width), float64(res.Height)

	var sb strings.Builder
	for _, b := range boxes {
		cx := clamp01((b.X + b.Width/2) / w)
		cy := clamp01((b.Y + b.Height/2) / h)
		bw := clamp01(b.Width / w)
		bh := clamp01(b.Height / h)
		fmt.Fprintf(&sb, "%d %s %s %s %s\n", b.ClassID, yoloNum(cx), yoloNum(cy), yoloNum(bw), yoloNum(bh))
	}
	return sb.String()
}

// yoloNum rounds to 6 decimals and drops trailing zeros.
func yoloNum(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// yoloDataFor names every class of the scene, plus any label seen in frames
// whose group is missing from the snapshot.
func yoloDataFor(s *session.Session) yoloData {
	names := make(map[int]string)
	for i, g := range s.Scene.AssetGroups {
		names[i+1] = g.Name
	}
	for _, f := range s.Frames {
		for _, b := range f.Objects {
			if _, ok := names[b.ClassID]; !ok {
				names[b.ClassID] = b.Label
			}
		}
	}

	maxID := 0
	for id := range names {
		if id > maxID {
			maxID = id
		}
	}
	// trainers expect names for every index below nc
	for id := 0; id <= maxID; id++ {
		if _, ok := names[id]; !ok {
			names[id] = "_unused"
		}
	}
	return yoloData{Path: ".", Train: "images", Val: "images", NC: maxID + 1, Names: names}
}
