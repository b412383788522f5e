// Package annotate turns a scene-graph snapshot into per-frame 2D object
// annotations.
package annotate

import (
	"log/slog"

	"github.com/ivlev/simcapture/internal/geom"
	"github.com/ivlev/simcapture/internal/scene"
	"github.com/ivlev/simcapture/internal/session"
)

// Viewport is the pixel size annotations are expressed in. It must be the
// physical size of the encoded video, not a DPI-scaled logical size.
type Viewport struct {
	Width  int
	Height int
}

// Stats counts objects dropped while annotating one frame.
type Stats struct {
	Tagged       int
	UnknownGroup int
	NoGeometry   int
	OffScreen    int
}

// Annotator extracts bounding boxes from scene-graph snapshots.
type Annotator struct {
	Logger *slog.Logger
}

func New(logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{Logger: logger}
}

// Annotate walks the snapshot once and returns one box per tagged node that
// is at least partly on screen, in traversal order. Nodes whose group is
// unknown, that have no geometry, or that project off-screen are skipped;
// a bad object never fails the frame.
func (a *Annotator) Annotate(snap *scene.Snapshot, cfg *scene.Config, cam *geom.Camera, vp Viewport) ([]session.BoundingBox2D, Stats) {
	var stats Stats
	if snap == nil || cfg == nil || cam == nil {
		return nil, stats
	}

	boxes := []session.BoundingBox2D{}
	snap.Walk(func(n *scene.Node) bool {
		groupID, ok := snap.GroupOf(n)
		if !ok {
			return true
		}
		stats.Tagged++

		idx, ok := cfg.GroupIndex(groupID)
		if !ok {
			// group removed since the frame began
			stats.UnknownGroup++
			return true
		}

		world := scene.WorldBounds(n)
		if world.IsEmpty() {
			stats.NoGeometry++
			return true
		}

		r, ok := geom.Project(world, cam, vp.Width, vp.Height)
		if !ok {
			stats.OffScreen++
			return true
		}

		boxes = append(boxes, session.BoundingBox2D{
			X:       r.X,
			Y:       r.Y,
			Width:   r.Width,
			Height:  r.Height,
			Label:   cfg.AssetGroups[idx].Name,
			ClassID: idx + 1,
		})
		return true
	})

	if stats.UnknownGroup > 0 && a.Logger != nil {
		a.Logger.Debug("skipped objects with unknown group", "count", stats.UnknownGroup)
	}
	return boxes, stats
}
