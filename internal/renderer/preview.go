package renderer

import (
	"image"
	"image/color"

	"cogentcore.org/core/math32"

	"github.com/ivlev/simcapture/internal/geom"
	"github.com/ivlev/simcapture/internal/overlay"
	"github.com/ivlev/simcapture/internal/scene"
	"github.com/ivlev/simcapture/internal/system"
)

var untagged = color.RGBA{R: 90, G: 94, B: 104, A: 255}

// Preview stands in for the simulator's renderer during replays. Each node's
// own geometry is drawn as its flat screen-space footprint, in traversal order,
// colored by class.
type Preview struct {
	Width  int
	Height int
}

// Render draws one frame into a pooled buffer. Hand it back with
// system.PutFrame once the encoder has consumed it.
func (p Preview) Render(snap *scene.Snapshot, cfg *scene.Config, cam *geom.Camera) *image.RGBA {
	img := system.GetFrame(p.Width, p.Height)
	overlay.Clear(img)
	if snap == nil || cam == nil {
		return img
	}

	groupColor := func(n *scene.Node) color.RGBA {
		id, ok := snap.GroupOf(n)
		if !ok || cfg == nil {
			return untagged
		}
		idx, ok := cfg.GroupIndex(id)
		if !ok {
			return untagged
		}
		return overlay.ClassColor(idx + 1)
	}

	// children inherit the class color of their tagged ancestor
	var visit func(n *scene.Node, inherited color.RGBA)
	visit = func(n *scene.Node, inherited color.RGBA) {
		if n == nil {
			return
		}
		c := inherited
		if _, ok := snap.GroupOf(n); ok {
			c = groupColor(n)
		}
		if box, ok := ownBounds(n); ok {
			if r, ok := geom.Project(box, cam, p.Width, p.Height); ok {
				overlay.FillRect(img, r.X, r.Y, r.Width, r.Height, c)
			}
		}
		for _, ch := range n.Children {
			visit(ch, c)
		}
	}
	for _, r := range snap.Roots {
		visit(r, untagged)
	}
	return img
}

// ownBounds is the world box of the node's own geometry, without descendants.
func ownBounds(n *scene.Node) (math32.Box3, bool) {
	leaf := scene.Node{ID: n.ID, World: n.World, Bounds: n.Bounds, Vertices: n.Vertices}
	box := scene.WorldBounds(&leaf)
	return box, !box.IsEmpty()
}
