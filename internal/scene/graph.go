package scene

import "cogentcore.org/core/math32"

// Node is one render object of a scene-graph snapshot. World is the
// node's accumulated world transform at the sampled instant. Geometry is
// given either as a local-space bounding box, as explicit local vertices, or
// both; a node with neither only contributes through its children.
type Node struct {
	ID       string
	World    math32.Matrix4
	Bounds   *math32.Box3
	Vertices []math32.Vector3
	Children []*Node
}

// Tags maps render node ids to the asset group that spawned them. It is kept
// beside the graph so render objects never carry capture ownership data.
type Tags map[string]string

// Snapshot is the renderer's scene graph at one rendered frame.
type Snapshot struct {
	Roots []*Node
	Tags  Tags
}

// Walk visits every node depth-first in pre-order, the renderer's traversal
// order. Returning false from fn skips that node's children.
func (s *Snapshot) Walk(fn func(n *Node) bool) {
	for _, r := range s.Roots {
		walk(r, fn)
	}
}

func walk(n *Node, fn func(n *Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

// GroupOf returns the group id tagged on the node, if any.
func (s *Snapshot) GroupOf(n *Node) (string, bool) {
	if s.Tags == nil {
		return "", false
	}
	id, ok := s.Tags[n.ID]
	return id, ok && id != ""
}

// WorldBounds accumulates the world-space AABB of the node's geometry and of
// every descendant. The result is empty when nothing contributed.
func WorldBounds(n *Node) math32.Box3 {
	box := math32.B3Empty()
	expandWorld(n, &box)
	return box
}

func expandWorld(n *Node, box *math32.Box3) {
	if n == nil {
		return
	}
	if n.Bounds != nil && !n.Bounds.IsEmpty() {
		box.ExpandByBox(n.Bounds.MulMatrix4(&n.World))
	}
	for _, v := range n.Vertices {
		w := math32.Vector4FromVector3(v, 1).MulMatrix4(&n.World)
		box.ExpandByPoint(math32.Vec3(w.X, w.Y, w.Z))
	}
	for _, c := range n.Children {
		expandWorld(c, box)
	}
}
