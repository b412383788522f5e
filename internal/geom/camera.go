package geom

import "cogentcore.org/core/math32"

// Camera is the pose and combined view-projection transform the renderer used
// for one frame. Only ViewProjection takes part in projection; Position and
// Target are kept for the frame's camera snapshot.
type Camera struct {
	Position       math32.Vector3
	Target         math32.Vector3
	ViewProjection math32.Matrix4
}

// Lens holds perspective projection parameters. FOV is vertical, in degrees.
type Lens struct {
	FOV  float32
	Near float32
	Far  float32
}

// DefaultLens matches the simulator's default perspective camera.
func DefaultLens() Lens {
	return Lens{FOV: 45, Near: 0.1, Far: 1000}
}

// NewPerspectiveCamera builds a look-at camera with a perspective projection
// for a viewport of the given aspect ratio (width / height).
func NewPerspectiveCamera(pos, target, up math32.Vector3, lens Lens, aspect float32) Camera {
	if up == (math32.Vector3{}) {
		up = math32.Vec3(0, 1, 0)
	}
	if lens.FOV <= 0 {
		lens = DefaultLens()
	}

	var lookq math32.Quat
	lookq.SetFromRotationMatrix(math32.NewLookAt(pos, target, up))
	var pose math32.Matrix4
	pose.SetTransform(pos, lookq, math32.Vec3(1, 1, 1))
	view, err := pose.Inverse()
	if err != nil {
		// degenerate pose (position == target); fall back to identity view
		view = &math32.Matrix4{}
		view.SetIdentity()
	}

	var prjn math32.Matrix4
	prjn.SetPerspective(lens.FOV, aspect, lens.Near, lens.Far)

	cam := Camera{Position: pos, Target: target}
	cam.ViewProjection.MulMatrices(&prjn, view)
	return cam
}
