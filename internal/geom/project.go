package geom

import (
	"math"

	"cogentcore.org/core/math32"
)

// Rect is a screen-space rectangle in pixels with a top-left origin.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return !(r.Width > 0 && r.Height > 0)
}

// nearW is the clip-space w below which a point counts as behind the camera.
const nearW = 1e-5

// Project maps a world-space AABB to the axis-aligned pixel rectangle that
// encloses all eight of its projected corners, clamped to the viewport. The
// second result is false when the box is fully off-screen.
//
// All eight corners are needed: under perspective the screen extremum of a
// box does not have to come from its world min/max corners.
func Project(box math32.Box3, cam *Camera, width, height int) (Rect, bool) {
	if box.IsEmpty() || width <= 0 || height <= 0 {
		return Rect{}, false
	}
	m := &cam.ViewProjection

	var clip [8]math32.Vector4
	var outside [6]int
	front := 0
	for i := range clip {
		v := math32.Vector4FromVector3(corner(box, i), 1).MulMatrix4(m)
		clip[i] = v
		if v.W > nearW {
			front++
		}
		if v.X < -v.W {
			outside[0]++
		}
		if v.X > v.W {
			outside[1]++
		}
		if v.Y < -v.W {
			outside[2]++
		}
		if v.Y > v.W {
			outside[3]++
		}
		if v.Z < -v.W {
			outside[4]++
		}
		if v.Z > v.W {
			outside[5]++
		}
	}
	if front == 0 {
		return Rect{}, false
	}
	for _, n := range outside {
		if n == len(clip) {
			return Rect{}, false
		}
	}

	var ndc math32.Box3
	if front == len(clip) {
		ndc = box.MVProjToNDC(m)
	} else {
		ndc = clipNear(&clip)
	}
	if ndc.IsEmpty() {
		return Rect{}, false
	}
	return toViewport(ndc, width, height)
}

// corner returns box corner i, with bit 0/1/2 selecting max on x/y/z.
func corner(b math32.Box3, i int) math32.Vector3 {
	c := b.Min
	if i&1 != 0 {
		c.X = b.Max.X
	}
	if i&2 != 0 {
		c.Y = b.Max.Y
	}
	if i&4 != 0 {
		c.Z = b.Max.Z
	}
	return c
}

// clipNear returns the NDC extent of the box part in front of the camera,
// using the front corners plus the points where box edges cross the near
// w plane. Clip space is linear in world space, so edge interpolation holds.
func clipNear(clip *[8]math32.Vector4) math32.Box3 {
	nb := math32.B3Empty()
	for i, v := range clip {
		if v.W > nearW {
			nb.ExpandByPoint(v.PerspDiv())
		}
		for _, bit := range [3]int{1, 2, 4} {
			if i&bit != 0 {
				continue
			}
			a, b := clip[i], clip[i|bit]
			if (a.W > nearW) == (b.W > nearW) {
				continue
			}
			t := (nearW - a.W) / (b.W - a.W)
			nb.ExpandByPoint(a.Lerp(b, t).PerspDiv())
		}
	}
	return nb
}

func toViewport(ndc math32.Box3, width, height int) (Rect, bool) {
	hw := float64(width) / 2
	hh := float64(height) / 2

	minX := float64(ndc.Min.X)*hw + hw
	maxX := float64(ndc.Max.X)*hw + hw
	// device y grows upward, pixel y grows downward
	minY := -float64(ndc.Max.Y)*hh + hh
	maxY := -float64(ndc.Min.Y)*hh + hh

	x0 := math.Max(0, minX)
	y0 := math.Max(0, minY)
	x1 := math.Min(float64(width), maxX)
	y1 := math.Min(float64(height), maxY)

	r := Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
	if math.IsNaN(r.Width) || math.IsNaN(r.Height) || r.Empty() {
		return Rect{}, false
	}
	return r, true
}
