package director

import (
	"fmt"
	"math"

	"cogentcore.org/core/math32"

	"github.com/ivlev/simcapture/internal/geom"
	"github.com/ivlev/simcapture/internal/scene"
)

// Director plans a camera path for traces recorded without one: an
// establishing shot of the whole scene, a dwell on each asset group, and a
// closing establishing shot.
type Director struct {
	Lens     geom.Lens
	Aspect   float32
	MinDwell float64 // Minimum time per subject (seconds)
	MaxDwell float64 // Maximum time per subject (seconds)
	// Elevation of every shot above the horizon, in degrees.
	Elevation float64
}

// Subject is one thing worth framing.
type Subject struct {
	Name   string
	Bounds math32.Box3
}

// NewDirector creates a new Director with default settings
func NewDirector(viewportWidth, viewportHeight int) *Director {
	aspect := float32(1)
	if viewportHeight > 0 {
		aspect = float32(viewportWidth) / float32(viewportHeight)
	}
	return &Director{
		Lens:      geom.DefaultLens(),
		Aspect:    aspect,
		MinDwell:  1.0,
		MaxDwell:  3.0,
		Elevation: 25,
	}
}

// Subjects groups the tagged nodes of a snapshot by asset group, in class
// order. Groups with nothing on stage are left out.
func Subjects(snap *scene.Snapshot, cfg *scene.Config) []Subject {
	if snap == nil || cfg == nil {
		return nil
	}
	boxes := make([]math32.Box3, len(cfg.AssetGroups))
	for i := range boxes {
		boxes[i] = math32.B3Empty()
	}
	snap.Walk(func(n *scene.Node) bool {
		id, ok := snap.GroupOf(n)
		if !ok {
			return true
		}
		idx, ok := cfg.GroupIndex(id)
		if !ok {
			return true
		}
		if b := scene.WorldBounds(n); !b.IsEmpty() {
			boxes[idx].ExpandByBox(b)
		}
		return true
	})

	var out []Subject
	for i, b := range boxes {
		if !b.IsEmpty() {
			out = append(out, Subject{Name: cfg.AssetGroups[i].Name, Bounds: b})
		}
	}
	return out
}

// Stage is the world bounds of everything in the snapshot.
func Stage(snap *scene.Snapshot) math32.Box3 {
	box := math32.B3Empty()
	if snap == nil {
		return box
	}
	for _, r := range snap.Roots {
		if b := scene.WorldBounds(r); !b.IsEmpty() {
			box.ExpandByBox(b)
		}
	}
	return box
}

// GeneratePath creates camera keyframes that visit every subject within
// totalDuration seconds.
func (d *Director) GeneratePath(stage math32.Box3, subjects []Subject, totalDuration float64) ([]scene.CameraKeyframe, error) {
	if stage.IsEmpty() {
		return nil, fmt.Errorf("nothing on stage to frame")
	}

	fullDist := d.fitDistance(stage)
	full := d.shot(stage, fullDist)
	full.Focus = "full_view"
	keyframes := []scene.CameraKeyframe{full}

	currentTime := 1.0 // 1s intro
	if len(subjects) > 0 {
		dwellTime := d.calculateDwellTime(totalDuration, len(subjects))
		for _, s := range subjects {
			kf := d.shot(s.Bounds, fullDist/d.calculateZoom(stage, s.Bounds))
			kf.Time = currentTime
			kf.Focus = s.Name
			keyframes = append(keyframes, kf)
			currentTime += dwellTime
		}
	}

	// End with full view
	end := full
	end.Time = currentTime
	keyframes = append(keyframes, end)
	return keyframes, nil
}

// calculateDwellTime determines how long to stay on each subject
func (d *Director) calculateDwellTime(totalDuration float64, count int) float64 {
	// Reserve time for intro/outro (full view)
	introOutroDuration := 2.0
	availableDuration := totalDuration - introOutroDuration

	if availableDuration <= 0 {
		availableDuration = totalDuration
	}

	dwellTime := availableDuration / float64(count)
	if dwellTime < d.MinDwell {
		dwellTime = d.MinDwell
	}
	if dwellTime > d.MaxDwell {
		dwellTime = d.MaxDwell
	}
	return dwellTime
}

// calculateZoom is how much closer than the establishing shot a subject is
// framed. Subjects keep a 10% margin.
func (d *Director) calculateZoom(stage, subject math32.Box3) float64 {
	padding := 0.9

	stageR := radius(stage)
	subjectR := radius(subject)
	if subjectR == 0 {
		return 1.0
	}

	zoom := stageR / subjectR * padding
	if zoom < 1.0 {
		zoom = 1.0
	}
	if zoom > 3.0 {
		zoom = 3.0
	}
	return zoom
}

// fitDistance is how far the camera must be for the bounding sphere of box
// to fill the narrower field of view.
func (d *Director) fitDistance(box math32.Box3) float64 {
	fov := float64(d.Lens.FOV)
	if fov <= 0 {
		fov = float64(geom.DefaultLens().FOV)
	}
	halfV := fov * math.Pi / 360
	halfH := math.Atan(math.Tan(halfV) * float64(d.Aspect))
	return radius(box) / math.Sin(math.Min(halfV, halfH))
}

// shot aims at the center of box from dist away, raised by Elevation.
func (d *Director) shot(box math32.Box3, dist float64) scene.CameraKeyframe {
	center := math32.Vec3(
		(box.Min.X+box.Max.X)/2,
		(box.Min.Y+box.Max.Y)/2,
		(box.Min.Z+box.Max.Z)/2,
	)
	if near := float64(d.Lens.Near); dist < near*2 {
		dist = near * 2
	}

	elev := d.Elevation * math.Pi / 180
	return scene.CameraKeyframe{
		Position: math32.Vec3(center.X, center.Y+float32(math.Sin(elev)*dist), center.Z+float32(math.Cos(elev)*dist)),
		Target:   center,
	}
}

func radius(b math32.Box3) float64 {
	dx := float64(b.Max.X - b.Min.X)
	dy := float64(b.Max.Y - b.Min.Y)
	dz := float64(b.Max.Z - b.Min.Z)
	return math.Sqrt(dx*dx+dy*dy+dz*dz) / 2
}
