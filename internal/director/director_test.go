package director

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/simcapture/internal/geom"
	"github.com/ivlev/simcapture/internal/scene"
)

func stageFrame() (*scene.Snapshot, *scene.Config) {
	cfg := scene.DefaultConfig()
	cfg.AssetGroups = []scene.AssetGroup{
		{ID: "crates", Name: "Crate"},
		{ID: "balls", Name: "Ball"},
		{ID: "ghosts", Name: "Ghost"},
	}
	frame := scene.TraceFrame{Objects: []scene.ObjectSpec{
		{ID: "floor", Size: math32.Vec3(20, 0.1, 20)},
		{ID: "crate-0", Group: "crates", Position: math32.Vec3(-4, 0.5, 0), Size: math32.Vec3(1, 1, 1)},
		{ID: "crate-1", Group: "crates", Position: math32.Vec3(-2, 0.5, 0), Size: math32.Vec3(1, 1, 1)},
		{ID: "ball-0", Group: "balls", Position: math32.Vec3(3, 0.25, 1), Size: math32.Vec3(0.5, 0.5, 0.5)},
	}}
	snap := frame.Snapshot()
	return &snap, &cfg
}

func TestSubjectsInClassOrder(t *testing.T) {
	snap, cfg := stageFrame()
	subjects := Subjects(snap, cfg)

	require.Len(t, subjects, 2, "groups without objects are skipped")
	assert.Equal(t, "Crate", subjects[0].Name)
	assert.InDelta(t, -4.5, subjects[0].Bounds.Min.X, 1e-5)
	assert.InDelta(t, -1.5, subjects[0].Bounds.Max.X, 1e-5)
	assert.Equal(t, "Ball", subjects[1].Name)
}

func TestGeneratePath(t *testing.T) {
	snap, cfg := stageFrame()
	d := NewDirector(1280, 720)

	keyframes, err := d.GeneratePath(Stage(snap), Subjects(snap, cfg), 6.0)
	require.NoError(t, err)

	// intro + 2 subjects + outro
	require.Len(t, keyframes, 4)
	assert.Equal(t, "full_view", keyframes[0].Focus)
	assert.Equal(t, "Crate", keyframes[1].Focus)
	assert.Equal(t, "full_view", keyframes[3].Focus)
	assert.Equal(t, 0.0, keyframes[0].Time)
	assert.Equal(t, 1.0, keyframes[1].Time)
	assert.Equal(t, 3.0, keyframes[2].Time, "dwell is (6-2)/2")
	assert.Equal(t, keyframes[0].Position, keyframes[3].Position)

	// closer on subjects than on the establishing shot
	dist := func(kf scene.CameraKeyframe) float64 {
		dx := float64(kf.Position.X - kf.Target.X)
		dy := float64(kf.Position.Y - kf.Target.Y)
		dz := float64(kf.Position.Z - kf.Target.Z)
		return math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	assert.Less(t, dist(keyframes[2]), dist(keyframes[0]))
	assert.Greater(t, keyframes[0].Position.Y, keyframes[0].Target.Y, "shots look down at the stage")
}

func TestGeneratedShotsKeepSubjectsInView(t *testing.T) {
	snap, cfg := stageFrame()
	d := NewDirector(640, 480)
	subjects := Subjects(snap, cfg)
	keyframes, err := d.GeneratePath(Stage(snap), subjects, 10)
	require.NoError(t, err)

	for i, s := range subjects {
		kf := keyframes[i+1]
		cam := geom.NewPerspectiveCamera(kf.Position, kf.Target, math32.Vec3(0, 1, 0), d.Lens, d.Aspect)
		r, ok := geom.Project(s.Bounds, &cam, 640, 480)
		require.True(t, ok, s.Name)
		assert.Greater(t, r.X, 0.0, s.Name)
		assert.Greater(t, r.Y, 0.0, s.Name)
		assert.Less(t, r.X+r.Width, 640.0, s.Name)
		assert.Less(t, r.Y+r.Height, 480.0, s.Name)
	}
}

func TestGeneratePathEmptyStage(t *testing.T) {
	_, err := NewDirector(640, 480).GeneratePath(math32.B3Empty(), nil, 5)
	assert.Error(t, err)
}

func TestDwellTimeClamped(t *testing.T) {
	d := NewDirector(640, 480)
	assert.Equal(t, 3.0, d.calculateDwellTime(60, 2))
	assert.Equal(t, 1.0, d.calculateDwellTime(3, 10))
	assert.Equal(t, 1.5, d.calculateDwellTime(5, 2))
}

func TestGeneratePathFile(t *testing.T) {
	now := time.Date(2026, 2, 13, 1, 0, 0, 0, time.UTC)
	got := GeneratePathFile("output", "input/traces/drop test.yaml", now)
	assert.Equal(t, filepath.Join("output", "drop_test_directed_2026-02-13_01-00-00.yaml"), got)
}
