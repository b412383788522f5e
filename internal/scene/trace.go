package scene

import (
	"fmt"
	"os"

	"cogentcore.org/core/math32"
	"gopkg.in/yaml.v3"
)

// Trace is a recorded simulation run that can be replayed through the capture
// pipeline without a live renderer.
type Trace struct {
	Version string       `yaml:"version" toml:"version" json:"version"`
	Scene   Config       `yaml:"scene" toml:"scene" json:"scene"`
	Camera  CameraTrack  `yaml:"camera" toml:"camera" json:"camera"`
	Frames  []TraceFrame `yaml:"frames" toml:"frames" json:"frames"`
}

// CameraTrack describes the lens and the camera path over time.
type CameraTrack struct {
	FOV       float32          `yaml:"fov" toml:"fov" json:"fov"`
	Near      float32          `yaml:"near" toml:"near" json:"near"`
	Far       float32          `yaml:"far" toml:"far" json:"far"`
	Up        math32.Vector3   `yaml:"up" toml:"up" json:"up"`
	Keyframes []CameraKeyframe `yaml:"keyframes" toml:"keyframes" json:"keyframes"`
}

// CameraKeyframe is a camera pose at a time offset in seconds.
type CameraKeyframe struct {
	Time     float64        `yaml:"time" toml:"time" json:"time"`
	Position math32.Vector3 `yaml:"position" toml:"position" json:"position"`
	Target   math32.Vector3 `yaml:"target" toml:"target" json:"target"`
	Focus    string         `yaml:"focus,omitempty" toml:"focus,omitempty" json:"focus,omitempty"`
}

// TraceFrame is the scene state at one simulated instant.
type TraceFrame struct {
	Time    float64      `yaml:"time" toml:"time" json:"time"`
	Objects []ObjectSpec `yaml:"objects" toml:"objects" json:"objects"`
}

// ObjectSpec is a render object in parent space. Size is the extent of its
// local geometry centered on the origin; Rotation is Euler angles in degrees.
type ObjectSpec struct {
	ID       string           `yaml:"id" toml:"id" json:"id"`
	Group    string           `yaml:"group,omitempty" toml:"group,omitempty" json:"group,omitempty"`
	Position math32.Vector3   `yaml:"position" toml:"position" json:"position"`
	Rotation math32.Vector3   `yaml:"rotation" toml:"rotation" json:"rotation"`
	Scale    math32.Vector3   `yaml:"scale" toml:"scale" json:"scale"`
	Size     math32.Vector3   `yaml:"size" toml:"size" json:"size"`
	Vertices []math32.Vector3 `yaml:"vertices,omitempty" toml:"vertices,omitempty" json:"vertices,omitempty"`
	Children []ObjectSpec     `yaml:"children,omitempty" toml:"children,omitempty" json:"children,omitempty"`
}

// Snapshot builds the scene graph and the node→group side table for a frame.
func (f *TraceFrame) Snapshot() Snapshot {
	snap := Snapshot{Tags: Tags{}}
	var root math32.Matrix4
	root.SetIdentity()
	for i := range f.Objects {
		snap.Roots = append(snap.Roots, f.Objects[i].node(&root, snap.Tags))
	}
	return snap
}

func (o *ObjectSpec) node(parent *math32.Matrix4, tags Tags) *Node {
	scale := o.Scale
	if scale == (math32.Vector3{}) {
		scale = math32.Vec3(1, 1, 1)
	}
	var q math32.Quat
	q.SetFromEuler(math32.Vec3(
		math32.DegToRad(o.Rotation.X),
		math32.DegToRad(o.Rotation.Y),
		math32.DegToRad(o.Rotation.Z),
	))
	var local math32.Matrix4
	local.SetTransform(o.Position, q, scale)

	n := &Node{ID: o.ID, Vertices: o.Vertices}
	n.World.MulMatrices(parent, &local)
	if o.Size != (math32.Vector3{}) {
		b := math32.B3Empty()
		b.SetFromCenterAndSize(math32.Vector3{}, o.Size)
		n.Bounds = &b
	}
	if o.Group != "" {
		tags[o.ID] = o.Group
	}
	for i := range o.Children {
		n.Children = append(n.Children, o.Children[i].node(&n.World, tags))
	}
	return n
}

// Duration is the time of the last frame.
func (t *Trace) Duration() float64 {
	if len(t.Frames) == 0 {
		return 0
	}
	return t.Frames[len(t.Frames)-1].Time
}

// WriteTrace writes a trace to a YAML file
func WriteTrace(trace *Trace, path string) error {
	data, err := yaml.Marshal(trace)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadTrace reads a trace from a YAML, TOML or JSON file
func ReadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trace := Trace{Scene: DefaultConfig()}
	if err := decodeByExt(path, data, &trace); err != nil {
		return nil, fmt.Errorf("trace %s: %w", path, err)
	}

	return &trace, nil
}
