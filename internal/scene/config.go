package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cogentcore.org/core/math32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type ShapeType string

const (
	ShapeCube     ShapeType = "CUBE"
	ShapeSphere   ShapeType = "SPHERE"
	ShapeCylinder ShapeType = "CYLINDER"
	ShapeCapsule  ShapeType = "CAPSULE"
	ShapeModel    ShapeType = "MODEL"
)

// Config is the physics/scene description active while a session is recorded.
// It is owned by the simulation; the capture pipeline only reads it.
type Config struct {
	Gravity     math32.Vector3 `yaml:"gravity" toml:"gravity" json:"gravity"`
	Simulation  Simulation     `yaml:"simulation" toml:"simulation" json:"simulation"`
	AssetGroups []AssetGroup   `yaml:"assetGroups" toml:"assetGroups" json:"assetGroups"`
	Scene       Meta           `yaml:"scene" toml:"scene" json:"scene"`
}

type Simulation struct {
	TimeStep float64 `yaml:"timeStep" toml:"timeStep" json:"timeStep"`
	Substeps int     `yaml:"substeps" toml:"substeps" json:"substeps"`
}

type Meta struct {
	ID          string      `yaml:"id" toml:"id" json:"id"`
	Name        string      `yaml:"name" toml:"name" json:"name"`
	Description string      `yaml:"description" toml:"description" json:"description"`
	Environment Environment `yaml:"environment" toml:"environment" json:"environment"`
}

type Environment struct {
	FloorColor                string  `yaml:"floorColor" toml:"floorColor" json:"floorColor"`
	AmbientLightIntensity     float64 `yaml:"ambientLightIntensity" toml:"ambientLightIntensity" json:"ambientLightIntensity"`
	DirectionalLightIntensity float64 `yaml:"directionalLightIntensity" toml:"directionalLightIntensity" json:"directionalLightIntensity"`
}

// AssetGroup is one family of spawned objects. Its position inside
// Config.AssetGroups defines the dataset class id.
type AssetGroup struct {
	ID             string         `yaml:"id" toml:"id" json:"id"`
	Name           string         `yaml:"name" toml:"name" json:"name"`
	Count          int            `yaml:"count" toml:"count" json:"count"`
	Shape          ShapeType      `yaml:"shape" toml:"shape" json:"shape"`
	ModelID        string         `yaml:"modelId,omitempty" toml:"modelId,omitempty" json:"modelId,omitempty"`
	Color          string         `yaml:"color" toml:"color" json:"color"`
	SpawnMode      string         `yaml:"spawnMode" toml:"spawnMode" json:"spawnMode"`
	Scale          float64        `yaml:"scale" toml:"scale" json:"scale"`
	RigidBodyType  string         `yaml:"rigidBodyType" toml:"rigidBodyType" json:"rigidBodyType"`
	Mass           float64        `yaml:"mass" toml:"mass" json:"mass"`
	Friction       float64        `yaml:"friction" toml:"friction" json:"friction"`
	Restitution    float64        `yaml:"restitution" toml:"restitution" json:"restitution"`
	LinearDamping  float64        `yaml:"linearDamping" toml:"linearDamping" json:"linearDamping"`
	AngularDamping float64        `yaml:"angularDamping" toml:"angularDamping" json:"angularDamping"`
	Dimensions     math32.Vector3 `yaml:"dimensions" toml:"dimensions" json:"dimensions"`
	SpawnPosition  math32.Vector3 `yaml:"spawnPosition" toml:"spawnPosition" json:"spawnPosition"`
	Joints         []Joint        `yaml:"joints,omitempty" toml:"joints,omitempty" json:"joints,omitempty"`
}

// Joint is a named articulation inside an imported model.
type Joint struct {
	Name  string  `yaml:"name" toml:"name" json:"name"`
	Axis  string  `yaml:"axis" toml:"axis" json:"axis"`
	Value float64 `yaml:"value" toml:"value" json:"value"`
	Min   float64 `yaml:"min" toml:"min" json:"min"`
	Max   float64 `yaml:"max" toml:"max" json:"max"`
}

// GroupIndex returns the ordinal of the group with the given id.
func (c *Config) GroupIndex(id string) (int, bool) {
	for i := range c.AssetGroups {
		if c.AssetGroups[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// TotalInstances sums the spawn counts of every group.
func (c *Config) TotalInstances() int {
	total := 0
	for _, g := range c.AssetGroups {
		total += g.Count
	}
	return total
}

// Clone returns a deep copy, so a sealed session never aliases the live scene.
func (c Config) Clone() Config {
	out := c
	if c.AssetGroups != nil {
		out.AssetGroups = make([]AssetGroup, len(c.AssetGroups))
		for i, g := range c.AssetGroups {
			if g.Joints != nil {
				g.Joints = append([]Joint(nil), g.Joints...)
			}
			out.AssetGroups[i] = g
		}
	}
	return out
}

// DefaultConfig mirrors the simulator's built-in physics defaults.
func DefaultConfig() Config {
	return Config{
		Gravity:    math32.Vec3(0, -9.81, 0),
		Simulation: Simulation{TimeStep: 1.0 / 120, Substeps: 4},
	}
}

// LoadConfig reads a scene config from YAML, TOML or JSON, chosen by extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := decodeByExt(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("scene config %s: %w", path, err)
	}
	return &cfg, nil
}

func decodeByExt(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, v)
	case ".json":
		return json.Unmarshal(data, v)
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
}
