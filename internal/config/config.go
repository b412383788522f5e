package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	SamplingRender   = "render"
	SamplingInterval = "interval"
)

// EnvPrefix prefixes every environment override, e.g. SIMCAPTURE_FPS.
const EnvPrefix = "SIMCAPTURE_"

type Config struct {
	InputPath  string `yaml:"input" toml:"input" env:"INPUT"`
	ScenePath  string `yaml:"scene" toml:"scene" env:"SCENE"`
	OutputDir  string `yaml:"outputDir" toml:"outputDir" env:"OUTPUT_DIR"`
	Width      int    `yaml:"width" toml:"width" env:"WIDTH"`
	Height     int    `yaml:"height" toml:"height" env:"HEIGHT"`
	FPS        int    `yaml:"fps" toml:"fps" env:"FPS"`
	Container  string `yaml:"container" toml:"container" env:"CONTAINER"`
	NoVideo    bool   `yaml:"noVideo" toml:"noVideo" env:"NO_VIDEO"`
	Encoder    string `yaml:"encoder" toml:"encoder" env:"ENCODER"`
	Quality    int    `yaml:"quality" toml:"quality" env:"QUALITY"`
	TempDir    string `yaml:"tempDir" toml:"tempDir" env:"TEMP_DIR"`
	Sampling   string `yaml:"sampling" toml:"sampling" env:"SAMPLING"`
	IntervalMs int    `yaml:"sampleIntervalMs" toml:"sampleIntervalMs" env:"SAMPLE_INTERVAL_MS"`

	FOV  float32 `yaml:"fov" toml:"fov" env:"FOV"`
	Near float32 `yaml:"near" toml:"near" env:"NEAR"`
	Far  float32 `yaml:"far" toml:"far" env:"FAR"`

	Formats       []string `yaml:"formats" toml:"formats" env:"FORMATS" envSeparator:","`
	OverlayStride int      `yaml:"overlayStride" toml:"overlayStride" env:"OVERLAY_STRIDE"`

	ShowStats    bool   `yaml:"showStats" toml:"showStats" env:"SHOW_STATS"`
	LogLevel     string `yaml:"logLevel" toml:"logLevel" env:"LOG_LEVEL"`
	BuildVersion string `yaml:"-" toml:"-"`
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		OutputDir:     "output",
		Width:         1280,
		Height:        720,
		FPS:           30,
		Container:     "webm",
		Sampling:      SamplingRender,
		IntervalMs:    33,
		FOV:           45,
		Near:          0.1,
		Far:           1000,
		Formats:       []string{"video", "coco", "yolo", "report"},
		OverlayStride: 10,
		LogLevel:      "info",
	}
}

// Load reads a YAML or TOML config file over the defaults and then applies
// SIMCAPTURE_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = toml.Unmarshal(data, cfg)
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			err = fmt.Errorf("unsupported config format %q", filepath.Ext(path))
		}
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate normalizes derived values and rejects unusable settings.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", c.FPS)
	}
	// yuv420p encodes need even dimensions
	c.Width += c.Width % 2
	c.Height += c.Height % 2

	c.Container = strings.ToLower(c.Container)
	switch c.Container {
	case "webm", "mp4":
	case "":
		c.Container = "webm"
	default:
		return fmt.Errorf("unsupported container %q", c.Container)
	}

	switch c.Sampling {
	case SamplingRender:
	case SamplingInterval:
		if c.IntervalMs <= 0 {
			return fmt.Errorf("sampling interval must be positive, got %dms", c.IntervalMs)
		}
	case "":
		c.Sampling = SamplingRender
	default:
		return fmt.Errorf("unknown sampling mode %q", c.Sampling)
	}

	if c.OverlayStride <= 0 {
		c.OverlayStride = 1
	}
	for i, f := range c.Formats {
		c.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return nil
}
