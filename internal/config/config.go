// Package config loads the meshview TOML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/taigrr/meshview/pkg/importer"
	"github.com/taigrr/meshview/pkg/models"
)

// Backends accepted in Config.Backend.
const (
	BackendTerminal = "term"
	BackendWindow   = "gl"
)

// Config holds viewer settings. Zero fields in a file keep their defaults.
type Config struct {
	Backend  string `toml:"backend"`
	FPS      int    `toml:"fps"`
	Width    int    `toml:"width"`
	Height   int    `toml:"height"`
	LogLevel string `toml:"log_level"`
	Watch    bool   `toml:"watch"`

	Background [3]uint8   `toml:"background"`
	LightDir   [3]float32 `toml:"light_dir"`
	Wireframe  bool       `toml:"wireframe"`

	Import   Import    `toml:"import"`
	Textures []Binding `toml:"texture"`
}

// Import selects optional post-processing steps.
type Import struct {
	SmoothNormals bool `toml:"smooth_normals"`
	FlipUVs       bool `toml:"flip_uvs"`
}

// Binding binds a material texture slot to a sampler name prefix.
type Binding struct {
	Slot string `toml:"slot"`
	Kind string `toml:"kind"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:    BackendTerminal,
		FPS:        30,
		Width:      1280,
		Height:     720,
		LogLevel:   "info",
		Background: [3]uint8{30, 30, 40},
		LightDir:   [3]float32{0.5, 1, 0.3},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "meshview", "config.toml"), nil
}

// Load reads the file at path over Default. When optional is set a
// missing file yields the defaults.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data over cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("parse config at %d:%d: %w", row, col, err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return cfg.Validate()
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendTerminal, BackendWindow:
	default:
		return fmt.Errorf("backend %q: want %q or %q", c.Backend, BackendTerminal, BackendWindow)
	}
	if c.FPS <= 0 || c.FPS > 240 {
		return fmt.Errorf("fps %d out of range 1..240", c.FPS)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Width, c.Height)
	}
	if _, err := c.TextureCategories(); err != nil {
		return err
	}
	return nil
}

// ImportFlags returns the post-processing steps for models.WithImportFlags.
func (c Config) ImportFlags() importer.PostProcess {
	flags := models.DefaultImportFlags
	if c.Import.SmoothNormals {
		flags = flags&^importer.GenNormals | importer.GenSmoothNormals
	}
	if c.Import.FlipUVs {
		flags |= importer.FlipUVs
	}
	return flags
}

// TextureCategories converts the texture bindings, or returns the model
// defaults when none are configured.
func (c Config) TextureCategories() ([]models.TextureCategory, error) {
	if len(c.Textures) == 0 {
		return models.DefaultTextureCategories, nil
	}
	cats := make([]models.TextureCategory, 0, len(c.Textures))
	for _, b := range c.Textures {
		slot, ok := importer.ParseTextureType(b.Slot)
		if !ok {
			return nil, fmt.Errorf("texture slot %q unknown", b.Slot)
		}
		if b.Kind == "" {
			return nil, fmt.Errorf("texture slot %q has no kind", b.Slot)
		}
		cats = append(cats, models.TextureCategory{Slot: slot, Kind: models.TextureKind(b.Kind)})
	}
	return cats, nil
}
