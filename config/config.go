// Package config loads application settings and the upload zone model.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	ErrNoZones        = errors.New("no upload zones configured")
	ErrDuplicateKey   = errors.New("duplicate upload category")
	ErrInvalidMaximum = errors.New("max_files must be at least 1")
	ErrEmptyName      = errors.New("zone name cannot be empty")
)

// Config holds all application settings.
type Config struct {
	LogLevel   string     `yaml:"log_level"`
	DataFolder string     `yaml:"data_folder"`
	WorkingDir string     `yaml:"working_dir"`
	Backend    Backend    `yaml:"backend"`
	Categories []Category `yaml:"zones"`
}

// Backend configures the Python data processor.
type Backend struct {
	Python  string   `yaml:"python"`
	Script  string   `yaml:"script"`
	Timeout Duration `yaml:"timeout"`
}

// Category is one upload card: a set of sub-zones sharing a backend folder.
type Category struct {
	Key   string `yaml:"key"`
	Dir   string `yaml:"dir"`
	Zones []Zone `yaml:"zones"`
}

// Zone is a single drop target inside a category.
type Zone struct {
	Name     string `yaml:"name"`
	Dir      string `yaml:"dir"` // overrides Category.Dir when set
	MaxFiles int    `yaml:"max_files"`
}

// Duration accepts "90s" / "2m" style values in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// BackendDir returns the folder the backend reads this zone's files from.
func (c Category) BackendDir(index int) string {
	if index >= 0 && index < len(c.Zones) && c.Zones[index].Dir != "" {
		return c.Zones[index].Dir
	}
	return c.Dir
}

// Category looks up a category by key.
func (c *Config) Category(key string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Key == key {
			return cat, true
		}
	}
	return Category{}, false
}

// Default returns the embedded configuration.
func Default() *Config {
	cfg, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Parse decodes YAML on top of nothing and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the default configuration and applies the file at path on top
// of it. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse default config: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			override := cfg
			override.Categories = nil
			if err := yaml.Unmarshal(data, &override); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			if override.Categories == nil {
				override.Categories = cfg.Categories
			}
			cfg = override
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPath returns <UserConfigDir>/Bobine/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "Bobine", "config.yaml")
}

// Validate checks the zone model.
func (c *Config) Validate() error {
	if len(c.Categories) == 0 {
		return ErrNoZones
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Key == "" {
			return fmt.Errorf("category: %w", ErrEmptyName)
		}
		if seen[cat.Key] {
			return fmt.Errorf("%s: %w", cat.Key, ErrDuplicateKey)
		}
		seen[cat.Key] = true
		if len(cat.Zones) == 0 {
			return fmt.Errorf("%s: %w", cat.Key, ErrNoZones)
		}
		for i, z := range cat.Zones {
			if z.Name == "" {
				return fmt.Errorf("%s[%d]: %w", cat.Key, i, ErrEmptyName)
			}
			if z.MaxFiles < 1 {
				return fmt.Errorf("%s/%s: %w", cat.Key, z.Name, ErrInvalidMaximum)
			}
		}
	}
	if c.DataFolder == "" {
		c.DataFolder = "Bobine_data"
	}
	if c.Backend.Python == "" {
		c.Backend.Python = "python3"
	}
	return nil
}
