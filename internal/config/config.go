// Package config holds the resolved configuration values fnref consumes.
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

// FileName is the per-workspace configuration file.
const FileName = ".fnref.yaml"

//go:embed defaults.yaml
var defaultsYAML []byte

// Config is a read-only snapshot of the configuration surface.
type Config struct {
	// DefinitionsRoot overrides auto-detection when non-empty. Relative
	// paths are resolved against the workspace root.
	DefinitionsRoot string `yaml:"definitions_root"`

	// FrontendPaths are the usage search scopes. Empty means the whole
	// workspace.
	FrontendPaths []string `yaml:"frontend_paths"`

	// CustomWrappers are added to the default wrapper set.
	CustomWrappers []string `yaml:"custom_wrappers"`

	ExcludeGlobs []string `yaml:"exclude_globs"`

	// MarkerFile is the config file whose directory is the definitions root.
	MarkerFile string `yaml:"marker_file"`

	CacheTTL Duration `yaml:"cache_ttl"`

	// SearchTool is the ripgrep executable name or path.
	SearchTool string `yaml:"search_tool"`

	// SearchJobs bounds how many scopes are searched at once.
	SearchJobs int `yaml:"search_jobs"`

	// KindScript is an optional Risor script with custom kind rules.
	KindScript string `yaml:"kind_script"`
}

// Duration decodes YAML strings such as "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the embedded default configuration.
func Default() Config {
	var c Config
	if err := yaml.Unmarshal(defaultsYAML, &c); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return c
}

// Load returns the defaults overlaid with the config file in workspaceRoot,
// if one exists.
func Load(workspaceRoot string) (Config, error) {
	return LoadFile(filepath.Join(workspaceRoot, FileName))
}

// LoadFile returns the defaults overlaid with the YAML file at path. A
// missing file is not an error.
func LoadFile(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Validate checks values that would otherwise fail later in surprising ways.
func (c Config) Validate() error {
	if c.MarkerFile == "" {
		return errors.New("marker_file must not be empty")
	}
	if c.CacheTTL < 0 {
		return errors.New("cache_ttl must not be negative")
	}
	if c.SearchJobs < 0 {
		return errors.New("search_jobs must not be negative")
	}
	return nil
}

// TTL returns CacheTTL as a time.Duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.CacheTTL)
}
