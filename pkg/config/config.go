// Package config loads checktree settings from .checktree/config.yaml.
//
// Example:
//
//	hierarchical_check: true
//	multi_select: false
//	data: tree.yaml
//	database: ""
//	state_dir: .checktree
//	watch: true
//	lazy:
//	  latency: 300ms
//	  fail_rate: 0.1
//
// Relative paths are resolved against the project directory (the parent of
// .checktree). Command-line flags override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DirName is the per-project directory holding config and state.
const DirName = ".checktree"

// FileName is the config file inside DirName.
const FileName = "config.yaml"

// EnvDir overrides the state directory.
const EnvDir = "CHECKTREE_DIR"

// Config holds the settings for one project.
type Config struct {
	HierarchicalCheck bool   `yaml:"hierarchical_check"`
	MultiSelect       bool   `yaml:"multi_select"`
	Data              string `yaml:"data,omitempty"`     // Tree document (JSON or YAML)
	Database          string `yaml:"database,omitempty"` // SQLite source
	StateDir          string `yaml:"state_dir,omitempty"`
	Watch             *bool  `yaml:"watch,omitempty"` // nil = true

	Lazy LazyConfig `yaml:"lazy,omitempty"`

	// ProjectDir is where the config was found; not read from the file.
	ProjectDir string `yaml:"-"`
}

// LazyConfig tunes the demo fetcher.
type LazyConfig struct {
	Latency  Duration `yaml:"latency,omitempty"`
	FailRate float64  `yaml:"fail_rate,omitempty"`
}

// Duration is a time.Duration that reads "300ms" style strings from YAML.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		StateDir: DirName,
		Lazy:     LazyConfig{Latency: Duration(300 * time.Millisecond)},
	}
}

// WatchEnabled reports whether the data file should be watched for changes.
func (c *Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Data != "" && c.Database != "" {
		return errors.New("data and database are mutually exclusive")
	}
	if c.Lazy.FailRate < 0 || c.Lazy.FailRate > 1 {
		return fmt.Errorf("lazy.fail_rate %v out of range [0, 1]", c.Lazy.FailRate)
	}
	if c.Lazy.Latency < 0 {
		return fmt.Errorf("lazy.latency %v is negative", time.Duration(c.Lazy.Latency))
	}
	return nil
}

// Path returns the config file path for a project directory.
func Path(projectDir string) string {
	return filepath.Join(projectDir, DirName, FileName)
}

// Load reads the config of projectDir, starting from Default. A missing file
// is not an error. Relative paths are made absolute against projectDir and
// EnvDir, when set, replaces the state directory.
func Load(projectDir string) (Config, error) {
	cfg := Default()
	cfg.ProjectDir = projectDir

	path := Path(projectDir)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if dir := os.Getenv(EnvDir); dir != "" {
		cfg.StateDir = dir
	}
	cfg.Data = resolve(projectDir, cfg.Data)
	cfg.Database = resolve(projectDir, cfg.Database)
	cfg.StateDir = resolve(projectDir, cfg.StateDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}
