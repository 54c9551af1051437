// Package config handles loading and saving jw configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/jw/config.yaml
//
// Environment variables override the file: JW_DATA_DIR, JW_DATA_BASENAME
// and PORT. Command-line flags override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/jobwork/pkg/layering"
	"github.com/vanderheijden86/jobwork/pkg/loader"
	"github.com/vanderheijden86/jobwork/pkg/selector"
	"github.com/vanderheijden86/jobwork/pkg/workspace"
)

// DataConfig says where job records come from.
type DataConfig struct {
	Dir      string `yaml:"dir,omitempty"`      // Directory of <basename>.jsonl
	Basename string `yaml:"basename,omitempty"` // Data file name without .jsonl
	URL      string `yaml:"url,omitempty"`      // Remote jw server; overrides files
	SQLite   string `yaml:"sqlite,omitempty"`   // Extra database to consider
	// Sources lists several JSONL files loaded together instead of the single
	// data file. Records are concatenated in list order.
	Sources []workspace.SourceConfig `yaml:"sources,omitempty"`
}

// FilterConfig controls selector filtering.
type FilterConfig struct {
	Closure string `yaml:"closure,omitempty"` // connected, lineage
}

// LayoutConfig controls the columns view.
type LayoutConfig struct {
	Policy string `yaml:"policy,omitempty"` // first-visit, shortest
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	SplitRatio  float64 `yaml:"split_ratio,omitempty"`  // Job list width share (0.2-0.8)
	ShowColumns *bool   `yaml:"show_columns,omitempty"` // Columns view instead of detail on start
}

// ServeConfig configures jw serve.
type ServeConfig struct {
	Addr           string   `yaml:"addr,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"` // CORS; empty allows any origin
}

// ExperimentalConfig holds experimental feature flags.
type ExperimentalConfig struct {
	LiveReload *bool `yaml:"live_reload,omitempty"`
}

// Config is the top-level configuration for jw.
type Config struct {
	Data         DataConfig         `yaml:"data,omitempty"`
	Filter       FilterConfig       `yaml:"filter,omitempty"`
	Layout       LayoutConfig       `yaml:"layout,omitempty"`
	UI           UIConfig           `yaml:"ui,omitempty"`
	Serve        ServeConfig        `yaml:"serve,omitempty"`
	Experimental ExperimentalConfig `yaml:"experimental,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Data: DataConfig{
			Dir:      loader.DefaultDataDir,
			Basename: loader.DefaultBasename,
		},
		Filter: FilterConfig{Closure: selector.ClosureConnected.String()},
		Layout: LayoutConfig{Policy: layering.PolicyFirstVisit.String()},
		UI: UIConfig{
			SplitRatio: 0.4,
		},
		Serve: ServeConfig{Addr: ":8888"},
	}
}

// ConfigDir returns the XDG config directory for jw.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "jw")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "jw")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.ApplyEnv()
		return cfg, nil
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFrom reads config from a specific path without environment overrides.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Data.Dir = expandHome(cfg.Data.Dir)
	cfg.Data.SQLite = expandHome(cfg.Data.SQLite)
	for i := range cfg.Data.Sources {
		cfg.Data.Sources[i].Path = expandHome(cfg.Data.Sources[i].Path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from JW_DATA_DIR, JW_DATA_BASENAME and PORT.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(loader.DataDirEnvVar); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(loader.BasenameEnvVar); v != "" {
		c.Data.Basename = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Serve.Addr = ":" + v
	}
}

// Validate checks enumerated fields and ranges.
func (c Config) Validate() error {
	if _, err := selector.ParseClosureMode(c.Filter.Closure); err != nil {
		return fmt.Errorf("filter.closure: %w", err)
	}
	if _, err := layering.ParsePolicy(c.Layout.Policy); err != nil {
		return fmt.Errorf("layout.policy: %w", err)
	}
	if r := c.UI.SplitRatio; r != 0 && (r < 0.2 || r > 0.8) {
		return fmt.Errorf("ui.split_ratio: %.2f outside 0.2-0.8", r)
	}
	return nil
}

// SelectorOptions returns the filtering options. Call Validate first;
// invalid values fall back to the defaults.
func (c Config) SelectorOptions() selector.Options {
	mode, _ := selector.ParseClosureMode(c.Filter.Closure)
	return selector.Options{Mode: mode}
}

// LayeringOptions returns the layering options.
func (c Config) LayeringOptions() layering.Options {
	policy, _ := layering.ParsePolicy(c.Layout.Policy)
	return layering.Options{Policy: policy}
}

// ShowColumns reports whether the columns view is shown on start (default true).
func (c Config) ShowColumns() bool {
	return c.UI.ShowColumns == nil || *c.UI.ShowColumns
}

// LiveReload reports whether the data file is watched (default true).
func (c Config) LiveReload() bool {
	return c.Experimental.LiveReload == nil || *c.Experimental.LiveReload
}

// DataPath returns <data.dir>/<data.basename>.jsonl.
func (c Config) DataPath() string {
	return loader.ResolveDataPath(c.Data.Dir, c.Data.Basename)
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
