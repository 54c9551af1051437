// Package hooks runs user commands around `jw export`.
// Hooks live in .jw/hooks.yaml under the project directory and run
// before the snapshot is rendered (pre-export) or after it is written
// (post-export).
package hooks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Phase says when a hook runs.
type Phase string

const (
	// PreExport hooks run before rendering. A failure cancels the export.
	PreExport Phase = "pre-export"
	// PostExport hooks run after the file is written.
	PostExport Phase = "post-export"
)

// OnError values.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// DefaultTimeout bounds a hook without an explicit timeout.
const DefaultTimeout = 30 * time.Second

// Hook is one configured command.
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// Config is the hooks.yaml document.
type Config struct {
	Hooks ByPhase `yaml:"hooks" json:"hooks"`
}

// ByPhase groups hooks by phase.
type ByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty" json:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty" json:"post-export,omitempty"`
}

// ExportContext describes the export to the hook through JW_* variables.
type ExportContext struct {
	ExportPath   string
	ExportFormat string
	JobID        int
	JobCount     int // jobs in the loaded graph
	Timestamp    time.Time
}

// ToEnv renders the context as environment entries.
func (c ExportContext) ToEnv() []string {
	return []string{
		"JW_EXPORT_PATH=" + c.ExportPath,
		"JW_EXPORT_FORMAT=" + c.ExportFormat,
		fmt.Sprintf("JW_JOB_ID=%d", c.JobID),
		fmt.Sprintf("JW_JOB_COUNT=%d", c.JobCount),
		"JW_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// Path returns the hooks file for a project directory.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ".jw", "hooks.yaml")
}

// Loader reads and normalizes a hooks file.
type Loader struct {
	projectDir string
	config     *Config
	warnings   []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithProjectDir sets the directory holding .jw/ (default: working directory).
func WithProjectDir(dir string) LoaderOption {
	return func(l *Loader) { l.projectDir = dir }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.projectDir == "" {
		l.projectDir, _ = os.Getwd()
	}
	return l
}

// Load reads the hooks file. A missing file yields an empty config.
func (l *Loader) Load() error {
	path := Path(l.projectDir)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		l.config = &Config{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	l.warnings = nil
	cfg.Hooks.PreExport, l.warnings = normalize(cfg.Hooks.PreExport, PreExport, l.warnings)
	cfg.Hooks.PostExport, l.warnings = normalize(cfg.Hooks.PostExport, PostExport, l.warnings)
	l.config = &cfg
	return nil
}

// normalize fills defaults and drops hooks without a command.
func normalize(hooks []Hook, phase Phase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i, h := range hooks {
		if strings.TrimSpace(h.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if h.Timeout <= 0 {
			h.Timeout = DefaultTimeout
		}
		switch h.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			h.OnError = OnErrorContinue
			if phase == PreExport {
				h.OnError = OnErrorFail
			}
		default:
			warnings = append(warnings, fmt.Sprintf("%s hook %q: unknown on_error %q, using %q", phase, h.Name, h.OnError, OnErrorFail))
			h.OnError = OnErrorFail
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, h)
	}
	return out, warnings
}

// Config returns the loaded configuration, or an empty one.
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

func (l *Loader) HasHooks() bool {
	return l.config != nil && len(l.config.Hooks.PreExport)+len(l.config.Hooks.PostExport) > 0
}

// Hooks returns the hooks of one phase.
func (l *Loader) Hooks(phase Phase) []Hook {
	if l.config == nil {
		return nil
	}
	switch phase {
	case PreExport:
		return l.config.Hooks.PreExport
	case PostExport:
		return l.config.Hooks.PostExport
	}
	return nil
}

func (l *Loader) Warnings() []string {
	return l.warnings
}

// LoadDefault loads hooks from the working directory.
func LoadDefault() (*Loader, error) {
	l := NewLoader()
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

// UnmarshalYAML accepts timeouts as durations ("5s") or bare seconds ("30").
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*h = Hook{Name: raw.Name, Command: raw.Command, Env: raw.Env, OnError: raw.OnError}

	if raw.Timeout == "" {
		return nil
	}
	d, err := time.ParseDuration(raw.Timeout)
	if err != nil {
		var seconds float64
		if _, scanErr := fmt.Sscanf(raw.Timeout, "%f", &seconds); scanErr != nil {
			return fmt.Errorf("invalid timeout %q: %w", raw.Timeout, err)
		}
		d = time.Duration(seconds * float64(time.Second))
	}
	h.Timeout = d
	return nil
}
