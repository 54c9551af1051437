// Package workspace loads job records from several JSONL files at once and
// concatenates them into one record sequence.
package workspace

import (
	"path/filepath"
	"strings"
)

// SourceConfig is one data file of a workspace.
type SourceConfig struct {
	// Name labels the source in summaries; defaults to the file basename.
	Name string `yaml:"name,omitempty"`
	// Path is the JSONL file, absolute or relative to the workspace root.
	Path string `yaml:"path"`
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the source should be loaded.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// GetName returns Name, or the file name without the .jsonl extension.
func (s SourceConfig) GetName() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.TrimSuffix(filepath.Base(s.Path), ".jsonl")
}

// ResolvePath returns Path joined to root when it is relative.
func (s SourceConfig) ResolvePath(root string) string {
	if filepath.IsAbs(s.Path) || root == "" {
		return s.Path
	}
	return filepath.Join(root, s.Path)
}

// SourcesFromPaths builds enabled sources from bare paths.
func SourcesFromPaths(paths []string) []SourceConfig {
	out := make([]SourceConfig, len(paths))
	for i, p := range paths {
		out[i] = SourceConfig{Path: p}
	}
	return out
}
