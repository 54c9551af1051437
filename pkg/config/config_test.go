package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/jobwork/pkg/layering"
	"github.com/vanderheijden86/jobwork/pkg/selector"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Data.Dir != "data" || cfg.Data.Basename != "defined" {
		t.Errorf("expected data/defined, got %s/%s", cfg.Data.Dir, cfg.Data.Basename)
	}
	if cfg.Serve.Addr != ":8888" {
		t.Errorf("expected :8888, got %q", cfg.Serve.Addr)
	}
	if cfg.UI.SplitRatio != 0.4 {
		t.Errorf("expected split ratio 0.4, got %f", cfg.UI.SplitRatio)
	}
	if !cfg.ShowColumns() || !cfg.LiveReload() {
		t.Error("columns view and live reload should default to on")
	}
	if cfg.SelectorOptions().Mode != selector.ClosureConnected {
		t.Error("default closure should be connected")
	}
	if cfg.LayeringOptions().Policy != layering.PolicyFirstVisit {
		t.Error("default policy should be first-visit")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Data.Basename != "defined" {
		t.Errorf("expected default config, got basename %q", cfg.Data.Basename)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
data:
  dir: ~/jobs
  basename: nightly
  sources:
    - path: ~/jobs/a.jsonl
    - name: second
      path: b.jsonl
      enabled: false

filter:
  closure: lineage

layout:
  policy: shortest

ui:
  split_ratio: 0.5
  show_columns: false

serve:
  addr: 127.0.0.1:9000
  allowed_origins: ["http://dash.local"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	if cfg.Data.Dir != filepath.Join(home, "jobs") {
		t.Errorf("expected expanded dir, got %q", cfg.Data.Dir)
	}
	if cfg.Data.Basename != "nightly" {
		t.Errorf("basename = %q", cfg.Data.Basename)
	}
	if len(cfg.Data.Sources) != 2 || cfg.Data.Sources[0].Path != filepath.Join(home, "jobs/a.jsonl") {
		t.Errorf("sources = %+v", cfg.Data.Sources)
	}
	if cfg.Data.Sources[1].IsEnabled() {
		t.Error("second source should be disabled")
	}
	if cfg.SelectorOptions().Mode != selector.ClosureLineage {
		t.Error("expected lineage closure")
	}
	if cfg.LayeringOptions().Policy != layering.PolicyShortest {
		t.Error("expected shortest policy")
	}
	if cfg.ShowColumns() {
		t.Error("show_columns: false not honoured")
	}
	if cfg.Serve.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %q", cfg.Serve.Addr)
	}
	if len(cfg.Serve.AllowedOrigins) != 1 || cfg.Serve.AllowedOrigins[0] != "http://dash.local" {
		t.Errorf("allowed_origins = %v", cfg.Serve.AllowedOrigins)
	}
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad closure", "filter:\n  closure: sideways\n", "filter.closure"},
		{"bad policy", "layout:\n  policy: widest\n", "layout.policy"},
		{"bad ratio", "ui:\n  split_ratio: 0.95\n", "ui.split_ratio"},
		{"bad yaml", "data: [unclosed\n", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			os.WriteFile(path, []byte(tt.content), 0o644)
			_, err := LoadFrom(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("JW_DATA_DIR", "/srv/data")
	t.Setenv("JW_DATA_BASENAME", "prod")
	t.Setenv("PORT", "9999")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Data.Dir != "/srv/data" || cfg.Data.Basename != "prod" || cfg.Serve.Addr != ":9999" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.DataPath() != filepath.Join("/srv/data", "prod.jsonl") {
		t.Errorf("DataPath() = %s", cfg.DataPath())
	}
}

func TestLoad_UsesXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("JW_DATA_DIR", "")
	t.Setenv("JW_DATA_BASENAME", "")
	t.Setenv("PORT", "")

	if ConfigPath() != filepath.Join(dir, "jw", "config.yaml") {
		t.Errorf("ConfigPath() = %s", ConfigPath())
	}

	cfg := DefaultConfig()
	cfg.Data.Basename = "saved"
	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Data.Basename != "saved" {
		t.Errorf("round trip basename = %q", loaded.Data.Basename)
	}
}
