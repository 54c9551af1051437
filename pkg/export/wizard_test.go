package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/jobwork/pkg/layering"
)

func TestWizardConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jw", "export.json")

	if cfg, err := LoadWizardConfig(path); err != nil || cfg != nil {
		t.Fatalf("missing file: got %+v, %v", cfg, err)
	}

	want := WizardConfig{JobID: 2, Format: "png", Output: "out.png", Policy: "shortest"}
	if err := SaveWizardConfig(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadWizardConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}

	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := LoadWizardConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestWizardConfig_Options(t *testing.T) {
	g := threeJobGraph()

	opts, err := WizardConfig{JobID: 1, Output: "cols", Policy: "bfs"}.Options(g)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Format != "svg" || opts.Path != "cols.svg" || opts.Layering.Policy != layering.PolicyShortest || opts.JobID != 1 {
		t.Errorf("options = %+v", opts)
	}

	if _, err := (WizardConfig{Output: "a.svg", Policy: "widest"}).Options(g); err == nil {
		t.Error("expected policy error")
	}
	if _, err := (WizardConfig{Output: "a.bmp"}).Options(g); err == nil {
		t.Error("expected format error")
	}
}

func TestNewWizard_DropsStaleSavedJob(t *testing.T) {
	g := threeJobGraph()
	path := filepath.Join(t.TempDir(), "export.json")
	if err := SaveWizardConfig(path, WizardConfig{JobID: 40, Format: "png"}); err != nil {
		t.Fatal(err)
	}

	w := NewWizard(g, WizardConfig{JobID: 1}, path)
	if w.config.JobID != 1 {
		t.Errorf("stale saved job kept: %d", w.config.JobID)
	}
	if w.config.Format != "png" {
		t.Errorf("saved format not used: %q", w.config.Format)
	}
}

func TestParseJobID(t *testing.T) {
	g := threeJobGraph()
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{" #2 ", 2, false},
		{"3", 0, true},
		{"-1", 0, true},
		{"two", 0, true},
	}
	for _, tt := range tests {
		got, err := parseJobID(g, tt.in)
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Errorf("parseJobID(%q) = %d, %v", tt.in, got, err)
		}
	}
}
