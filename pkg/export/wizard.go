package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/jobwork/pkg/config"
	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/layering"
)

// selectLimit is the largest graph offered as a pick list; bigger graphs ask
// for an id.
const selectLimit = 200

// WizardConfig holds the answers of the export wizard. The last answers are
// saved and offered as defaults next time.
type WizardConfig struct {
	JobID  int    `json:"job_id"`
	Format string `json:"format"`
	Output string `json:"output"`
	Policy string `json:"policy"`
	Preset string `json:"preset,omitempty"`
}

// Options turns the answers into snapshot options for g.
func (c WizardConfig) Options(g *jobgraph.Graph) (SnapshotOptions, error) {
	policy, err := layering.ParsePolicy(c.Policy)
	if err != nil {
		return SnapshotOptions{}, err
	}
	format, path, err := FormatFor(c.Format, c.Output)
	if err != nil {
		return SnapshotOptions{}, err
	}
	return SnapshotOptions{
		Path:     path,
		Format:   format,
		Preset:   c.Preset,
		Graph:    g,
		JobID:    c.JobID,
		Layering: layering.Options{Policy: policy},
	}, nil
}

// WizardConfigPath is where the last answers are kept.
func WizardConfigPath() string {
	dir := config.ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "export.json")
}

// LoadWizardConfig reads saved answers. A missing file is not an error.
func LoadWizardConfig(path string) (*WizardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cfg WizardConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveWizardConfig writes answers for the next run.
func SaveWizardConfig(path string, cfg WizardConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// CanPrompt reports whether stdin and stdout are terminals.
func CanPrompt() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Wizard asks which job to export and where.
type Wizard struct {
	graph      *jobgraph.Graph
	config     WizardConfig
	configPath string
}

// NewWizard starts from defaults, overridden by saved answers at configPath
// when they still fit g.
func NewWizard(g *jobgraph.Graph, defaults WizardConfig, configPath string) *Wizard {
	w := &Wizard{graph: g, config: defaults, configPath: configPath}
	if configPath == "" {
		return w
	}
	if saved, err := LoadWizardConfig(configPath); err == nil && saved != nil {
		if !g.Has(saved.JobID) {
			saved.JobID = defaults.JobID
		}
		w.config = *saved
	}
	return w
}

func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		form = form.WithAccessible(true)
	}
	return form
}

// Run asks the questions and returns the chosen options. Answers are saved
// on success.
func (w *Wizard) Run() (SnapshotOptions, error) {
	cfg := w.config
	if cfg.Format == "" {
		cfg.Format = "svg"
	}
	if cfg.Policy == "" {
		cfg.Policy = layering.PolicyFirstVisit.String()
	}

	if err := newForm(huh.NewGroup(w.jobField(&cfg))).Run(); err != nil {
		return SnapshotOptions{}, err
	}

	if cfg.Output == "" || !strings.HasSuffix(cfg.Output, "."+cfg.Format) {
		cfg.Output = fmt.Sprintf("job-%d-columns.%s", cfg.JobID, cfg.Format)
	}

	form := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Format").
				Options(
					huh.NewOption("SVG (scalable, text selectable)", "svg"),
					huh.NewOption("PNG (raster)", "png"),
				).
				Value(&cfg.Format),
			huh.NewSelect[string]().
				Title("Layering").
				Options(
					huh.NewOption("First visit (depth of first discovery)", layering.PolicyFirstVisit.String()),
					huh.NewOption("Shortest (minimum hop distance)", layering.PolicyShortest.String()),
				).
				Value(&cfg.Policy),
			huh.NewInput().
				Title("Output file").
				Value(&cfg.Output).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("output path is required")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return SnapshotOptions{}, err
	}

	opts, err := cfg.Options(w.graph)
	if err != nil {
		return SnapshotOptions{}, err
	}
	w.config = cfg
	if w.configPath != "" {
		if err := SaveWizardConfig(w.configPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save export settings: %v\n", err)
		}
	}
	return opts, nil
}

// jobField is a pick list for small graphs and an id input otherwise.
func (w *Wizard) jobField(cfg *WizardConfig) huh.Field {
	if w.graph.Len() <= selectLimit {
		opts := make([]huh.Option[int], 0, w.graph.Len())
		for _, j := range w.graph.Jobs() {
			opts = append(opts, huh.NewOption(truncate(j.Title(), 60), j.ID))
		}
		return huh.NewSelect[int]().
			Title("Job to export").
			Options(opts...).
			Value(&cfg.JobID)
	}

	idText := strconv.Itoa(cfg.JobID)
	return huh.NewInput().
		Title(fmt.Sprintf("Job id (0-%d)", w.graph.Len()-1)).
		Value(&idText).
		Validate(func(s string) error {
			id, err := parseJobID(w.graph, s)
			if err != nil {
				return err
			}
			cfg.JobID = id
			return nil
		})
}

func parseJobID(g *jobgraph.Graph, s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil {
		return 0, fmt.Errorf("not a job id: %q", s)
	}
	if !g.Has(id) {
		return 0, fmt.Errorf("no job #%d", id)
	}
	return id, nil
}
