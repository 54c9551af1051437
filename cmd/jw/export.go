package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vanderheijden86/jobwork/pkg/export"
	"github.com/vanderheijden86/jobwork/pkg/hooks"
	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
)

func runExport(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jw export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	df := addDataFlags(fs)
	job := fs.Int("job", -1, "Job id to center the columns on")
	output := fs.String("o", "", "Output file (.svg or .png)")
	format := fs.String("format", "", "svg or png (default from the output extension)")
	title := fs.String("title", "", "Diagram title")
	preset := fs.String("preset", "compact", "Spacing preset: compact or roomy")
	hooksDir := fs.String("hooks-dir", ".", "Directory holding .jw/hooks.yaml")
	noHooks := fs.Bool("no-hooks", false, "Skip pre- and post-export hooks")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := df.config()
	if err != nil {
		return exitCode(stderr, "loading config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := loadData(ctx, cfg, stderr)
	if err != nil {
		return exitCode(stderr, "loading jobs", err)
	}
	g := jobgraph.Build(data.records)

	var opts export.SnapshotOptions
	switch {
	case *job < 0 && *output == "" && export.CanPrompt():
		wiz := export.NewWizard(g, export.WizardConfig{Policy: cfg.Layout.Policy, Preset: *preset}, export.WizardConfigPath())
		opts, err = wiz.Run()
		if err != nil {
			return exitCode(stderr, "running export wizard", err)
		}
	case *job < 0:
		return exitCode(stderr, "", usageError{"--job is required when not running interactively"})
	default:
		out := *output
		if out == "" {
			out = fmt.Sprintf("job-%d-columns", *job)
		}
		f, path, err := export.FormatFor(*format, out)
		if err != nil {
			return exitCode(stderr, "", usageError{err.Error()})
		}
		opts = export.SnapshotOptions{
			Path:     path,
			Format:   f,
			Title:    *title,
			Preset:   *preset,
			Graph:    g,
			JobID:    *job,
			Layering: cfg.LayeringOptions(),
		}
	}

	exportFormat, path, err := export.FormatFor(opts.Format, opts.Path)
	if err != nil {
		return exitCode(stderr, "", usageError{err.Error()})
	}
	hk, err := hooks.RunHooks(*hooksDir, hooks.ExportContext{
		ExportPath:   path,
		ExportFormat: exportFormat,
		JobID:        opts.JobID,
		JobCount:     g.Len(),
		Timestamp:    time.Now(),
	}, *noHooks)
	if err != nil {
		return exitCode(stderr, "loading hooks", err)
	}
	if hk != nil {
		defer func() { fmt.Fprint(stderr, hk.Summary()) }()
		if err := hk.RunPreExport(ctx); err != nil {
			return exitCode(stderr, "running hooks", err)
		}
	}

	if err := export.SaveColumnsSnapshot(opts); err != nil {
		return exitCode(stderr, "exporting columns", err)
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)

	if hk != nil {
		if err := hk.RunPostExport(ctx); err != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
		}
	}
	return 0
}
