// Command jw browses a label graph of job records.
//
//	jw                          interactive browser
//	jw --robot-visible build x  visible jobs for the selector chain, as JSON
//	jw serve                    serve the data file at /api/v1/get
//	jw export --job 3 -o a.svg  render the columns around a job
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/vanderheijden86/jobwork/internal/datasource"
	"github.com/vanderheijden86/jobwork/pkg/debug"
	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/robot"
	"github.com/vanderheijden86/jobwork/pkg/ui"
	"github.com/vanderheijden86/jobwork/pkg/version"
	"github.com/vanderheijden86/jobwork/pkg/watcher"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			return runServe(args[1:], stdout, stderr)
		case "export":
			return runExport(args[1:], stdout, stderr)
		}
	}
	return runBrowse(args, stdout, stderr)
}

// exitCode reports err and maps it to a process status.
func exitCode(stderr io.Writer, what string, err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	fmt.Fprintf(stderr, "Error %s: %v\n", what, err)
	return 1
}

func runBrowse(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jw", flag.ContinueOnError)
	fs.SetOutput(stderr)
	df := addDataFlags(fs)
	versionFlag := fs.Bool("version", false, "Show version")
	cpuProfile := fs.String("cpu-profile", "", "Write CPU profile to file")
	robotVisible := fs.Bool("robot-visible", false, "Print the jobs visible through the selectors given as arguments, as JSON")
	robotColumns := fs.Int("robot-columns", -1, "Print the layering columns around this job id, as JSON")
	robotStats := fs.Bool("robot-stats", false, "Print graph statistics as JSON")
	robotMetrics := fs.Bool("robot-metrics", false, "Print timing metrics as JSON")
	robotSources := fs.Bool("robot-sources", false, "Print discovered data sources and their inconsistencies as JSON")
	sqliteExport := fs.String("sqlite-export", "", "Write the loaded records to a SQLite database and exit")
	noLiveReload := fs.Bool("no-live-reload", false, "Do not watch the data file")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: jw [options] [selector ...]")
		fmt.Fprintln(stderr, "       jw serve [options]")
		fmt.Fprintln(stderr, "       jw export [options]")
		fmt.Fprintln(stderr, "\nBrowse a label graph of job records.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	selectors := fs.Args()

	if *versionFlag {
		fmt.Fprintf(stdout, "jw %s\n", version.Version)
		return 0
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	cfg, err := df.config()
	if err != nil {
		return exitCode(stderr, "loading config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *robotSources {
		return printSources(ctx, cfg.Data.Dir, cfg.Data.Basename, cfg.Data.SQLite, stdout, stderr)
	}

	data, err := loadData(ctx, cfg, stderr)
	if err != nil {
		return exitCode(stderr, "loading jobs", err)
	}
	debug.Log("loaded %d records from %s", len(data.records), data.source)
	g := jobgraph.Build(data.records)

	if *sqliteExport != "" {
		if err := datasource.WriteSQLite(ctx, *sqliteExport, data.records); err != nil {
			return exitCode(stderr, "exporting SQLite", err)
		}
		fmt.Fprintf(stdout, "Wrote %d records to %s\n", len(data.records), *sqliteExport)
		return 0
	}

	switch {
	case *robotVisible:
		out := robot.Visible(g, selectors, cfg.SelectorOptions())
		out.Source = data.source
		return encode(stdout, stderr, out)
	case *robotColumns >= 0:
		out, err := robot.Columns(g, *robotColumns, cfg.LayeringOptions())
		if err != nil {
			return exitCode(stderr, "laying out columns", err)
		}
		out.Source = data.source
		return encode(stdout, stderr, out)
	case *robotStats:
		out := robot.Stats(g)
		out.Source = data.source
		return encode(stdout, stderr, out)
	case *robotMetrics:
		robot.Visible(g, selectors, cfg.SelectorOptions())
		return encode(stdout, stderr, robot.Metrics())
	}

	if !isTerminal(stdout) {
		out := robot.Visible(g, selectors, cfg.SelectorOptions())
		for _, j := range out.Jobs {
			fmt.Fprintln(stdout, j.Text)
		}
		return 0
	}

	opts := ui.Options{
		Selector:    cfg.SelectorOptions(),
		Layering:    cfg.LayeringOptions(),
		ShowColumns: cfg.ShowColumns(),
		SplitRatio:  cfg.UI.SplitRatio,
		Source:      data.source,
		Load:        data.load,
	}
	if cfg.LiveReload() && !*noLiveReload && data.watchPath != "" {
		w, err := watcher.NewWatcher(data.watchPath)
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Warning: live reload disabled: %v\n", err)
		} else {
			defer w.Stop()
			opts.Watcher = w
		}
	}

	if err := runTUIProgram(ui.NewModel(g, opts)); err != nil {
		return exitCode(stderr, "running jw", err)
	}
	return 0
}

func encode(stdout, stderr io.Writer, v any) int {
	if err := robot.Encode(stdout, v); err != nil {
		return exitCode(stderr, "encoding output", err)
	}
	return 0
}

func printSources(ctx context.Context, dir, basename, sqlitePath string, stdout, stderr io.Writer) int {
	sources, err := datasource.DiscoverSources(ctx, datasource.DiscoveryOptions{
		DataDir:                dir,
		Basename:               basename,
		SQLitePath:             sqlitePath,
		ValidateAfterDiscovery: true,
		IncludeInvalid:         true,
	})
	if err != nil {
		return exitCode(stderr, "discovering sources", err)
	}
	report, err := datasource.GenerateInconsistencyReport(ctx, sources, datasource.DefaultDiffOptions())
	if err != nil {
		return exitCode(stderr, "comparing sources", err)
	}
	return encode(stdout, stderr, report)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM; a second signal or 5s kills.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}
		p.Quit()
		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}
		p.Kill()
	}()

	// Auto-quit for automated tests: JW_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("JW_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()
				select {
				case <-runDone:
					return
				case <-timer.C:
				}
				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
