package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/vanderheijden86/jobwork/internal/datasource"
	"github.com/vanderheijden86/jobwork/pkg/config"
	"github.com/vanderheijden86/jobwork/pkg/model"
	"github.com/vanderheijden86/jobwork/pkg/workspace"
)

// usageError marks flag misuse; it exits with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// dataFlags are shared by every subcommand that reads job records.
type dataFlags struct {
	configPath string
	dir        string
	basename   string
	url        string
	sqlite     string
	sources    stringList
	closure    string
	layout     string
}

func addDataFlags(fs *flag.FlagSet) *dataFlags {
	df := &dataFlags{}
	fs.StringVar(&df.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/jw/config.yaml)")
	fs.StringVar(&df.dir, "data-dir", "", "Directory holding <basename>.jsonl (env JW_DATA_DIR)")
	fs.StringVar(&df.basename, "basename", "", "Data file name without .jsonl (env JW_DATA_BASENAME)")
	fs.StringVar(&df.url, "url", "", "Load records from a running jw server instead of files")
	fs.StringVar(&df.sqlite, "sqlite", "", "Also consider this SQLite database as a source")
	fs.Var(&df.sources, "source", "Load this JSONL file; repeat to concatenate several")
	fs.StringVar(&df.closure, "closure", "", "Closure mode: connected or lineage")
	fs.StringVar(&df.layout, "layout", "", "Layering policy: first-visit or shortest")
	return df
}

// config resolves the configuration: file, then environment, then flags.
func (df *dataFlags) config() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if df.configPath != "" {
		cfg, err = config.LoadFrom(df.configPath)
		cfg.ApplyEnv()
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}

	if df.dir != "" {
		cfg.Data.Dir = df.dir
	}
	if df.basename != "" {
		cfg.Data.Basename = df.basename
	}
	if df.url != "" {
		cfg.Data.URL = df.url
	}
	if df.sqlite != "" {
		cfg.Data.SQLite = df.sqlite
	}
	if len(df.sources) > 0 {
		cfg.Data.Sources = workspace.SourcesFromPaths(df.sources)
	}
	if df.closure != "" {
		cfg.Filter.Closure = df.closure
	}
	if df.layout != "" {
		cfg.Layout.Policy = df.layout
	}
	if err := cfg.Validate(); err != nil {
		return cfg, usageError{err.Error()}
	}
	return cfg, nil
}

// dataSet is what was loaded and how to load it again.
type dataSet struct {
	records []model.Record
	// source describes where the records came from.
	source string
	// watchPath is the local JSONL file to watch, if any.
	watchPath string
	load      func(ctx context.Context) ([]model.Record, error)
}

// loadData reads the records cfg points at: several JSONL files when
// sources are configured, otherwise the best of the remote endpoint, the
// SQLite database and the data file.
func loadData(ctx context.Context, cfg config.Config, stderr io.Writer) (dataSet, error) {
	if len(cfg.Data.Sources) > 0 {
		agg := workspace.NewAggregateLoader(cfg.Data.Sources, "")
		if os.Getenv("JW_ROBOT") != "1" {
			agg.SetLogger(log.New(stderr, "jw: ", 0))
		}
		load := func(ctx context.Context) ([]model.Record, error) {
			recs, _, err := agg.LoadAll(ctx)
			return recs, err
		}
		recs, results, err := agg.LoadAll(ctx)
		if err != nil {
			return dataSet{}, err
		}
		summary := workspace.Summarize(results)
		ds := dataSet{
			records: recs,
			source:  fmt.Sprintf("%d/%d sources", summary.SuccessfulSources, summary.TotalSources),
			load:    load,
		}
		if len(cfg.Data.Sources) == 1 {
			ds.watchPath = cfg.Data.Sources[0].Path
		}
		return ds, nil
	}

	opts := datasource.LoadOptions{
		URL:        cfg.Data.URL,
		DataDir:    cfg.Data.Dir,
		Basename:   cfg.Data.Basename,
		SQLitePath: cfg.Data.SQLite,
	}
	recs, src, err := datasource.LoadRecords(ctx, opts)
	if err != nil {
		return dataSet{}, err
	}
	ds := dataSet{
		records: recs,
		source:  src.Path,
		load: func(ctx context.Context) ([]model.Record, error) {
			recs, _, err := datasource.LoadRecords(ctx, opts)
			return recs, err
		},
	}
	if src.Type == datasource.SourceTypeJSONL {
		ds.watchPath = src.Path
	}
	return ds, nil
}
