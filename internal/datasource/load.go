package datasource

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vanderheijden86/jobwork/pkg/debug"
	"github.com/vanderheijden86/jobwork/pkg/loader"
	"github.com/vanderheijden86/jobwork/pkg/metrics"
	"github.com/vanderheijden86/jobwork/pkg/model"
)

// LoadOptions selects where records come from.
type LoadOptions struct {
	// URL, when set, loads from a remote server and skips discovery.
	URL string
	// Client is used for URL loads (optional).
	Client *http.Client

	DataDir    string
	Basename   string
	SQLitePath string
}

// LoadRecords performs smart multi-source detection and loading.
// It discovers the SQLite and JSONL sources for the basename, validates
// them, selects the freshest valid source, and loads records from it.
//
// Falls back to plain JSONL loading via the loader if smart detection finds
// no valid sources.
func LoadRecords(ctx context.Context, opts LoadOptions) ([]model.Record, DataSource, error) {
	defer metrics.Timer(metrics.DataLoad)()

	if opts.URL != "" {
		src := HTTPSource(opts.URL)
		recs, err := LoadFromSource(ctx, src, opts.Client)
		return recs, src, err
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = loader.GetDataDir("")
		if err != nil {
			return nil, DataSource{}, err
		}
	}
	basename := opts.Basename
	if basename == "" {
		basename = loader.GetBasename()
	}

	recs, src, smartErr := loadSmart(ctx, dataDir, basename, opts.SQLitePath)
	if smartErr == nil {
		return recs, src, nil
	}
	debug.Log("datasource: smart load failed (%v), falling back to JSONL", smartErr)

	path, err := loader.FindJSONLPath(dataDir, basename)
	if err != nil {
		return nil, DataSource{}, err
	}
	recs, err = loader.LoadRecordsFromFile(path)
	return recs, DataSource{Type: SourceTypeJSONL, Path: path, Priority: PriorityJSONL}, err
}

func loadSmart(ctx context.Context, dataDir, basename, sqlitePath string) ([]model.Record, DataSource, error) {
	sources, err := DiscoverSources(ctx, DiscoveryOptions{
		DataDir:                dataDir,
		Basename:               basename,
		SQLitePath:             sqlitePath,
		ValidateAfterDiscovery: true,
		Verbose:                debug.Enabled(),
		Logger:                 func(msg string) { debug.Log("datasource: %s", msg) },
	})
	if err != nil {
		return nil, DataSource{}, err
	}

	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, DataSource{}, err
	}

	recs, err := LoadFromSource(ctx, best, nil)
	return recs, best, err
}

// LoadFromSource loads records from a specific DataSource, dispatching to
// the appropriate reader based on source type.
func LoadFromSource(ctx context.Context, source DataSource, client *http.Client) ([]model.Record, error) {
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadRecords(ctx)

	case SourceTypeJSONL:
		return loader.LoadRecordsFromFile(source.Path)

	case SourceTypeHTTP:
		reader, err := NewHTTPReader(source, client)
		if err != nil {
			return nil, err
		}
		return reader.LoadRecords(ctx)

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
