package workspace

import (
	"context"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/jobwork/pkg/loader"
	"github.com/vanderheijden86/jobwork/pkg/metrics"
	"github.com/vanderheijden86/jobwork/pkg/model"
)

// LoadResult contains the result of loading a single source
type LoadResult struct {
	Name    string
	Path    string
	Records []model.Record
	// Error is set if loading failed
	Error error
}

// AggregateLoader loads records from multiple data files
type AggregateLoader struct {
	sources []SourceConfig
	root    string
	logger  *log.Logger
}

// NewAggregateLoader creates a loader for sources, resolving relative paths
// against root.
func NewAggregateLoader(sources []SourceConfig, root string) *AggregateLoader {
	return &AggregateLoader{
		sources: sources,
		root:    root,
		// Silence by default. Callers can opt-in via SetLogger.
		// This avoids polluting stderr (e.g., breaking robot JSON consumers that
		// capture combined stdout/stderr).
		logger: log.New(io.Discard, "", 0),
	}
}

// SetLogger sets a custom logger for error reporting
func (l *AggregateLoader) SetLogger(logger *log.Logger) {
	l.logger = logger
}

// LoadAll loads every enabled source concurrently and concatenates the
// records in configuration order, so job ids do not depend on which file
// finished first. Failed sources are logged and skipped.
func (l *AggregateLoader) LoadAll(ctx context.Context) ([]model.Record, []LoadResult, error) {
	defer metrics.Timer(metrics.DataLoad)()

	enabled := l.getEnabledSources()
	if len(enabled) == 0 {
		return nil, nil, fmt.Errorf("no enabled data sources")
	}

	results, err := l.loadParallel(ctx, enabled)
	if err != nil {
		return nil, results, fmt.Errorf("fatal error during parallel loading: %w", err)
	}

	var all []model.Record
	for _, result := range results {
		if result.Error != nil {
			l.logSourceError(result.Name, result.Error)
			continue
		}
		all = append(all, result.Records...)
	}

	return all, results, nil
}

func (l *AggregateLoader) getEnabledSources() []SourceConfig {
	var enabled []SourceConfig
	for _, s := range l.sources {
		if s.IsEnabled() {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

func (l *AggregateLoader) loadParallel(ctx context.Context, sources []SourceConfig) ([]LoadResult, error) {
	results := make([]LoadResult, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	// Limit concurrency to avoid resource exhaustion (file descriptors, memory)
	g.SetLimit(16)

	for i, src := range sources {
		g.Go(func() error {
			path := src.ResolvePath(l.root)
			select {
			case <-ctx.Done():
				results[i] = LoadResult{Name: src.GetName(), Path: path, Error: ctx.Err()}
				return nil
			default:
			}

			recs, err := loader.LoadRecordsFromFileWithOptions(path, loader.ParseOptions{
				WarningHandler: func(msg string) { l.logger.Printf("%s: %s", src.GetName(), msg) },
			})
			if err != nil {
				err = fmt.Errorf("failed to load records from %s: %w", src.GetName(), err)
			}
			results[i] = LoadResult{Name: src.GetName(), Path: path, Records: recs, Error: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	l.logger.Printf("Finished parallel loading of %d sources", len(sources))
	return results, nil
}

func (l *AggregateLoader) logSourceError(name string, err error) {
	l.logger.Printf("WARNING: Failed to load source %q: %v", name, err)
}

// LoadSummary summarizes load results
type LoadSummary struct {
	TotalSources      int
	SuccessfulSources int
	FailedSources     int
	TotalRecords      int
	FailedNames       []string
}

// Summarize returns a summary of the load results
func Summarize(results []LoadResult) LoadSummary {
	summary := LoadSummary{TotalSources: len(results)}

	for _, result := range results {
		if result.Error != nil {
			summary.FailedSources++
			summary.FailedNames = append(summary.FailedNames, result.Name)
		} else {
			summary.SuccessfulSources++
			summary.TotalRecords += len(result.Records)
		}
	}

	return summary
}
