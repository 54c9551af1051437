// Package datasource discovers, validates and selects where job records
// are loaded from: a SQLite database, the JSONL data file, or the HTTP
// endpoint of a running jw server.
package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/jobwork/pkg/loader"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite database with a jobs table
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSONL is a JSONL data file, one record per line
	SourceTypeJSONL SourceType = "jsonl"
	// SourceTypeHTTP is a remote /api/v1/get endpoint
	SourceTypeHTTP SourceType = "http"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityJSONL  = 50
	PriorityHTTP   = 30
)

// DataSource represents a potential source of job records
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the file path, or the base URL for HTTP sources
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal (higher = preferred)
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source (zero for HTTP)
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// RecordCount is the number of records in the source (set during validation)
	RecordCount int `json:"record_count"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, records=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.RecordCount, status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// DataDir is the data directory (optional, resolved via loader.GetDataDir if empty)
	DataDir string
	// Basename is the data file basename (optional, loader.GetBasename if empty)
	Basename string
	// SQLitePath is an extra database to consider besides <basename>.db
	SQLitePath string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Verbose enables detailed logging during discovery
	Verbose bool
	// Logger receives log messages when Verbose is true
	Logger func(msg string)
}

// DiscoverSources finds the candidate sources for the data basename,
// freshest first.
func DiscoverSources(ctx context.Context, opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = loader.GetDataDir("")
		if err != nil {
			return nil, err
		}
	}
	basename := opts.Basename
	if basename == "" {
		basename = loader.GetBasename()
	}

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovering sources in: %s (basename %s)", dataDir, basename))
	}

	var sources []DataSource

	sqlitePaths := []string{
		filepath.Join(dataDir, basename+".db"),
		filepath.Join(dataDir, basename+".sqlite"),
	}
	if opts.SQLitePath != "" {
		sqlitePaths = append(sqlitePaths, opts.SQLitePath)
	}
	sources = append(sources, statSources(sqlitePaths, SourceTypeSQLite, PrioritySQLite, opts)...)

	jsonlSources, err := discoverJSONLSources(dataDir, basename, opts)
	if err != nil && opts.Verbose {
		opts.Logger(fmt.Sprintf("JSONL discovery warning: %v", err))
	}
	sources = append(sources, jsonlSources...)

	if opts.ValidateAfterDiscovery {
		if err := ValidateSources(ctx, sources); err != nil {
			return nil, err
		}
		if opts.Verbose {
			for _, s := range sources {
				if !s.Valid {
					opts.Logger(fmt.Sprintf("Validation failed for %s: %s", s.Path, s.ValidationError))
				}
			}
		}
	}

	if opts.ValidateAfterDiscovery && !opts.IncludeInvalid {
		var validSources []DataSource
		for _, s := range sources {
			if s.Valid {
				validSources = append(validSources, s)
			}
		}
		sources = validSources
	}

	SortSources(sources)

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	}

	return sources, nil
}

// SortSources orders sources freshest first; equal times prefer higher priority.
func SortSources(sources []DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
}

func statSources(paths []string, typ SourceType, priority int, opts DiscoveryOptions) []DataSource {
	var sources []DataSource
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		sources = append(sources, DataSource{
			Type:     typ,
			Path:     p,
			Priority: priority,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		if opts.Verbose {
			opts.Logger(fmt.Sprintf("Found %s: %s (mod=%s)", typ, p, info.ModTime().Format(time.RFC3339)))
		}
	}
	return sources
}

// discoverJSONLSources finds <basename>.jsonl and <basename>.*.jsonl in dir.
func discoverJSONLSources(dataDir, basename string, opts DiscoveryOptions) ([]DataSource, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		if name != basename+".jsonl" && !strings.HasPrefix(name, basename+".") {
			continue
		}
		if strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") ||
			strings.Contains(name, ".tmp") ||
			strings.Contains(name, ".partial") {
			continue
		}
		paths = append(paths, filepath.Join(dataDir, name))
	}
	return statSources(paths, SourceTypeJSONL, PriorityJSONL, opts), nil
}

// HTTPSource describes a remote endpoint. It is never discovered, only
// configured.
func HTTPSource(baseURL string) DataSource {
	return DataSource{Type: SourceTypeHTTP, Path: strings.TrimRight(baseURL, "/"), Priority: PriorityHTTP}
}
