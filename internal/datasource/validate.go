package datasource

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/jobwork/pkg/loader"
)

// ErrNoValidSource is returned by SelectBestSource when nothing usable was found.
var ErrNoValidSource = errors.New("no valid data source")

// maxParallelValidations bounds concurrent validations so a directory full
// of candidates does not open every file at once.
const maxParallelValidations = 4

// ValidateSource opens the source and counts its records. It sets Valid,
// ValidationError and RecordCount and returns the validation error, if any.
// A source with zero records is valid only if it is empty.
func ValidateSource(ctx context.Context, s *DataSource) error {
	err := validate(ctx, s)
	s.Valid = err == nil
	s.ValidationError = ""
	if err != nil {
		s.ValidationError = err.Error()
	}
	return err
}

func validate(ctx context.Context, s *DataSource) error {
	switch s.Type {
	case SourceTypeSQLite:
		r, err := NewSQLiteReader(*s)
		if err != nil {
			return err
		}
		defer r.Close()
		n, err := r.CountRecords(ctx)
		if err != nil {
			return fmt.Errorf("jobs table unreadable: %w", err)
		}
		s.RecordCount = n
		return nil

	case SourceTypeJSONL:
		malformed := 0
		recs, err := loader.LoadRecordsFromFileWithOptions(s.Path, loader.ParseOptions{
			WarningHandler: func(string) { malformed++ },
		})
		if err != nil {
			return err
		}
		s.RecordCount = len(recs)
		if len(recs) == 0 && malformed > 0 {
			return fmt.Errorf("no parseable records (%d malformed lines)", malformed)
		}
		return nil

	case SourceTypeHTTP:
		r, err := NewHTTPReader(*s, nil)
		if err != nil {
			return err
		}
		recs, err := r.LoadRecords(ctx)
		if err != nil {
			return err
		}
		s.RecordCount = len(recs)
		return nil

	default:
		return fmt.Errorf("unknown source type: %s", s.Type)
	}
}

// ValidateSources validates every source concurrently, in place. Individual
// validation failures are recorded on the sources; only context
// cancellation is returned.
func ValidateSources(ctx context.Context, sources []DataSource) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelValidations)
	for i := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_ = ValidateSource(ctx, &sources[i])
			return nil
		})
	}
	return g.Wait()
}

// SelectBestSource returns the freshest valid source; equal times prefer
// the higher priority.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	candidates := make([]DataSource, 0, len(sources))
	for _, s := range sources {
		if s.Valid {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return DataSource{}, ErrNoValidSource
	}
	SortSources(candidates)
	return candidates[0], nil
}
