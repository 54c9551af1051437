package datasource

import (
	"context"
	"fmt"
	"strings"

	"github.com/vanderheijden86/jobwork/pkg/model"
)

// SourceDiff represents differences between two data sources. Records are
// compared by their canonical text; job ids follow record order, so an
// order difference matters even when both sides hold the same records.
type SourceDiff struct {
	SourceA string `json:"source_a"`
	SourceB string `json:"source_b"`
	// MissingInA contains record texts present in B but not in A
	MissingInA []string `json:"missing_in_a,omitempty"`
	// MissingInB contains record texts present in A but not in B
	MissingInB []string `json:"missing_in_b,omitempty"`
	// FirstOrderMismatch is the first position whose records differ, or -1
	FirstOrderMismatch int `json:"first_order_mismatch"`
	CountA             int `json:"count_a"`
	CountB             int `json:"count_b"`
}

// HasInconsistencies returns true if there are any differences between sources
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 || d.FirstOrderMismatch >= 0
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d records each)", d.CountA)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Inconsistencies found between %s and %s:\n", d.SourceA, d.SourceB)
	if d.CountA != d.CountB {
		fmt.Fprintf(&b, "  - Count mismatch: %d vs %d\n", d.CountA, d.CountB)
	}
	writeMissing(&b, d.MissingInA, d.SourceB, d.SourceA)
	writeMissing(&b, d.MissingInB, d.SourceA, d.SourceB)
	if d.FirstOrderMismatch >= 0 && len(d.MissingInA) == 0 && len(d.MissingInB) == 0 {
		fmt.Fprintf(&b, "  - Same records, different order from position %d (job ids differ)\n", d.FirstOrderMismatch)
	}
	return b.String()
}

func writeMissing(b *strings.Builder, texts []string, in, notIn string) {
	if len(texts) == 0 {
		return
	}
	fmt.Fprintf(b, "  - %d records in %s but not %s\n", len(texts), in, notIn)
	if len(texts) <= 5 {
		for _, t := range texts {
			fmt.Fprintf(b, "    - %s\n", truncate(t, 80))
		}
	}
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// MaxDifferences limits the number of texts tracked per side (0 = unlimited)
	MaxDifferences int
}

// DefaultDiffOptions returns sensible default diff options
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{MaxDifferences: 100}
}

// DetectInconsistencies compares two record lists. Duplicates count: a
// record present twice in A and once in B is missing once in B.
func DetectInconsistencies(recsA, recsB []model.Record, sourceA, sourceB string, opts DiffOptions) SourceDiff {
	diff := SourceDiff{
		SourceA:            sourceA,
		SourceB:            sourceB,
		CountA:             len(recsA),
		CountB:             len(recsB),
		FirstOrderMismatch: -1,
	}

	textsA := canonicalTexts(recsA)
	textsB := canonicalTexts(recsB)

	for i := 0; i < len(textsA) || i < len(textsB); i++ {
		if i >= len(textsA) || i >= len(textsB) || textsA[i] != textsB[i] {
			diff.FirstOrderMismatch = i
			break
		}
	}

	remaining := make(map[string]int, len(textsB))
	for _, t := range textsB {
		remaining[t]++
	}
	for _, t := range textsA {
		if remaining[t] > 0 {
			remaining[t]--
			continue
		}
		if opts.MaxDifferences == 0 || len(diff.MissingInB) < opts.MaxDifferences {
			diff.MissingInB = append(diff.MissingInB, t)
		}
	}
	for _, t := range textsB {
		if remaining[t] > 0 {
			remaining[t]--
			if opts.MaxDifferences == 0 || len(diff.MissingInA) < opts.MaxDifferences {
				diff.MissingInA = append(diff.MissingInA, t)
			}
		}
	}

	return diff
}

func canonicalTexts(recs []model.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Canonical()
	}
	return out
}

// CompareSources loads and compares two data sources
func CompareSources(ctx context.Context, sourceA, sourceB DataSource, opts DiffOptions) (*SourceDiff, error) {
	recsA, err := LoadFromSource(ctx, sourceA, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Path, err)
	}

	recsB, err := LoadFromSource(ctx, sourceB, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Path, err)
	}

	diff := DetectInconsistencies(recsA, recsB, sourceA.Path, sourceB.Path, opts)
	return &diff, nil
}

// InconsistencyReport provides a comprehensive report of all source inconsistencies
type InconsistencyReport struct {
	Sources []DataSource `json:"sources"`
	Diffs   []SourceDiff `json:"diffs"`
	// TotalInconsistencies counts missing records on either side plus one
	// per pair whose order differs
	TotalInconsistencies int `json:"total_inconsistencies"`
}

// GenerateInconsistencyReport compares every pair of valid sources.
// Pairs that fail to load are skipped.
func GenerateInconsistencyReport(ctx context.Context, sources []DataSource, opts DiffOptions) (*InconsistencyReport, error) {
	report := &InconsistencyReport{Sources: sources}

	for i := 0; i < len(sources); i++ {
		if !sources[i].Valid {
			continue
		}
		for j := i + 1; j < len(sources); j++ {
			if !sources[j].Valid {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			diff, err := CompareSources(ctx, sources[i], sources[j], opts)
			if err != nil {
				continue
			}
			if diff.HasInconsistencies() {
				report.Diffs = append(report.Diffs, *diff)
				report.TotalInconsistencies += len(diff.MissingInA) + len(diff.MissingInB)
				if diff.FirstOrderMismatch >= 0 {
					report.TotalInconsistencies++
				}
			}
		}
	}

	return report, nil
}
