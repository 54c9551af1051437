package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/jobwork/pkg/model"
)

const (
	// DataDirEnvVar overrides the directory holding the data files.
	DataDirEnvVar = "JW_DATA_DIR"
	// BasenameEnvVar overrides the data file basename (without .jsonl).
	BasenameEnvVar = "JW_DATA_BASENAME"

	DefaultDataDir  = "data"
	DefaultBasename = "defined"
)

// GetDataDir returns the data directory, respecting JW_DATA_DIR.
// Otherwise it is "data" under root (or the working directory if root is empty).
func GetDataDir(root string) (string, error) {
	if envDir := os.Getenv(DataDirEnvVar); envDir != "" {
		return envDir, nil
	}

	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
	}

	return filepath.Join(root, DefaultDataDir), nil
}

// GetBasename returns the data file basename, respecting JW_DATA_BASENAME.
func GetBasename() string {
	if b := os.Getenv(BasenameEnvVar); b != "" {
		return b
	}
	return DefaultBasename
}

// ResolveDataPath returns <dir>/<basename>.jsonl.
func ResolveDataPath(dir, basename string) string {
	return filepath.Join(dir, basename+".jsonl")
}

// FindJSONLPath locates the data file in dir. <basename>.jsonl is preferred;
// otherwise the first non-empty JSONL file is used. Backups and editor
// leftovers are skipped.
func FindJSONLPath(dir, basename string) (string, error) {
	return FindJSONLPathWithWarnings(dir, basename, nil)
}

// FindJSONLPathWithWarnings is like FindJSONLPath but reports skipped
// partial-write files through warnFunc.
func FindJSONLPathWithWarnings(dir, basename string, warnFunc func(msg string)) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory: %w", err)
	}

	var candidates []string
	var partials []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		if strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") ||
			strings.HasPrefix(name, ".") {
			continue
		}
		// Left behind by writers that write-then-rename.
		if strings.Contains(name, ".tmp") || strings.Contains(name, ".partial") {
			partials = append(partials, name)
			continue
		}
		candidates = append(candidates, name)
	}

	if len(partials) > 0 && warnFunc != nil {
		warnFunc(fmt.Sprintf("Partial data files detected: %s. They are ignored.", strings.Join(partials, ", ")))
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no JSONL data file found in %s", dir)
	}

	if basename != "" {
		want := basename + ".jsonl"
		for _, name := range candidates {
			if name == want {
				return filepath.Join(dir, name), nil
			}
		}
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return path, nil
		}
	}

	return filepath.Join(dir, candidates[0]), nil
}

// LoadRecords reads the data file of root, honouring JW_DATA_DIR and
// JW_DATA_BASENAME.
func LoadRecords(root string) ([]model.Record, error) {
	dir, err := GetDataDir(root)
	if err != nil {
		return nil, err
	}

	path, err := FindJSONLPath(dir, GetBasename())
	if err != nil {
		return nil, err
	}

	return LoadRecordsFromFile(path)
}

// DefaultMaxBufferSize is the default buffer size for the scanner (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures the behavior of ParseRecords.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed JSON).
	// If nil, warnings are printed to os.Stderr unless JW_ROBOT=1.
	WarningHandler func(string)

	// BufferSize sets the maximum line size (in bytes) to read at once.
	// Lines longer than this are skipped with a warning.
	// If 0, uses DefaultMaxBufferSize (10MB).
	BufferSize int

	// RecordFilter optionally filters parsed records. Return true to include.
	RecordFilter func(*model.Record) bool
}

// LoadRecordsFromFileWithOptions reads records from a file with custom options.
func LoadRecordsFromFileWithOptions(path string, opts ParseOptions) ([]model.Record, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no job records found at %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer file.Close()

	return ParseRecordsWithOptions(file, opts)
}

// LoadRecordsFromFile reads records directly from a specific JSONL file path.
func LoadRecordsFromFile(path string) ([]model.Record, error) {
	return LoadRecordsFromFileWithOptions(path, ParseOptions{})
}

// ParseRecords parses JSONL content from a reader into records.
func ParseRecords(r io.Reader) ([]model.Record, error) {
	return ParseRecordsWithOptions(r, ParseOptions{})
}

// ParseRecordsWithOptions parses JSONL content with custom options.
// The order of records is the order of lines; it determines job ids.
func ParseRecordsWithOptions(r io.Reader, opts ParseOptions) ([]model.Record, error) {
	var records []model.Record
	if f, ok := r.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			// Job records are small; assume ~512 bytes per line.
			const avgRecordBytes = 512
			const minCap = 64
			const maxCap = 200_000

			est := int(info.Size() / avgRecordBytes)
			if est < minCap && info.Size() > 0 {
				est = minCap
			}
			if est > maxCap {
				est = maxCap
			}
			if est > 0 {
				records = make([]model.Record, 0, est)
			}
		}
	}

	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}

	reader := bufio.NewReaderSize(r, maxCapacity)
	warn := warningHandler(opts.WarningHandler)

	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading data stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err != nil && err != io.EOF {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
				if err == io.EOF {
					break
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' {
			warn(fmt.Sprintf("skipping line %d: not a JSON object", lineNum))
			continue
		}

		rec, err := model.DecodeRecord(line)
		if err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}

		if opts.RecordFilter != nil && !opts.RecordFilter(&rec) {
			continue
		}

		records = append(records, rec)
	}

	return records, nil
}

func warningHandler(h func(string)) func(string) {
	if h != nil {
		return h
	}
	if os.Getenv("JW_ROBOT") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
