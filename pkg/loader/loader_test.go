package loader_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/jobwork/pkg/loader"
	"github.com/vanderheijden86/jobwork/pkg/model"
	"github.com/vanderheijden86/jobwork/pkg/testutil"
)

// =============================================================================
// FindJSONLPath Tests
// =============================================================================

func TestFindJSONLPath_NonExistentDirectory(t *testing.T) {
	_, err := loader.FindJSONLPath("/nonexistent/path/to/data", "defined")
	if err == nil {
		t.Fatal("Expected error for non-existent directory")
	}
	if !strings.Contains(err.Error(), "failed to read data directory") {
		t.Errorf("Expected 'failed to read data directory' error, got: %v", err)
	}
}

func TestFindJSONLPath_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := loader.FindJSONLPath(dir, "defined")
	if err == nil {
		t.Fatal("Expected error for empty directory")
	}
	if !strings.Contains(err.Error(), "no JSONL data file found") {
		t.Errorf("Expected 'no JSONL data file found' error, got: %v", err)
	}
}

func TestFindJSONLPath_PrefersBasename(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.jsonl"), []byte(`{"i":1}`), 0644)
	os.WriteFile(filepath.Join(dir, "defined.jsonl"), []byte(`{"i":2}`), 0644)

	path, err := loader.FindJSONLPath(dir, "defined")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "defined.jsonl" {
		t.Errorf("Expected defined.jsonl, got %s", filepath.Base(path))
	}
}

func TestFindJSONLPath_SkipsBackupsAndEmpty(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.backup.jsonl"), []byte(`{"i":1}`), 0644)
	os.WriteFile(filepath.Join(dir, "b.jsonl"), nil, 0644)
	os.WriteFile(filepath.Join(dir, "c.jsonl"), []byte(`{"i":3}`), 0644)

	path, err := loader.FindJSONLPath(dir, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "c.jsonl" {
		t.Errorf("Expected first non-empty candidate c.jsonl, got %s", filepath.Base(path))
	}
}

func TestFindJSONLPath_WarnsAboutPartials(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "defined.jsonl"), []byte(`{"i":1}`), 0644)
	os.WriteFile(filepath.Join(dir, "defined.tmp.jsonl"), []byte(`{"i":1}`), 0644)

	var warnings []string
	_, err := loader.FindJSONLPathWithWarnings(dir, "defined", func(msg string) {
		warnings = append(warnings, msg)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "defined.tmp.jsonl") {
		t.Errorf("warnings = %v", warnings)
	}
}

// =============================================================================
// Environment Tests
// =============================================================================

func TestGetDataDir_EnvOverride(t *testing.T) {
	t.Setenv(loader.DataDirEnvVar, "/custom/data")
	dir, err := loader.GetDataDir("/repo")
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/custom/data" {
		t.Errorf("GetDataDir() = %s", dir)
	}
}

func TestGetDataDir_Default(t *testing.T) {
	t.Setenv(loader.DataDirEnvVar, "")
	dir, err := loader.GetDataDir("/repo")
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/repo", "data") {
		t.Errorf("GetDataDir() = %s", dir)
	}
}

func TestGetBasename(t *testing.T) {
	t.Setenv(loader.BasenameEnvVar, "")
	if got := loader.GetBasename(); got != "defined" {
		t.Errorf("GetBasename() = %s", got)
	}
	t.Setenv(loader.BasenameEnvVar, "nightly")
	if got := loader.GetBasename(); got != "nightly" {
		t.Errorf("GetBasename() = %s", got)
	}
}

func TestLoadRecords_FromEnv(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDataFile(t, dir, "nightly", testutil.New(0).Chain(3).ToRecords())
	t.Setenv(loader.DataDirEnvVar, dir)
	t.Setenv(loader.BasenameEnvVar, "nightly")

	recs, err := loader.LoadRecords("")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Errorf("got %d records, want 3", len(recs))
	}
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParseRecords_OrderAndFields(t *testing.T) {
	input := `{"t":"build","desc":"first","ts":["a"],"ds":[],"i":0,"priority":1,"serial":true,"successed":false,"data":{},"key":null}
{"t":"test","desc":"second","ts":[],"ds":"a","i":1,"priority":2,"serial":false,"successed":true,"data":null,"key":["k"]}
`
	recs, err := loader.ParseRecords(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].Description() != "first" || recs[1].Description() != "second" {
		t.Errorf("order not preserved: %q, %q", recs[0].Description(), recs[1].Description())
	}
	if !recs[0].Serial || !recs[1].Successed || recs[1].Priority != 2 {
		t.Errorf("fields not decoded: %+v / %+v", recs[0], recs[1])
	}
}

func TestParseRecords_SkipsBadLines(t *testing.T) {
	input := "\xEF\xBB\xBF{\"desc\":\"bom\"}\n" +
		"\n" +
		"   \n" +
		"{not json}\n" +
		"[1,2]\n" +
		"{\"desc\":\"ok\"}\n"

	var warnings []string
	recs, err := loader.ParseRecordsWithOptions(strings.NewReader(input), loader.ParseOptions{
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Description() != "bom" || recs[1].Description() != "ok" {
		t.Errorf("records = %+v", recs)
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %v", warnings)
	}
}

func TestParseRecords_LongLineSkipped(t *testing.T) {
	long := `{"desc":"` + strings.Repeat("x", 200) + `"}`
	input := long + "\n" + `{"desc":"short"}` + "\n"

	var warnings []string
	recs, err := loader.ParseRecordsWithOptions(strings.NewReader(input), loader.ParseOptions{
		BufferSize:     64,
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Description() != "short" {
		t.Errorf("records = %+v", recs)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "line too long") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestParseRecords_Filter(t *testing.T) {
	input := testutil.ToJSONL(testutil.New(0).Chain(4).ToRecords())
	recs, err := loader.ParseRecordsWithOptions(strings.NewReader(input), loader.ParseOptions{
		RecordFilter: func(r *model.Record) bool { return r.Priority == 0 },
	})
	if err != nil {
		t.Fatal(err)
	}
	// priorities are i%3: 0,1,2,0
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2", len(recs))
	}
}

func TestLoadRecordsFromFile_Missing(t *testing.T) {
	_, err := loader.LoadRecordsFromFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err == nil || !strings.Contains(err.Error(), "no job records found") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadRecordsFromFile_RoundTripText(t *testing.T) {
	dir := t.TempDir()
	want := testutil.New(0).Diamond(2).ToRecords()
	path := testutil.WriteDataFile(t, dir, "defined", want)

	got, err := loader.LoadRecordsFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Canonical() != want[i].Canonical() {
			t.Errorf("record %d text changed:\n got %s\nwant %s", i, got[i].Canonical(), want[i].Canonical())
		}
	}
}
