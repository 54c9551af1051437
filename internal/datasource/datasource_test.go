package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/jobwork/pkg/model"
	"github.com/vanderheijden86/jobwork/pkg/testutil"
)

func writeSQLite(t *testing.T, path string, recs []model.Record) {
	t.Helper()
	if err := WriteSQLite(context.Background(), path, recs); err != nil {
		t.Fatalf("WriteSQLite: %v", err)
	}
}

func setModTime(t *testing.T, path string, ts time.Time) {
	t.Helper()
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "defined.db")
	want := testutil.New(0).Diamond(2).ToRecords()
	writeSQLite(t, path, want)

	r, err := NewSQLiteReader(DataSource{Type: SourceTypeSQLite, Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	n, err := r.CountRecords(ctx)
	if err != nil || n != len(want) {
		t.Fatalf("CountRecords() = %d, %v", n, err)
	}
	got, err := r.LoadRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i].Canonical() != want[i].Canonical() {
			t.Errorf("record %d differs", i)
		}
	}

	filtered, err := r.LoadRecordsFiltered(ctx, func(rec *model.Record) bool { return rec.I == 0 })
	if err != nil || len(filtered) != 1 {
		t.Errorf("filtered = %d, %v", len(filtered), err)
	}
}

func TestNewSQLiteReader_Errors(t *testing.T) {
	if _, err := NewSQLiteReader(DataSource{Type: SourceTypeJSONL, Path: "x"}); err == nil {
		t.Error("expected error for non-SQLite source")
	}
	if _, err := NewSQLiteReader(DataSource{Type: SourceTypeSQLite, Path: filepath.Join(t.TempDir(), "none.db")}); err == nil {
		t.Error("expected error for missing database")
	}
}

func TestDiscoverSources_FindsBasenameFiles(t *testing.T) {
	dir := t.TempDir()
	recs := testutil.New(0).Chain(3).ToRecords()
	testutil.WriteDataFile(t, dir, "defined", recs)
	testutil.WriteDataFile(t, dir, "defined.nightly", recs)
	testutil.WriteDataFile(t, dir, "other", recs)
	testutil.WriteDataFile(t, dir, "defined.backup", recs)
	writeSQLite(t, filepath.Join(dir, "defined.db"), recs)

	sources, err := DiscoverSources(context.Background(), DiscoveryOptions{DataDir: dir, Basename: "defined"})
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, s := range sources {
		names = append(names, filepath.Base(s.Path))
	}
	if len(sources) != 3 {
		t.Fatalf("sources = %v", names)
	}
	for _, n := range names {
		if n == "other.jsonl" || strings.Contains(n, "backup") {
			t.Errorf("unexpected source %s", n)
		}
	}
}

func TestDiscoverSources_ValidationFiltersInvalid(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "defined.jsonl"), []byte("not json\nstill not\n"), 0644)
	testutil.WriteDataFile(t, dir, "defined.good", testutil.New(0).Chain(2).ToRecords())

	sources, err := DiscoverSources(context.Background(), DiscoveryOptions{
		DataDir:                dir,
		Basename:               "defined",
		ValidateAfterDiscovery: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || filepath.Base(sources[0].Path) != "defined.good.jsonl" {
		t.Fatalf("sources = %v", sources)
	}
	if !sources[0].Valid || sources[0].RecordCount != 2 {
		t.Errorf("source = %s", sources[0])
	}

	all, _ := DiscoverSources(context.Background(), DiscoveryOptions{
		DataDir:                dir,
		Basename:               "defined",
		ValidateAfterDiscovery: true,
		IncludeInvalid:         true,
	})
	if len(all) != 2 {
		t.Errorf("IncludeInvalid returned %d sources", len(all))
	}
}

func TestSelectBestSource(t *testing.T) {
	now := time.Now()
	sources := []DataSource{
		{Type: SourceTypeJSONL, Path: "old.jsonl", Priority: PriorityJSONL, ModTime: now.Add(-time.Hour), Valid: true},
		{Type: SourceTypeJSONL, Path: "tie.jsonl", Priority: PriorityJSONL, ModTime: now, Valid: true},
		{Type: SourceTypeSQLite, Path: "tie.db", Priority: PrioritySQLite, ModTime: now, Valid: true},
		{Type: SourceTypeSQLite, Path: "new.db", Priority: PrioritySQLite, ModTime: now.Add(time.Hour), Valid: false},
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		t.Fatal(err)
	}
	if best.Path != "tie.db" {
		t.Errorf("best = %s, want tie.db", best.Path)
	}

	if _, err := SelectBestSource(sources[3:]); !errors.Is(err, ErrNoValidSource) {
		t.Errorf("err = %v, want ErrNoValidSource", err)
	}
}

func TestLoadRecords_PrefersFresherSource(t *testing.T) {
	dir := t.TempDir()
	jsonlRecs := testutil.New(0).Chain(2).ToRecords()
	dbRecs := testutil.New(0).Chain(4).ToRecords()

	jsonl := testutil.WriteDataFile(t, dir, "defined", jsonlRecs)
	db := filepath.Join(dir, "defined.db")
	writeSQLite(t, db, dbRecs)

	now := time.Now()
	setModTime(t, jsonl, now)
	setModTime(t, db, now.Add(-time.Hour))

	recs, src, err := LoadRecords(context.Background(), LoadOptions{DataDir: dir, Basename: "defined"})
	if err != nil {
		t.Fatal(err)
	}
	if src.Type != SourceTypeJSONL || len(recs) != 2 {
		t.Errorf("loaded %d records from %s", len(recs), src)
	}

	setModTime(t, db, now.Add(time.Hour))
	recs, src, err = LoadRecords(context.Background(), LoadOptions{DataDir: dir, Basename: "defined"})
	if err != nil {
		t.Fatal(err)
	}
	if src.Type != SourceTypeSQLite || len(recs) != 4 {
		t.Errorf("loaded %d records from %s", len(recs), src)
	}
}

func TestLoadRecords_HTTP(t *testing.T) {
	recs := testutil.New(0).Chain(3).ToRecords()
	body := "[" + strings.Join(strings.Split(strings.TrimSpace(testutil.ToJSONL(recs)), "\n"), ",") + "]"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != APIPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	got, src, err := LoadRecords(context.Background(), LoadOptions{URL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	if src.Type != SourceTypeHTTP || len(got) != 3 {
		t.Errorf("loaded %d records from %s", len(got), src)
	}
	if got[2].Description() != testutil.Marker(2) {
		t.Errorf("order not preserved: %q", got[2].Description())
	}
}

func TestLoadRecords_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := LoadRecords(context.Background(), LoadOptions{URL: srv.URL})
	if err == nil || !strings.Contains(err.Error(), "[500]") {
		t.Errorf("err = %v", err)
	}
}

func TestDetectInconsistencies(t *testing.T) {
	recs := testutil.New(0).Chain(3).ToRecords()

	same := DetectInconsistencies(recs, recs, "a", "b", DefaultDiffOptions())
	if same.HasInconsistencies() {
		t.Errorf("identical lists reported: %s", same.Summary())
	}

	reordered := []model.Record{recs[1], recs[0], recs[2]}
	d := DetectInconsistencies(recs, reordered, "a", "b", DefaultDiffOptions())
	if !d.HasInconsistencies() || d.FirstOrderMismatch != 0 || len(d.MissingInA)+len(d.MissingInB) != 0 {
		t.Errorf("reorder diff = %+v", d)
	}
	if !strings.Contains(d.Summary(), "different order") {
		t.Errorf("summary = %s", d.Summary())
	}

	dup := append(append([]model.Record{}, recs...), recs[0])
	d = DetectInconsistencies(dup, recs, "a", "b", DefaultDiffOptions())
	if len(d.MissingInB) != 1 || len(d.MissingInA) != 0 || d.FirstOrderMismatch != 3 {
		t.Errorf("duplicate diff = %+v", d)
	}
}

func TestGenerateInconsistencyReport(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteDataFile(t, dir, "defined", testutil.New(0).Chain(2).ToRecords())
	b := filepath.Join(dir, "defined.db")
	writeSQLite(t, b, testutil.New(0).Chain(3).ToRecords())

	sources := []DataSource{
		{Type: SourceTypeJSONL, Path: a, Valid: true},
		{Type: SourceTypeSQLite, Path: b, Valid: true},
	}
	report, err := GenerateInconsistencyReport(context.Background(), sources, DefaultDiffOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Diffs) != 1 || report.TotalInconsistencies == 0 {
		t.Errorf("report = %+v", report)
	}
}
