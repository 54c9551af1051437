package testutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/vanderheijden86/jobwork/pkg/model"
)

// IDs returns the ids of jobs in order.
func IDs(jobs []*model.Job) []int {
	ids := make([]int, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}

// ColumnIDs returns the ids of every column in order.
func ColumnIDs(cols [][]*model.Job) [][]int {
	out := make([][]int, len(cols))
	for i, c := range cols {
		out[i] = IDs(c)
	}
	return out
}

// AssertIDs verifies the exact ids, in order.
func AssertIDs(t *testing.T, jobs []*model.Job, want ...int) {
	t.Helper()
	got := IDs(jobs)
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

// AssertIDSet verifies the ids regardless of order.
func AssertIDSet(t *testing.T, jobs []*model.Job, want ...int) {
	t.Helper()
	got := make(map[int]int, len(jobs))
	for _, j := range jobs {
		got[j.ID]++
	}
	exp := make(map[int]int, len(want))
	for _, id := range want {
		exp[id]++
	}
	if !reflect.DeepEqual(got, exp) {
		t.Errorf("id set = %v, want %v", IDs(jobs), want)
	}
}

// AssertNoDuplicateIDs verifies that no job appears twice.
func AssertNoDuplicateIDs(t *testing.T, jobs []*model.Job) {
	t.Helper()
	seen := make(map[int]bool, len(jobs))
	for _, j := range jobs {
		if seen[j.ID] {
			t.Errorf("duplicate job id: %d", j.ID)
		}
		seen[j.ID] = true
	}
}

// WriteDataFile writes records as <dir>/<basename>.jsonl and returns the path.
func WriteDataFile(t *testing.T, dir, basename string, recs []model.Record) string {
	t.Helper()
	path := filepath.Join(dir, basename+".jsonl")
	if err := os.WriteFile(path, []byte(ToJSONL(recs)), 0o644); err != nil {
		t.Fatalf("write data file: %v", err)
	}
	return path
}
