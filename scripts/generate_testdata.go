//go:build ignore

// generate_testdata.go writes reproducible job graphs for benchmarking.
// Usage: go run scripts/generate_testdata.go
//
// Creates data/benchmark/{small,medium,large}.jsonl. Point jw at one with
//
//	jw --data-dir data/benchmark --basename medium
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/jobwork/pkg/model"
	"github.com/vanderheijden86/jobwork/pkg/testutil"
)

var datasets = []struct {
	name    string
	size    int
	density float64
}{
	{"small", 100, 0.03},
	{"medium", 1000, 0.004},
	{"large", 5000, 0.001},
}

var kinds = []string{"fetch", "build", "test", "package", "deploy"}

var descs = []string{
	"compile the service binaries",
	"run the integration suite",
	"upload artifacts to the bucket",
	"render the release notes",
	"warm the dependency cache",
}

func main() {
	outputDir := filepath.Join("data", "benchmark")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d jobs)...\n", ds.name, ds.size)
		gf := testutil.New(int64(ds.size)).Random(ds.size, ds.density)
		recs := gf.ToRecords()
		decorate(recs)

		jsonl := testutil.ToJSONL(recs)
		path := filepath.Join(outputDir, ds.name+".jsonl")
		if err := os.WriteFile(path, []byte(jsonl), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s (%d bytes, %d edges, cycles: %v)\n", path, len(jsonl), len(gf.Edges), gf.HasCycles)
	}
}

// decorate keeps the fixture marker so selectors stay addressable.
func decorate(recs []model.Record) {
	for i := range recs {
		desc := fmt.Sprintf("%s %s", descs[i%len(descs)], *recs[i].Desc)
		recs[i].Desc = &desc
		recs[i].T = kinds[i%len(kinds)]
		recs[i].Successed = i%4 == 0
		recs[i].Serial = i%7 == 0
	}
}
