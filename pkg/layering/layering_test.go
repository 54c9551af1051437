package layering

import (
	"errors"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/model"
	"github.com/vanderheijden86/jobwork/pkg/testutil"
)

func TestColumns_ThreeJobScenario(t *testing.T) {
	g := jobgraph.Build([]model.Record{
		testutil.Job("J0", []string{"a"}, nil),
		testutil.Job("J1", []string{"b"}, []string{"a"}),
		testutil.Job("J2", nil, []string{"b"}),
	})

	l, err := Compute(g, 1, Options{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := [][]int{{0}, {1}, {2}}
	if got := testutil.ColumnIDs(l.Columns); !reflect.DeepEqual(got, want) {
		t.Errorf("columns = %v, want %v", got, want)
	}
	if l.Center != 1 {
		t.Errorf("Center = %d, want 1", l.Center)
	}
}

func TestColumns_Isolated(t *testing.T) {
	g := jobgraph.Build([]model.Record{testutil.Job("alone", nil, nil)})
	cols, err := Columns(g, 0, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ColumnIDs(cols); !reflect.DeepEqual(got, [][]int{{0}}) {
		t.Errorf("columns = %v", got)
	}
}

func TestColumns_UnknownJob(t *testing.T) {
	g := jobgraph.Build(testutil.New(0).Chain(2).ToRecords())
	for _, id := range []int{-1, 2, 100} {
		if _, err := Columns(g, id, Options{}); !errors.Is(err, ErrUnknownJob) {
			t.Errorf("Columns(%d) err = %v, want ErrUnknownJob", id, err)
		}
	}
}

func TestColumns_Diamond(t *testing.T) {
	g := jobgraph.Build(testutil.New(0).Diamond(3).ToRecords())

	cols, _ := Columns(g, 0, Options{})
	if got := testutil.ColumnIDs(cols); !reflect.DeepEqual(got, [][]int{{0}, {1, 2, 3}, {4}}) {
		t.Errorf("first-visit columns = %v", got)
	}

	cols, _ = Columns(g, 0, Options{Policy: PolicyShortest})
	if got := testutil.ColumnIDs(cols); !reflect.DeepEqual(got, [][]int{{0}, {1, 2, 3}, {4}}) {
		t.Errorf("shortest columns = %v", got)
	}

	cols, _ = Columns(g, 4, Options{Policy: PolicyShortest})
	if got := testutil.ColumnIDs(cols); !reflect.DeepEqual(got, [][]int{{0}, {1, 2, 3}, {4}}) {
		t.Errorf("shortest columns from sink = %v", got)
	}
}

// 0 reaches 3 directly and through 1 and 2; the long path is explored first.
func TestColumns_FirstVisitVersusShortest(t *testing.T) {
	g := jobgraph.Build(testutil.FromEdges(4, [][2]int{{0, 1}, {1, 2}, {2, 3}, {0, 3}}))

	cols, _ := Columns(g, 0, Options{Policy: PolicyFirstVisit})
	if got := testutil.ColumnIDs(cols); !reflect.DeepEqual(got, [][]int{{0}, {1}, {2}, {3}}) {
		t.Errorf("first-visit = %v", got)
	}

	cols, _ = Columns(g, 0, Options{Policy: PolicyShortest})
	if got := testutil.ColumnIDs(cols); !reflect.DeepEqual(got, [][]int{{0}, {1, 3}, {2}}) {
		t.Errorf("shortest = %v", got)
	}
}

func TestColumns_CycleTerminates(t *testing.T) {
	g := jobgraph.Build(testutil.New(0).Cycle(3).ToRecords())

	l, err := Compute(g, 0, Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Each direction has its own visited set, so the cycle shows on both sides.
	want := [][]int{{1}, {2}, {0}, {1}, {2}}
	if got := testutil.ColumnIDs(l.Columns); !reflect.DeepEqual(got, want) {
		t.Errorf("columns = %v, want %v", got, want)
	}
	if l.Center != 2 {
		t.Errorf("Center = %d", l.Center)
	}
}

func TestColumns_SelfLoop(t *testing.T) {
	g := jobgraph.Build([]model.Record{testutil.Job("loop", []string{"x"}, []string{"x"})})
	cols, err := Columns(g, 0, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ColumnIDs(cols); !reflect.DeepEqual(got, [][]int{{0}}) {
		t.Errorf("columns = %v", got)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyFirstVisit, false},
		{"first-visit", PolicyFirstVisit, false},
		{"Shortest", PolicyShortest, false},
		{"bfs", PolicyShortest, false},
		{"widest", PolicyFirstVisit, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestProperty_RunsVisitEachJobOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "jobs")
		density := rapid.Float64Range(0, 0.5).Draw(t, "density")
		seed := rapid.Int64Range(1, 1<<20).Draw(t, "seed")
		g := jobgraph.Build(testutil.New(seed).Random(n, density).ToRecords())
		start, _ := g.Job(rapid.IntRange(0, n-1).Draw(t, "start"))

		for _, dir := range []Direction{Upstream, Downstream} {
			dfs := Run(g, start, dir, Options{Policy: PolicyFirstVisit})
			bfs := Run(g, start, dir, Options{Policy: PolicyShortest})

			depthDFS := depths(t, dfs)
			depthBFS := depths(t, bfs)
			if len(depthDFS) != len(depthBFS) {
				t.Fatalf("dir %d: policies reached %d and %d jobs", dir, len(depthDFS), len(depthBFS))
			}
			for id, d := range depthBFS {
				if depthDFS[id] < d {
					t.Fatalf("dir %d: job %d at depth %d, shorter than bfs depth %d", dir, id, depthDFS[id], d)
				}
			}
			if len(dfs[0]) != 1 || dfs[0][0] != start {
				t.Fatalf("column 0 must hold only the start job")
			}
		}
	})
}

func depths(t *rapid.T, cols [][]*model.Job) map[int]int {
	out := make(map[int]int)
	for d, col := range cols {
		if len(col) == 0 {
			t.Fatalf("empty column at depth %d", d)
		}
		for _, j := range col {
			if _, dup := out[j.ID]; dup {
				t.Fatalf("job %d placed twice", j.ID)
			}
			out[j.ID] = d
		}
	}
	return out
}
