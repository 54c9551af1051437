package jobgraph

import (
	"sort"

	"github.com/vanderheijden86/jobwork/pkg/metrics"
	"github.com/vanderheijden86/jobwork/pkg/model"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Stats summarizes the shape of a job graph.
type Stats struct {
	Jobs   int `json:"jobs"`
	Labels int `json:"labels"`
	// Edges counts distinct producer->consumer pairs, self loops included.
	Edges     int `json:"edges"`
	SelfLoops int `json:"self_loops"`
	// CyclicGroups lists the strongly connected components that contain a
	// cycle (size > 1, or a single job feeding itself). Ids are ascending;
	// groups are ordered by their smallest id.
	CyclicGroups [][]int `json:"cyclic_groups,omitempty"`
	Acyclic      bool    `json:"acyclic"`
	// TopoOrder is a producer-before-consumer order; empty when cyclic.
	TopoOrder []int `json:"topo_order,omitempty"`
}

// Directed returns the job graph as a gonum directed graph with one node per
// job (node id == job id). Self loops are not representable in
// simple.DirectedGraph and are left out.
func (g *Graph) Directed() *simple.DirectedGraph {
	d, _ := g.directed()
	return d
}

func (g *Graph) directed() (*simple.DirectedGraph, map[int]bool) {
	d := simple.NewDirectedGraph()
	for _, j := range g.jobs {
		d.AddNode(simple.Node(int64(j.ID)))
	}
	self := make(map[int]bool)
	for _, p := range g.jobs {
		g.EachDownstream(p, func(c *model.Job) bool {
			if c.ID == p.ID {
				self[p.ID] = true
				return true
			}
			from, to := int64(p.ID), int64(c.ID)
			if !d.HasEdgeFromTo(from, to) {
				d.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
			}
			return true
		})
	}
	return d, self
}

// Analyze computes Stats. It is linear in edges plus the cost of Tarjan's
// SCC and a topological sort.
func Analyze(g *Graph) Stats {
	defer metrics.Timer(metrics.GraphAnalysis)()

	d, self := g.directed()
	st := Stats{
		Jobs:      g.Len(),
		Labels:    len(g.labels),
		Edges:     d.Edges().Len() + len(self),
		SelfLoops: len(self),
	}

	for _, scc := range topo.TarjanSCC(d) {
		if len(scc) == 1 && !self[int(scc[0].ID())] {
			continue
		}
		st.CyclicGroups = append(st.CyclicGroups, nodeIDs(scc))
	}
	sort.Slice(st.CyclicGroups, func(a, b int) bool {
		return st.CyclicGroups[a][0] < st.CyclicGroups[b][0]
	})

	st.Acyclic = len(st.CyclicGroups) == 0
	if st.Acyclic {
		sorted, err := topo.SortStabilized(d, byID)
		if err == nil {
			st.TopoOrder = make([]int, len(sorted))
			for i, n := range sorted {
				st.TopoOrder[i] = int(n.ID())
			}
		}
	}
	return st
}

func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(a, b int) bool { return nodes[a].ID() < nodes[b].ID() })
}

func nodeIDs(nodes []graph.Node) []int {
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = int(n.ID())
	}
	sort.Ints(ids)
	return ids
}
