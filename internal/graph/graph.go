package graph

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/dag"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/node"
)

// Edge carries the output of From into To. When a node has several inbound
// edges their values are paired into a Tuple ordered by Slot, then by edge
// declaration order.
type Edge struct {
	From string
	To   string
	Slot int
}

// Definition is the uncompiled description of a graph. Entries default to
// every node without inbound edges; Results default to every leaf.
type Definition struct {
	Nodes   []*node.Node
	Edges   []Edge
	Entries []string
	Results []string
}

// Graph is a compiled, immutable execution plan.
type Graph struct {
	nodes     []*node.Node
	byID      map[string]*node.Node
	edges     []Edge
	inbound   map[string][]Edge
	outbound  map[string][]Edge
	entries   []string
	results   []string
	isResult  map[string]bool
	order     []string
	topoIndex map[string]int
}

// Compile validates def and builds a Graph. On error nothing is returned.
func Compile(ctx context.Context, def Definition) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Compile: starting.", "nodes", len(def.Nodes), "edges", len(def.Edges))

	if len(def.Nodes) == 0 {
		return nil, &Error{Code: ErrEmptyGraph}
	}

	topo := dag.New()
	byID := make(map[string]*node.Node, len(def.Nodes))
	for i, n := range def.Nodes {
		if n == nil {
			return nil, compileErr(ErrUnknownNode, "", "node #%d is nil", i)
		}
		if !topo.AddNode(n.ID()) {
			return nil, compileErr(ErrDuplicateNode, n.ID(), "declared more than once")
		}
		byID[n.ID()] = n
	}

	inbound := make(map[string][]Edge)
	outbound := make(map[string][]Edge)
	for _, e := range def.Edges {
		if _, ok := byID[e.From]; !ok {
			return nil, compileErr(ErrUnknownNode, e.From, "edge %s -> %s", e.From, e.To)
		}
		if _, ok := byID[e.To]; !ok {
			return nil, compileErr(ErrUnknownNode, e.To, "edge %s -> %s", e.From, e.To)
		}
		if e.From == e.To {
			return nil, compileErr(ErrCycleDetected, e.From, "self edge")
		}
		if err := topo.AddEdge(e.From, e.To); err != nil {
			return nil, &Error{Code: ErrUnknownNode, Err: err}
		}
		inbound[e.To] = append(inbound[e.To], e)
		outbound[e.From] = append(outbound[e.From], e)
	}
	for id, in := range inbound {
		slices.SortStableFunc(in, func(a, b Edge) int { return cmp.Compare(a.Slot, b.Slot) })
		inbound[id] = in
	}
	logger.Debug("Compile: nodes and edges linked.")

	order, err := topo.TopologicalOrder()
	if err != nil {
		var ce *dag.CycleError
		nodeID := ""
		if errors.As(err, &ce) {
			nodeID = ce.Path[0]
		}
		return nil, &Error{Code: ErrCycleDetected, Node: nodeID, Err: err}
	}
	logger.Debug("Compile: cycle detection passed.")

	for _, e := range def.Edges {
		if err := checkEdgeTypes(byID[e.From], byID[e.To]); err != nil {
			return nil, err
		}
	}

	entries := slices.Clone(def.Entries)
	if len(entries) == 0 {
		entries = topo.Roots()
	}
	for _, id := range entries {
		if _, ok := byID[id]; !ok {
			return nil, compileErr(ErrUnknownNode, id, "listed as entry")
		}
		if len(inbound[id]) > 0 {
			return nil, &Error{Code: ErrInvalidEntry, Node: id}
		}
	}
	reachable := topo.Reachable(entries...)
	for _, id := range topo.Nodes() {
		if !reachable[id] {
			return nil, compileErr(ErrUnreachableNode, id, "not reachable from entries %v", entries)
		}
	}

	results := slices.Clone(def.Results)
	if len(results) == 0 {
		results = topo.Leaves()
	}
	isResult := make(map[string]bool, len(results))
	for _, id := range results {
		if _, ok := byID[id]; !ok {
			return nil, compileErr(ErrUnknownNode, id, "listed as result")
		}
		isResult[id] = true
	}

	topoIndex := make(map[string]int, len(order))
	for i, id := range order {
		topoIndex[id] = i
	}

	logger.Debug("Compile: graph compiled.", "order", order, "entries", entries, "results", results)
	return &Graph{
		nodes:     slices.Clone(def.Nodes),
		byID:      byID,
		edges:     slices.Clone(def.Edges),
		inbound:   inbound,
		outbound:  outbound,
		entries:   entries,
		results:   results,
		isResult:  isResult,
		order:     order,
		topoIndex: topoIndex,
	}, nil
}

func checkEdgeTypes(from, to *node.Node) error {
	produces := from.Signature().Produces
	accepts := to.Signature().Accepts
	if len(accepts) == 0 {
		return nil
	}
	for _, k := range produces {
		if accepts.Contains(k) {
			return nil
		}
	}
	return compileErr(ErrTypeMismatch, to.ID(), "%s produces %s, %s accepts %s", from.ID(), produces, to.ID(), accepts)
}

// Nodes returns nodes in declaration order.
func (g *Graph) Nodes() []*node.Node { return slices.Clone(g.nodes) }

// Node looks a node up by ID.
func (g *Graph) Node(id string) (*node.Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Edges returns edges in declaration order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// Inbound returns the edges into id, ordered by slot then declaration.
func (g *Graph) Inbound(id string) []Edge { return slices.Clone(g.inbound[id]) }

// Outbound returns the edges out of id in declaration order.
func (g *Graph) Outbound(id string) []Edge { return slices.Clone(g.outbound[id]) }

// Entries returns the nodes that receive the run input.
func (g *Graph) Entries() []string { return slices.Clone(g.entries) }

// Results returns the nodes whose outputs are surfaced.
func (g *Graph) Results() []string { return slices.Clone(g.results) }

// IsResult reports whether id is a result node.
func (g *Graph) IsResult(id string) bool { return g.isResult[id] }

// Order returns the topological order with declaration order as tie-break.
func (g *Graph) Order() []string { return slices.Clone(g.order) }

// TopoIndex returns id's position in Order, or -1.
func (g *Graph) TopoIndex(id string) int {
	if i, ok := g.topoIndex[id]; ok {
		return i
	}
	return -1
}

// Close releases every node. The graph must not be executed afterwards.
func (g *Graph) Close() {
	for _, n := range g.nodes {
		n.Close()
	}
}
