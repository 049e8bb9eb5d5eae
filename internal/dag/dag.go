package dag

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is returned by DetectCycles and TopologicalOrder.
var ErrCycle = errors.New("cycle detected")

// CycleError lists the nodes forming the first detected cycle, in edge order.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s involving node '%s': %s", ErrCycle, e.Path[0], strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID. It reports false if a node with
// the same ID already exists.
func (g *Graph) AddNode(id string) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return false
	}

	g.nodes[id] = &node{
		id:         id,
		index:      len(g.order),
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.order = append(g.order, id)
	return true
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Nodes returns node IDs in insertion order.
func (g *Graph) Nodes() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return slices.Clone(g.order)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
// Adding the same edge twice is a no-op.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// Dependencies returns the IDs the given node depends on, in insertion order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.deps), nil
}

// Dependents returns the IDs that depend on the given node, in insertion order.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.dependents), nil
}

// Roots returns nodes without dependencies, in insertion order.
func (g *Graph) Roots() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	var out []string
	for _, id := range g.order {
		if len(g.nodes[id].deps) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Leaves returns nodes without dependents, in insertion order.
func (g *Graph) Leaves() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	var out []string
	for _, id := range g.order {
		if len(g.nodes[id].dependents) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// DetectCycles checks the graph for any cycles. It returns a *CycleError
// describing the first cycle found, visiting nodes in insertion order.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Classic depth-first search with three sets of nodes:
	// permanent: fully visited and not part of a cycle.
	// temporary: currently on the recursion stack.
	// unvisited: all other nodes.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			start := slices.Index(stack, n.id)
			path := append(slices.Clone(stack[start:]), n.id)
			return &CycleError{Path: path}
		}

		temporary[n.id] = true
		stack = append(stack, n.id)

		for _, id := range sortedIDs(n.dependents) {
			if err := visit(n.dependents[id]); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, id := range g.order {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every node after all of its dependencies. Among
// nodes that are ready at the same time the earliest inserted comes first,
// so the order is deterministic.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	pending := make(map[string]int, len(g.nodes))
	ready := &indexHeap{}
	for _, id := range g.order {
		n := g.nodes[id]
		pending[id] = len(n.deps)
		if len(n.deps) == 0 {
			heap.Push(ready, n)
		}
	}

	out := make([]string, 0, len(g.order))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*node)
		out = append(out, n.id)
		for _, d := range n.dependents {
			pending[d.id]--
			if pending[d.id] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	return out, nil
}

// Reachable returns the set of nodes reachable from the given starts,
// including the starts themselves. Unknown starts are ignored.
func (g *Graph) Reachable(starts ...string) map[string]bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	seen := make(map[string]bool)
	queue := make([]*node, 0, len(starts))
	for _, id := range starts {
		if n, ok := g.nodes[id]; ok && !seen[id] {
			seen[id] = true
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for id, d := range n.dependents {
			if !seen[id] {
				seen[id] = true
				queue = append(queue, d)
			}
		}
	}
	return seen
}

func sortedIDs(m map[string]*node) []string {
	nodes := make([]*node, 0, len(m))
	for _, n := range m {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *node) int { return a.index - b.index })
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.id
	}
	return ids
}

// indexHeap orders nodes by insertion index.
type indexHeap []*node

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i].index < h[j].index }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(*node)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
