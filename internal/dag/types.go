package dag

import "sync"

// Graph is a collection of nodes and their dependencies. All operations on
// the graph are concurrency-safe.
type Graph struct {
	// mutex protects nodes and order.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
	// order lists node IDs in insertion order.
	order []string
}

// node is un-exported to enforce interaction through string IDs.
type node struct {
	id string
	// index is the insertion position, used as a deterministic tie-break.
	index int
	// deps holds the set of nodes that this node depends on (predecessors).
	deps map[string]*node
	// dependents holds the set of nodes that depend on this node (successors).
	dependents map[string]*node
}
