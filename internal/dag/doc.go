// Package dag holds the bare topology of a graph: string node IDs and
// directed edges. It knows nothing about node kinds or values; the graph
// package builds on it for validation, and the executor uses the
// topological order it computes to break scheduling ties.
package dag
