// Package graph compiles a graph definition into an immutable, validated
// execution plan.
//
// Compile checks, in order: node identity (duplicates, unknown references),
// edge shape, cycles, edge typing and reachability. Any failure returns a
// *Error and no graph. A compiled Graph is safe for concurrent reads and
// is bound to an executor for any number of runs.
package graph
