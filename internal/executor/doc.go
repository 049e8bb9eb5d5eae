// Package executor runs a compiled graph.
//
// An Executor binds one compiled graph and runs it any number of times, one
// run at a time. Each run is driven by a coordinator goroutine that owns all
// scheduling state: it keeps a ready queue ordered by topological index
// (declaration order breaks ties), hands nodes to a fixed worker pool, fans
// produced values out along edges, and decides the run's terminal status.
// Workers only call Node.Process and report back, so no lock is ever held
// across a node call.
//
// A failing node skips its descendants while unrelated branches keep
// running. Cancellation (Run.Cancel, the parent context or the executor
// timeout) stops dispatch, waits for in-flight calls and ends the run as
// Cancelled.
package executor
