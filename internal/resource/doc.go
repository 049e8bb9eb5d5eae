// Package resource tracks externally owned objects (native buffers, client
// connections, backend sessions) and guarantees that each one is released
// exactly once, no matter how many wrappers, graph edges or subscribers
// reference it.
//
// A Handle is created by Registry.Register and starts with a single
// reference owned by the registration. Additional holders call Acquire and
// receive a Ref; every Ref.Release and the owning Handle.Release are
// idempotent. The release callback runs when the last reference is dropped.
//
// Touching a released handle is a programming error: Value and Acquire
// report ErrUseAfterRelease, MustValue panics.
package resource
