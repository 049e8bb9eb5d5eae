// Package value defines the payloads that travel along graph edges.
//
// Value is a closed tagged union: every concrete type lives in this package
// and implements the unexported isValue marker, so consumers dispatch with a
// type switch instead of reflection. Values are immutable once built;
// constructors and accessors copy slices so no holder can mutate another
// holder's view.
//
// Audio and Raw values may carry a *resource.Handle when their bytes are
// backed by an externally owned buffer. The executor reference-counts such
// handles across every edge and subscriber holding the value.
package value
