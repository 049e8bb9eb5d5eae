package resource

import (
	"sync"
	"sync/atomic"
)

// Handle is a reference-counted, non-copyable reference to an externally
// owned object.
type Handle struct {
	id       ID
	label    string
	raw      any
	release  ReleaseFunc
	registry *Registry

	refs        atomic.Int64
	released    atomic.Bool
	ownerOnce   sync.Once
	destroyOnce sync.Once
}

// ID returns the registry-scoped identifier.
func (h *Handle) ID() ID { return h.id }

// Label returns the label given at registration.
func (h *Handle) Label() string { return h.label }

// Released reports whether the release callback has run.
func (h *Handle) Released() bool { return h.released.Load() }

// Value returns the raw object, or a *UseAfterReleaseError.
func (h *Handle) Value() (any, error) {
	if h.released.Load() {
		return nil, h.useAfterRelease()
	}
	return h.raw, nil
}

// MustValue is Value for callers that treat a released handle as a bug.
func (h *Handle) MustValue() any {
	v, err := h.Value()
	if err != nil {
		panic(err)
	}
	return v
}

// Acquire adds a reference. The returned Ref must be released by its holder.
func (h *Handle) Acquire() (*Ref, error) {
	for {
		n := h.refs.Load()
		if n <= 0 || h.released.Load() {
			return nil, h.useAfterRelease()
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return &Ref{handle: h}, nil
		}
	}
}

// Release drops the registration's own reference. Calling it again is a no-op.
func (h *Handle) Release() {
	h.ownerOnce.Do(h.drop)
}

// Refs returns the current reference count.
func (h *Handle) Refs() int64 { return h.refs.Load() }

func (h *Handle) drop() {
	if h.refs.Add(-1) == 0 {
		h.destroy()
	}
}

func (h *Handle) destroy() {
	h.destroyOnce.Do(func() {
		h.released.Store(true)
		h.refs.Store(0)
		if h.release != nil {
			h.release(h.raw)
		}
		h.raw = nil
		if h.registry != nil {
			h.registry.forget(h)
		}
	})
}

func (h *Handle) useAfterRelease() error {
	return &UseAfterReleaseError{ID: h.id, Label: h.label}
}

// Ref is one holder's share of a Handle.
type Ref struct {
	handle *Handle
	once   sync.Once
}

// Handle returns the referenced handle.
func (r *Ref) Handle() *Handle { return r.handle }

// Value is a shortcut for r.Handle().Value().
func (r *Ref) Value() (any, error) { return r.handle.Value() }

// Release drops this reference. Calling it again is a no-op.
func (r *Ref) Release() {
	r.once.Do(r.handle.drop)
}
