package resource

import (
	"log/slog"
	"sort"
	"sync"
)

// ID identifies a handle within its registry.
type ID uint64

// ReleaseFunc destroys the raw object behind a handle.
type ReleaseFunc func(raw any)

// Registry owns every registered handle. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	next    ID
	handles map[ID]*Handle
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger means slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handles: make(map[ID]*Handle),
		logger:  logger,
	}
}

// Register records raw with its release callback and returns the owning handle.
// label is only used for logs and errors.
func (r *Registry) Register(label string, raw any, release ReleaseFunc) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	h := &Handle{
		id:       r.next,
		label:    label,
		raw:      raw,
		release:  release,
		registry: r,
	}
	h.refs.Store(1)
	r.handles[h.id] = h
	r.logger.Debug("Registered resource.", "resource_id", h.id, "label", label)
	return h
}

// IsValid reports whether h belongs to this registry and has not been released.
func (r *Registry) IsValid(h *Handle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	registered, ok := r.handles[h.id]
	return ok && registered == h && !h.released.Load()
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Close force-releases every live handle, newest first, regardless of
// outstanding references. Each one is logged as a leak.
func (r *Registry) Close() {
	r.mu.Lock()
	live := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		live = append(live, h)
	}
	r.mu.Unlock()

	sort.Slice(live, func(i, j int) bool { return live[i].id > live[j].id })
	for _, h := range live {
		r.logger.Warn("Releasing leaked resource.", "resource_id", h.id, "label", h.label, "refs", h.refs.Load())
		h.destroy()
	}
}

func (r *Registry) forget(h *Handle) {
	r.mu.Lock()
	delete(r.handles, h.id)
	r.mu.Unlock()
	r.logger.Debug("Released resource.", "resource_id", h.id, "label", h.label)
}
