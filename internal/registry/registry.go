package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/resource"
)

var (
	// ErrComponentNotFound is returned when no backend is registered under an ID.
	ErrComponentNotFound = errors.New("component not found")
	// ErrCapabilityMismatch is returned when a backend lacks the required interface.
	ErrCapabilityMismatch = errors.New("component does not provide capability")
	// ErrUnknownProvider is returned when a component block names an unregistered provider.
	ErrUnknownProvider = errors.New("unknown component provider")
)

// Module is implemented by every backend package compiled into the binary.
type Module interface {
	Register(r *Registry)
}

// Factory builds a backend from its component block body. Unknown attributes
// in body are ignored by convention.
type Factory func(ctx context.Context, id string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error)

// Resolver is the read side used by nodes.
type Resolver interface {
	Lookup(id string) (any, bool)
}

// Registry holds providers and constructed components for one app instance.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]Factory
	components map[string]any
	closers    map[string]func() error
	order      []string
	resources  *resource.Registry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		providers:  make(map[string]Factory),
		components: make(map[string]any),
		closers:    make(map[string]func() error),
	}
}

// TrackResources makes every io.Closer component registered from now on a
// handle in res, released by Close or, at the latest, by res.Close.
func (r *Registry) TrackResources(res *resource.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = res
}

// RegisterProvider registers a factory for a provider name.
func (r *Registry) RegisterProvider(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		panic(fmt.Sprintf("component provider '%s' already registered", name))
	}
	slog.Debug("Registering component provider.", "provider", name)
	r.providers[name] = f
}

// HasProvider reports whether name has a factory.
func (r *Registry) HasProvider(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// Register stores a ready backend under id. Registering the same ID twice is
// a programmer error and panics.
func (r *Registry) Register(id string, backend any) {
	if backend == nil {
		panic(fmt.Sprintf("component '%s' registered with nil backend", id))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[id]; exists {
		panic(fmt.Sprintf("component with id '%s' already registered", id))
	}
	r.add(id, backend)
}

// add stores backend under id. r.mu must be held.
func (r *Registry) add(id string, backend any) {
	slog.Debug("Registering component.", "id", id, "capabilities", Capabilities(backend))
	r.components[id] = backend
	r.order = append(r.order, id)
	if c, ok := backend.(io.Closer); ok {
		r.closers[id] = r.closer(id, c)
	}
}

// closer returns the once-only shutdown of c. With tracked resources the
// backend lives behind a handle, so whichever of Close and the resource
// registry comes first closes it.
func (r *Registry) closer(id string, c io.Closer) func() error {
	if r.resources == nil {
		return c.Close
	}
	var closeErr error
	h := r.resources.Register("component:"+id, c, func(raw any) {
		closeErr = raw.(io.Closer).Close()
	})
	return func() error {
		h.Release()
		return closeErr
	}
}

// Build constructs a component through its provider and registers it.
func (r *Registry) Build(ctx context.Context, provider, id string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error) {
	r.mu.RLock()
	f, ok := r.providers[provider]
	_, dup := r.components[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("component '%s': %w '%s'", id, ErrUnknownProvider, provider)
	}
	if dup {
		return nil, fmt.Errorf("component with id '%s' already registered", id)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building component.", "provider", provider, "id", id)
	backend, err := f(ctx, id, body, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("component '%s' (%s): %w", id, provider, err)
	}
	if backend == nil {
		return nil, fmt.Errorf("component '%s' (%s): provider returned no backend", id, provider)
	}

	r.mu.Lock()
	if _, dup := r.components[id]; dup {
		r.mu.Unlock()
		// Lost a race with a concurrent Build of the same ID.
		if c, ok := backend.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				logger.Warn("Failed to close duplicate component.", "id", id, "error", cerr)
			}
		}
		return nil, fmt.Errorf("component with id '%s' already registered", id)
	}
	r.add(id, backend)
	r.mu.Unlock()
	return backend, nil
}

// Lookup implements Resolver.
func (r *Registry) Lookup(id string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.components[id]
	return b, ok
}

// IDs returns component IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Close closes every component implementing io.Closer, in reverse
// registration order, and forgets all components.
func (r *Registry) Close() error {
	r.mu.Lock()
	order := r.order
	closers := r.closers
	r.order = nil
	r.components = make(map[string]any)
	r.closers = make(map[string]func() error)
	r.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if closeFn, ok := closers[order[i]]; ok {
			if err := closeFn(); err != nil {
				errs = append(errs, fmt.Errorf("closing component '%s': %w", order[i], err))
			}
		}
	}
	return errors.Join(errs...)
}

// Resolve looks up id and asserts it to T.
func Resolve[T any](r Resolver, id string, c Capability) (T, error) {
	var zero T
	if r == nil {
		return zero, fmt.Errorf("%w: '%s' (no registry)", ErrComponentNotFound, id)
	}
	b, ok := r.Lookup(id)
	if !ok {
		return zero, fmt.Errorf("%w: '%s'", ErrComponentNotFound, id)
	}
	t, ok := b.(T)
	if !ok {
		return zero, fmt.Errorf("%w: '%s' is %T, needs %s", ErrCapabilityMismatch, id, b, c)
	}
	return t, nil
}
