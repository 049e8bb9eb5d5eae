package inmemorystore

import (
	"context"
	"sync"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/nodestore"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Store keeps run state in three sync.Maps keyed by node ID. The key space is
// fixed when the run starts and values change frequently, which is the
// access pattern sync.Map is built for.
type Store struct {
	states  sync.Map // node ID -> nodestore.Status
	outputs sync.Map // node ID -> value.Value
	errors  sync.Map // node ID -> error
}

// New creates a new, empty in-memory node state store.
func New() *Store {
	return &Store{}
}

var _ nodestore.Store = (*Store)(nil)

// SetStatus updates the execution status of a specific node.
func (s *Store) SetStatus(_ context.Context, id string, status nodestore.Status) error {
	s.states.Store(id, status)
	return nil
}

// GetStatus retrieves the execution status of a specific node.
// If a status has not been set, it returns StatusPending.
func (s *Store) GetStatus(_ context.Context, id string) (nodestore.Status, error) {
	status, ok := s.states.Load(id)
	if !ok {
		return nodestore.StatusPending, nil
	}
	return status.(nodestore.Status), nil
}

// SetOutput records the successful output of a node.
func (s *Store) SetOutput(_ context.Context, id string, output value.Value) error {
	s.outputs.Store(id, output)
	return nil
}

// GetOutput retrieves the recorded output of a completed node.
func (s *Store) GetOutput(_ context.Context, id string) (value.Value, error) {
	output, ok := s.outputs.Load(id)
	if !ok {
		return nil, nil
	}
	return output.(value.Value), nil
}

// SetError records the failure error of a node.
func (s *Store) SetError(_ context.Context, id string, nodeErr error) error {
	s.errors.Store(id, nodeErr)
	return nil
}

// GetError retrieves the recorded error of a failed node.
func (s *Store) GetError(_ context.Context, id string) (error, error) {
	err, ok := s.errors.Load(id)
	if !ok {
		return nil, nil
	}
	return err.(error), nil
}

// Statuses returns a snapshot of every status set so far.
func (s *Store) Statuses() map[string]nodestore.Status {
	out := make(map[string]nodestore.Status)
	s.states.Range(func(k, v any) bool {
		out[k.(string)] = v.(nodestore.Status)
		return true
	})
	return out
}
