package testutil

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
)

// SimpleModule is a test helper that registers one provider whose factory
// always returns Backend.
type SimpleModule struct {
	Provider string
	Backend  any
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.Provider == "" || m.Backend == nil {
		return
	}
	r.RegisterProvider(m.Provider, func(context.Context, string, hcl.Body, *hcl.EvalContext) (any, error) {
		return m.Backend, nil
	})
}
