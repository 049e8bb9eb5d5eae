package builder

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/config"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
)

// buildComponents hands each component block to its provider.
func buildComponents(ctx context.Context, comps []*config.Component, reg *registry.Registry, evalCtx *hcl.EvalContext) error {
	logger := ctxlog.FromContext(ctx)
	for _, c := range comps {
		logger.Debug("Creating component.", "provider", c.Provider, "id", c.ID)
		if _, err := reg.Build(ctx, c.Provider, c.ID, c.Body, evalCtx); err != nil {
			logger.Error("Component creation failed.", "id", c.ID, "error", err)
			return err
		}
	}
	return nil
}
