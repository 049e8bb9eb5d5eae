package builder

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/config"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/node"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
)

// createNodes decodes and creates every node. Duplicate IDs are rejected
// here so the error can point at the block.
func createNodes(ctx context.Context, defs []*config.Node, conv config.Converter, reg *registry.Registry, evalCtx *hcl.EvalContext, opts []node.Option) ([]*node.Node, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting node creation pass.")

	var created []*node.Node
	fail := func(err error) ([]*node.Node, error) {
		for _, n := range created {
			n.Close()
		}
		return nil, err
	}

	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if _, dup := seen[def.ID]; dup {
			return fail(fmt.Errorf("%s: duplicate node definition '%s'", def.DefRange, def.ID))
		}
		seen[def.ID] = struct{}{}

		cfg, exec, err := conv.DecodeNode(ctx, def, evalCtx)
		if err != nil {
			return fail(err)
		}
		n, err := node.Create(def.ID, cfg, exec, reg, opts...)
		if err != nil {
			return fail(err)
		}
		logger.Debug("Created node.", "id", def.ID, "kind", def.Kind)
		created = append(created, n)
	}
	logger.Debug("Finished node creation pass.")
	return created, nil
}
