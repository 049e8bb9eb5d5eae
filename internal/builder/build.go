package builder

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/config"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/graph"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/node"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
)

// Options tune a build.
type Options struct {
	// Vars override variable defaults.
	Vars map[string]string
	// NodeOptions are passed to every node.Create call.
	NodeOptions []node.Option
}

// Result is a built, not yet compiled, graph.
type Result struct {
	Definition  graph.Definition
	EvalContext *hcl.EvalContext
}

// Close releases the nodes of an uncompiled result.
func (r *Result) Close() {
	for _, n := range r.Definition.Nodes {
		n.Close()
	}
}

// Build constructs components into reg and returns the graph definition.
// On error, nodes created so far are closed; components already registered
// stay in reg and are closed with it.
func Build(ctx context.Context, model *config.Model, conv config.Converter, reg *registry.Registry, opts Options) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")

	evalCtx, err := conv.EvalContext(ctx, model.Variables, opts.Vars)
	if err != nil {
		return nil, fmt.Errorf("error building evaluation context: %w", err)
	}

	if err := buildComponents(ctx, model.Components, reg, evalCtx); err != nil {
		return nil, err
	}
	logger.Debug("Build: Component creation complete.", "component_count", len(model.Components))

	nodes, err := createNodes(ctx, model.Nodes, conv, reg, evalCtx, opts.NodeOptions)
	if err != nil {
		return nil, err
	}
	res := &Result{EvalContext: evalCtx, Definition: graph.Definition{Nodes: nodes}}
	logger.Debug("Build: Node creation complete.", "node_count", len(nodes))

	edges, err := linkNodes(ctx, model, conv)
	if err != nil {
		res.Close()
		return nil, err
	}
	res.Definition.Edges = edges
	logger.Debug("Build: Node linking complete.", "edge_count", len(edges))

	if model.Graph != nil {
		res.Definition.Entries = model.Graph.Entries
		res.Definition.Results = model.Graph.Results
	}

	logger.Info("Build: Graph construction successful.", "nodes", len(nodes), "edges", len(edges))
	return res, nil
}
