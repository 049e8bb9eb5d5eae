package builder

import (
	"context"
	"fmt"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/config"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/graph"
)

type edgeKey struct{ from, to string }

// linkNodes collects explicit edges, then implicit ones from each node's
// inputs list. The same pair declared twice is an error.
func linkNodes(ctx context.Context, model *config.Model, conv config.Converter) ([]graph.Edge, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting node linking pass.")

	known := make(map[string]struct{}, len(model.Nodes))
	for _, n := range model.Nodes {
		known[n.ID] = struct{}{}
	}

	var edges []graph.Edge
	seen := make(map[edgeKey]struct{})
	add := func(e graph.Edge, origin string) error {
		if _, ok := known[e.From]; !ok {
			return fmt.Errorf("%s refers to non-existent node '%s'", origin, e.From)
		}
		if _, ok := known[e.To]; !ok {
			return fmt.Errorf("%s refers to non-existent node '%s'", origin, e.To)
		}
		k := edgeKey{e.From, e.To}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("edge from '%s' to '%s' is declared more than once", e.From, e.To)
		}
		seen[k] = struct{}{}
		edges = append(edges, e)
		return nil
	}

	for _, e := range model.Edges {
		logger.Debug("Linking explicit edge.", "from", e.From, "to", e.To, "slot", e.Slot)
		if err := add(graph.Edge{From: e.From, To: e.To, Slot: e.Slot}, "edge"); err != nil {
			return nil, err
		}
	}

	for _, n := range model.Nodes {
		inputs, err := conv.NodeInputs(ctx, n)
		if err != nil {
			return nil, err
		}
		for slot, from := range inputs {
			logger.Debug("Linking implicit input.", "from", from, "to", n.ID, "slot", slot)
			if err := add(graph.Edge{From: from, To: n.ID, Slot: slot}, fmt.Sprintf("node '%s' inputs", n.ID)); err != nil {
				return nil, err
			}
		}
	}
	logger.Debug("Finished node linking pass.")
	return edges, nil
}
