package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/node"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads every graph file under paths, merges them into one model,
	// and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter binds raw bodies from the model to Go types.
type Converter interface {
	// EvalContext builds the evaluation context exposing `var.*` and
	// `env.*`. overrides replace variable defaults.
	EvalContext(ctx context.Context, vars map[string]*Variable, overrides map[string]string) (*hcl.EvalContext, error)

	// DecodeNode decodes a node block into its creation config and, if the
	// block has one, its execution config.
	DecodeNode(ctx context.Context, n *Node, evalCtx *hcl.EvalContext) (node.CreationConfig, *node.ExecutionConfig, error)

	// NodeInputs returns the IDs referenced by the node's inputs attribute,
	// in order.
	NodeInputs(ctx context.Context, n *Node) ([]string, error)

	// ToCtyValue converts a native Go value into its cty equivalent.
	ToCtyValue(v any) (cty.Value, error)
}
