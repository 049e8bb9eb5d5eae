package hcl

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/config"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/node"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Converter is the HCL-specific implementation of the config.Converter interface.
type Converter struct {
	// Environ supplies `env.*`. Defaults to os.Environ.
	Environ func() []string
}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{Environ: os.Environ}
}

var _ config.Converter = (*Converter)(nil)

// functions are the helpers available inside expressions.
var functions = map[string]function.Function{
	"upper":     stdlib.UpperFunc,
	"lower":     stdlib.LowerFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"join":      stdlib.JoinFunc,
	"split":     stdlib.SplitFunc,
	"format":    stdlib.FormatFunc,
	"coalesce":  stdlib.CoalesceFunc,
}

// EvalContext implements config.Converter. Overrides are strings from the
// command line and are converted to the type of the variable's default.
func (c *Converter) EvalContext(ctx context.Context, vars map[string]*config.Variable, overrides map[string]string) (*hcl.EvalContext, error) {
	logger := ctxlog.FromContext(ctx)

	for _, name := range sortedKeys(overrides) {
		if _, ok := vars[name]; !ok {
			return nil, fmt.Errorf("value given for undeclared variable '%s'", name)
		}
	}

	values := make(map[string]cty.Value, len(vars))
	for _, name := range sortedKeys(vars) {
		v := vars[name]
		raw, overridden := overrides[name]
		switch {
		case overridden && v.Default != nil && v.Default.Type() != cty.String:
			val, err := convert.Convert(cty.StringVal(raw), v.Default.Type())
			if err != nil {
				return nil, fmt.Errorf("variable '%s': cannot convert %q to %s: %w", name, raw, v.Default.Type().FriendlyName(), err)
			}
			values[name] = val
		case overridden:
			values[name] = cty.StringVal(raw)
		case v.Default != nil:
			values[name] = *v.Default
		default:
			return nil, fmt.Errorf("variable '%s' has no default and no value was given", name)
		}
		logger.Debug("Resolved variable.", "name", name, "overridden", overridden)
	}

	env := make(map[string]cty.Value)
	if c.Environ != nil {
		for _, kv := range c.Environ() {
			k, v, ok := strings.Cut(kv, "=")
			if ok && k != "" {
				env[k] = cty.StringVal(v)
			}
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": cty.ObjectVal(values),
			"env": cty.ObjectVal(env),
		},
		Functions: functions,
	}, nil
}

// DecodeNode implements config.Converter.
func (c *Converter) DecodeNode(ctx context.Context, n *config.Node, evalCtx *hcl.EvalContext) (node.CreationConfig, *node.ExecutionConfig, error) {
	logger := ctxlog.FromContext(ctx).With("node_id", n.ID, "kind", n.Kind)
	logger.Debug("Decoding node block.")

	kind, err := node.ParseKind(n.Kind)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", n.DefRange, err)
	}
	cfg, err := node.NewConfig(kind)
	if err != nil {
		return nil, nil, err
	}
	if n.Body != nil {
		if diags := gohcl.DecodeBody(n.Body, evalCtx, cfg); diags.HasErrors() {
			return nil, nil, fmt.Errorf("node '%s': %w", n.ID, diags)
		}
	}

	if n.Execution == nil {
		return cfg, nil, nil
	}
	var block executionBlock
	if diags := gohcl.DecodeBody(n.Execution, evalCtx, &block); diags.HasErrors() {
		return nil, nil, fmt.Errorf("node '%s' execution: %w", n.ID, diags)
	}
	exec := &node.ExecutionConfig{
		ReportToClient: block.ReportToClient,
		Components:     block.Components,
		CannedText:     block.CannedText,
	}
	if block.Streaming != nil {
		exec.Streaming = *block.Streaming
	}
	if block.Timeout != "" {
		d, err := time.ParseDuration(block.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("node '%s' execution: invalid timeout %q: %w", n.ID, block.Timeout, err)
		}
		exec.Timeout = d
	}
	logger.Debug("Decoded execution block.", "streaming", exec.Streaming, "timeout", exec.Timeout)
	return cfg, exec, nil
}

// NodeInputs implements config.Converter. Each element of the inputs list
// must be a `node.<id>` reference or a string literal.
func (c *Converter) NodeInputs(ctx context.Context, n *config.Node) ([]string, error) {
	if n.Inputs == nil {
		return nil, nil
	}
	items, diags := hcl.ExprList(n.Inputs)
	if diags.HasErrors() {
		return nil, fmt.Errorf("node '%s' inputs must be a list: %w", n.ID, diags)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if t, diags := hcl.AbsTraversalForExpr(item); !diags.HasErrors() {
			id, ok := parseNodeTraversal(t)
			if !ok {
				return nil, fmt.Errorf("node '%s' inputs: %s is not a node reference", n.ID, formatTraversal(t))
			}
			ids = append(ids, id)
			continue
		}
		val, diags := item.Value(nil)
		if diags.HasErrors() || val.Type() != cty.String || val.IsNull() {
			return nil, fmt.Errorf("node '%s' inputs: each input must be node.<id> or a string", n.ID)
		}
		ids = append(ids, val.AsString())
	}
	ctxlog.FromContext(ctx).Debug("Resolved node inputs.", "node_id", n.ID, "inputs", ids)
	return ids, nil
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
func (c *Converter) ToCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

// parseNodeTraversal accepts node.<id>.
func parseNodeTraversal(t hcl.Traversal) (string, bool) {
	if len(t) != 2 || t.RootName() != "node" {
		return "", false
	}
	attr, ok := t[1].(hcl.TraverseAttr)
	if !ok {
		return "", false
	}
	return attr.Name, true
}

// formatTraversal converts an hcl.Traversal to a human-readable string for logging.
func formatTraversal(t hcl.Traversal) string {
	var sb strings.Builder
	for i, part := range t {
		switch p := part.(type) {
		case hcl.TraverseRoot:
			sb.WriteString(p.Name)
		case hcl.TraverseAttr:
			sb.WriteRune('.')
			sb.WriteString(p.Name)
		case hcl.TraverseIndex:
			sb.WriteRune('[')
			switch p.Key.Type() {
			case cty.String:
				fmt.Fprintf(&sb, "%q", p.Key.AsString())
			case cty.Number:
				sb.WriteString(p.Key.AsBigFloat().Text('f', -1))
			default:
				sb.WriteString("...")
			}
			sb.WriteRune(']')
		default:
			if i > 0 {
				sb.WriteRune('.')
			}
			sb.WriteString("?")
		}
	}
	return sb.String()
}

// sortedKeys is used for stable log and error output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
