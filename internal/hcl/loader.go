package hcl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/config"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/fsutil"
)

// FileExtension is the suffix of graph files.
const FileExtension = ".hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load parses every .hcl file found under paths and merges their blocks into
// one model. Missing paths are skipped.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no %s files found in %v", FileExtension, paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	model := config.NewModel()
	parser := hclparse.NewParser()
	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := l.merge(ctx, model, f.Body); err != nil {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
	}

	logger.Debug("HCL loading complete.",
		"variables", len(model.Variables),
		"components", len(model.Components),
		"nodes", len(model.Nodes),
		"edges", len(model.Edges),
	)
	return model, NewConverter(), nil
}

// LoadBytes parses a single in-memory graph file.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*config.Model, config.Converter, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	model := config.NewModel()
	if err := l.merge(ctx, model, f.Body); err != nil {
		return nil, nil, err
	}
	return model, NewConverter(), nil
}

func (l *Loader) merge(ctx context.Context, model *config.Model, body hcl.Body) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return diags
	}

	for _, v := range root.Variables {
		if _, dup := model.Variables[v.Name]; dup {
			return fmt.Errorf("variable '%s' is declared more than once", v.Name)
		}
		def, err := translateVariable(v)
		if err != nil {
			return err
		}
		model.Variables[v.Name] = def
	}
	for _, c := range root.Components {
		model.Components = append(model.Components, &config.Component{
			Provider: c.Provider,
			ID:       c.ID,
			Body:     c.Body,
			DefRange: c.Body.MissingItemRange(),
		})
	}
	for _, n := range root.Nodes {
		def, err := translateNode(ctx, n)
		if err != nil {
			return err
		}
		model.Nodes = append(model.Nodes, def)
	}
	for _, e := range root.Edges {
		slot := 0
		if e.Slot != nil {
			slot = *e.Slot
		}
		model.Edges = append(model.Edges, &config.Edge{From: e.From, To: e.To, Slot: slot})
	}
	for _, g := range root.Graphs {
		if model.Graph != nil {
			return errors.New("only one graph block is allowed")
		}
		model.Graph = &config.Graph{Entries: g.Entries, Results: g.Results}
	}
	return nil
}

func translateVariable(v *variableBlock) (*config.Variable, error) {
	def := &config.Variable{Name: v.Name, Description: v.Description}
	if v.Default != nil {
		val, diags := v.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid default value for variable '%s': %w", v.Name, diags)
		}
		if !val.IsNull() {
			def.Default = &val
		}
	}
	return def, nil
}

func translateNode(ctx context.Context, n *nodeBlock) (*config.Node, error) {
	content, remain, diags := n.Body.PartialContent(nodeEnvelope)
	if diags.HasErrors() {
		return nil, fmt.Errorf("node '%s': %w", n.ID, diags)
	}
	def := &config.Node{
		Kind:     n.Kind,
		ID:       n.ID,
		Body:     remain,
		DefRange: n.Body.MissingItemRange(),
	}
	if attr, ok := content.Attributes["inputs"]; ok {
		def.Inputs = attr.Expr
	}
	switch len(content.Blocks) {
	case 0:
	case 1:
		def.Execution = content.Blocks[0].Body
	default:
		return nil, fmt.Errorf("node '%s': only one execution block is allowed", n.ID)
	}
	ctxlog.FromContext(ctx).Debug("Translated node block.", "node_id", n.ID, "kind", n.Kind, "has_execution", def.Execution != nil)
	return def, nil
}

// findHCLFiles returns every graph file under paths, without duplicates.
func findHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if filepath.Ext(path) == FileExtension {
				add(path)
			}
			continue
		}
		found, err := fsutil.FindFiles(path, FileExtension)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return all, nil
}
