package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is everything read from the graph files.
type Model struct {
	Variables  map[string]*Variable
	Components []*Component
	Nodes      []*Node
	Edges      []*Edge
	Graph      *Graph
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{Variables: make(map[string]*Variable)}
}

// Variable is a `variable "name"` block. Values passed on the command line
// override Default.
type Variable struct {
	Name        string
	Description string
	Default     *cty.Value
}

// Component is a `component "<provider>" "<id>"` block. Body is decoded by
// the provider factory.
type Component struct {
	Provider string
	ID       string
	Body     hcl.Body
	DefRange hcl.Range
}

// Node is a `node "<kind>" "<id>"` block.
type Node struct {
	Kind string
	ID   string
	// Inputs lists upstream nodes as `node.<id>` traversals. Each one becomes
	// an edge whose slot is its position in the list.
	Inputs hcl.Expression
	// Execution is the optional `execution` block body.
	Execution hcl.Body
	// Body holds the kind-specific attributes and blocks.
	Body     hcl.Body
	DefRange hcl.Range
}

// Edge is an explicit `edge` block.
type Edge struct {
	From string
	To   string
	Slot int
}

// Graph is the optional `graph` block. Empty lists mean "roots" for
// entries and "leaves" for results.
type Graph struct {
	Entries []string
	Results []string
}
