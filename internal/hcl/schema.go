package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a graph file may contain.
type fileRoot struct {
	Variables  []*variableBlock  `hcl:"variable,block"`
	Components []*componentBlock `hcl:"component,block"`
	Nodes      []*nodeBlock      `hcl:"node,block"`
	Edges      []*edgeBlock      `hcl:"edge,block"`
	Graphs     []*graphBlock     `hcl:"graph,block"`
	Remain     hcl.Body          `hcl:",remain"`
}

type variableBlock struct {
	Name        string         `hcl:"name,label"`
	Description string         `hcl:"description,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
}

type componentBlock struct {
	Provider string   `hcl:"provider,label"`
	ID       string   `hcl:"id,label"`
	Body     hcl.Body `hcl:",remain"`
}

type nodeBlock struct {
	Kind string   `hcl:"kind,label"`
	ID   string   `hcl:"id,label"`
	Body hcl.Body `hcl:",remain"`
}

type edgeBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
	Slot *int   `hcl:"slot,optional"`
}

type graphBlock struct {
	Entries []string `hcl:"entries,optional"`
	Results []string `hcl:"results,optional"`
}

// executionBlock is decoded with the full evaluation context, so its values
// may reference variables.
type executionBlock struct {
	Streaming      *bool             `hcl:"streaming,optional"`
	ReportToClient *bool             `hcl:"report_to_client,optional"`
	Components     map[string]string `hcl:"components,optional"`
	CannedText     []string          `hcl:"canned_text,optional"`
	Timeout        string            `hcl:"timeout,optional"`
	Remain         hcl.Body          `hcl:",remain"`
}

// nodeEnvelope splits the generic parts of a node block from its
// kind-specific body.
var nodeEnvelope = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "inputs"}},
	Blocks:     []hcl.BlockHeaderSchema{{Type: "execution"}},
}
