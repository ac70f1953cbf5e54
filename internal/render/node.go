package render

import (
	"encoding/json"
)

// ChildrenKind tags the shape resolved children arrived in.
type ChildrenKind int

const (
	ChildrenAbsent ChildrenKind = iota
	ChildrenLiteral
	ChildrenSingle
	ChildrenMany
)

func (k ChildrenKind) String() string {
	switch k {
	case ChildrenLiteral:
		return "literal"
	case ChildrenSingle:
		return "single"
	case ChildrenMany:
		return "many"
	default:
		return "absent"
	}
}

// Child is one element of a Many sequence: a resolved node or a literal leaf.
type Child struct {
	Node    *RenderNode
	Literal any
}

// IsNode reports whether the element is a resolved node.
func (c Child) IsNode() bool { return c.Node != nil }

func (c Child) MarshalJSON() ([]byte, error) {
	if c.Node != nil {
		return json.Marshal(c.Node)
	}
	return json.Marshal(c.Literal)
}

// Children is the resolved children of a RenderNode.
type Children struct {
	Kind    ChildrenKind
	Literal any
	Node    *RenderNode
	Items   []Child
}

func (c Children) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ChildrenLiteral:
		return json.Marshal(c.Literal)
	case ChildrenSingle:
		return json.Marshal(c.Node)
	case ChildrenMany:
		items := c.Items
		if items == nil {
			items = []Child{}
		}
		return json.Marshal(items)
	default:
		return []byte("null"), nil
	}
}

// RenderNode is the resolved, presentation-ready form of a ComponentNode.
// It is recomputed on demand and never persisted.
type RenderNode struct {
	Key              string         `json:"key"`
	Type             string         `json:"type"`
	ResolvedProps    map[string]any `json:"resolvedProps"`
	ResolvedChildren Children       `json:"resolvedChildren"`
	RenderError      string         `json:"renderError,omitempty"`
	// MissingProps lists required props the node did not provide. Diagnostic only.
	MissingProps []string `json:"missingProps,omitempty"`
	// UnknownProps lists passed-through props the type does not declare.
	UnknownProps []string `json:"unknownProps,omitempty"`
}

// Walk visits n and every resolved descendant depth-first. Returning false
// from fn stops the walk.
func (n *RenderNode) Walk(fn func(*RenderNode) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	switch n.ResolvedChildren.Kind {
	case ChildrenSingle:
		return n.ResolvedChildren.Node.Walk(fn)
	case ChildrenMany:
		for _, c := range n.ResolvedChildren.Items {
			if c.Node != nil && !c.Node.Walk(fn) {
				return false
			}
		}
	}
	return true
}

// Errors collects every renderError in the forest.
func Errors(nodes []RenderNode) []string {
	var out []string
	for i := range nodes {
		nodes[i].Walk(func(n *RenderNode) bool {
			if n.RenderError != "" {
				out = append(out, n.RenderError)
			}
			return true
		})
	}
	return out
}
