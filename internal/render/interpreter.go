package render

import (
	"sort"
	"strconv"

	"uiagent/internal/registry"
	"uiagent/internal/types"
)

// Lookup is the registry surface the interpreter needs.
type Lookup interface {
	Lookup(typ string) (registry.Capability, bool)
}

// Interpreter resolves ComponentNode trees into RenderNode trees. It holds no
// mutable state and never panics on malformed input.
type Interpreter struct {
	reg       Lookup
	onUnknown func(typ string)
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithUnknownHook is called once per node whose type is not registered.
func WithUnknownHook(fn func(typ string)) Option {
	return func(i *Interpreter) { i.onUnknown = fn }
}

func New(reg Lookup, opts ...Option) *Interpreter {
	i := &Interpreter{reg: reg}
	for _, o := range opts {
		o(i)
	}
	return i
}

// NotFoundMessage is the renderError for an unregistered type.
func NotFoundMessage(typ string) string {
	return "Component not found: " + typ
}

// ResolveAll resolves the top-level sequence. Empty input yields an empty,
// non-nil slice.
func (in *Interpreter) ResolveAll(nodes []types.ComponentNode) []RenderNode {
	out := make([]RenderNode, 0, len(nodes))
	for i, n := range nodes {
		out = append(out, in.Resolve(n, i))
	}
	return out
}

// ResolvePlan resolves a plan's components. A sentinel plan has none.
func (in *Interpreter) ResolvePlan(p types.Plan) []RenderNode {
	if p.IsSentinel() {
		return []RenderNode{}
	}
	return in.ResolveAll(p.Components)
}

// Resolve converts one node at sibling position index.
func (in *Interpreter) Resolve(node types.ComponentNode, index int) RenderNode {
	key := nodeKey(node, index)
	capability, ok := in.reg.Lookup(node.Type)
	if !ok {
		if in.onUnknown != nil {
			in.onUnknown(node.Type)
		}
		return RenderNode{
			Key:           key,
			Type:          node.Type,
			ResolvedProps: map[string]any{},
			RenderError:   NotFoundMessage(node.Type),
		}
	}

	safe := make(map[string]any, len(node.Props))
	var unknown []string
	for k, v := range node.Props {
		if k == types.PropComponents || k == types.PropChildren {
			continue
		}
		safe[k] = v
		if !capability.Accepts(k) {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)

	return RenderNode{
		Key:              key,
		Type:             node.Type,
		ResolvedProps:    safe,
		ResolvedChildren: in.children(node.Props),
		MissingProps:     capability.Missing(node.Props),
		UnknownProps:     unknown,
	}
}

func nodeKey(node types.ComponentNode, index int) string {
	if node.ID != "" {
		return node.ID + "-" + strconv.Itoa(index)
	}
	return "component-" + strconv.Itoa(index)
}

// children applies the precedence rule: components array, then children
// array, then a single typed children object, then the literal value.
func (in *Interpreter) children(props map[string]any) Children {
	if comps, ok := props[types.PropComponents].([]any); ok {
		items := make([]Child, 0, len(comps))
		for i, c := range comps {
			obj, _ := c.(map[string]any)
			n := in.Resolve(types.NodeFromMap(obj), i)
			items = append(items, Child{Node: &n})
		}
		return Children{Kind: ChildrenMany, Items: items}
	}

	raw, present := props[types.PropChildren]
	if seq, ok := raw.([]any); ok {
		items := make([]Child, 0, len(seq))
		for i, c := range seq {
			if node, ok := types.NodeFromValue(c); ok {
				n := in.Resolve(node, i)
				items = append(items, Child{Node: &n})
				continue
			}
			items = append(items, Child{Literal: c})
		}
		return Children{Kind: ChildrenMany, Items: items}
	}
	if node, ok := types.NodeFromValue(raw); ok {
		n := in.Resolve(node, 0)
		return Children{Kind: ChildrenSingle, Node: &n}
	}
	if !present || raw == nil {
		return Children{Kind: ChildrenAbsent}
	}
	return Children{Kind: ChildrenLiteral, Literal: raw}
}
