package types

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// Reserved prop names that carry structure rather than DOM attributes.
const (
	PropComponents = "components"
	PropChildren   = "children"
)

// PlanParseError is the error message carried by a sentinel Plan.
const PlanParseError = "Failed to parse plan"

// ComponentNode is one node of a model-produced UI plan.
// Children live in Props under "children" or "components".
type ComponentNode struct {
	ID    string         `json:"id,omitempty"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props,omitempty"`
}

// UnmarshalJSON accepts the loose shapes a model emits: numeric ids,
// non-object props (dropped), and node-level children/components (folded
// into props when props does not already carry them).
func (n *ComponentNode) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*n = NodeFromMap(m)
	return nil
}

// NodeFromMap builds a ComponentNode from a decoded JSON object.
func NodeFromMap(m map[string]any) ComponentNode {
	var n ComponentNode
	n.ID = scalarString(m["id"])
	if s, ok := m["type"].(string); ok {
		n.Type = s
	} else if m["type"] != nil {
		n.Type = scalarString(m["type"])
	}
	// The source map may belong to a stored plan; fold into a copy.
	src, _ := m["props"].(map[string]any)
	var props map[string]any
	if src != nil {
		props = make(map[string]any, len(src)+2)
		maps.Copy(props, src)
	}
	for _, k := range []string{PropComponents, PropChildren} {
		v, ok := m[k]
		if !ok {
			continue
		}
		if props == nil {
			props = map[string]any{}
		}
		if _, exists := props[k]; !exists {
			props[k] = v
		}
	}
	n.Props = props
	return n
}

// NodeFromValue reports whether v is object-shaped with a non-empty type
// field and, if so, converts it.
func NodeFromValue(v any) (ComponentNode, bool) {
	m, ok := v.(map[string]any)
	if !ok || !truthy(m["type"]) {
		return ComponentNode{}, false
	}
	return NodeFromMap(m), true
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return true
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Plan is either a layout with components or, when extraction failed, a
// sentinel carrying the raw planner text. Exactly one shape holds.
type Plan struct {
	Layout     string
	Components []ComponentNode
	// Extra keeps any other top-level keys the model produced.
	Extra map[string]any

	Error string
	Raw   string
}

// SentinelPlan returns the extraction-failure shape.
func SentinelPlan(raw string) Plan {
	return Plan{Error: PlanParseError, Raw: raw}
}

// IsSentinel reports whether p is the extraction-failure shape.
func (p Plan) IsSentinel() bool { return p.Error != "" }

// PlanFromMap converts a decoded JSON object into a Plan. An object with an
// "error" key and no "components" key is read back as a sentinel.
func PlanFromMap(m map[string]any) Plan {
	if errMsg, ok := m["error"].(string); ok {
		if _, hasComponents := m["components"]; !hasComponents {
			raw, _ := m["raw"].(string)
			return Plan{Error: errMsg, Raw: raw}
		}
	}
	var p Plan
	for k, v := range m {
		switch k {
		case "layout":
			p.Layout = scalarString(v)
		case "components":
			items, ok := v.([]any)
			if !ok {
				continue
			}
			p.Components = make([]ComponentNode, 0, len(items))
			for _, it := range items {
				obj, _ := it.(map[string]any)
				p.Components = append(p.Components, NodeFromMap(obj))
			}
		default:
			if p.Extra == nil {
				p.Extra = map[string]any{}
			}
			p.Extra[k] = v
		}
	}
	return p
}

func (p Plan) MarshalJSON() ([]byte, error) {
	if p.IsSentinel() {
		return json.Marshal(struct {
			Error string `json:"error"`
			Raw   string `json:"raw"`
		}{p.Error, p.Raw})
	}
	out := make(map[string]any, len(p.Extra)+2)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.Layout != "" {
		out["layout"] = p.Layout
	}
	comps := p.Components
	if comps == nil {
		comps = []ComponentNode{}
	}
	out["components"] = comps
	return json.Marshal(out)
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*p = PlanFromMap(m)
	return nil
}

// Turn is one completed pipeline run. It is never mutated after creation.
type Turn struct {
	UserIntent  string `json:"userIntent"`
	Plan        Plan   `json:"plan"`
	Validation  string `json:"validation"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
	// Version is the creation time in Unix milliseconds.
	Version int64 `json:"version"`
}

