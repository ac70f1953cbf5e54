package registry

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed components.yaml
var defaultComponents []byte

// Capability is what the interpreter needs to know about one component type.
type Capability interface {
	Name() string
	// Accepts reports whether prop is a recognized prop name.
	Accepts(prop string) bool
	// Missing lists required props that props fails to provide.
	Missing(props map[string]any) []string
}

// Prop describes one recognized prop of a component.
type Prop struct {
	Name     string `yaml:"name" json:"name"`
	Required bool   `yaml:"required" json:"required,omitempty"`
	// RequiredIfPresent props may be omitted but must be non-empty when given.
	RequiredIfPresent bool `yaml:"required_if_present" json:"requiredIfPresent,omitempty"`
	Default           any  `yaml:"default" json:"default,omitempty"`
}

// Descriptor is the static capability record for one component type.
type Descriptor struct {
	ComponentName string `yaml:"name" json:"name"`
	Description   string `yaml:"description" json:"description,omitempty"`
	// Advertise marks types offered to the planner prompt.
	Advertise bool   `yaml:"advertise" json:"advertise"`
	Props     []Prop `yaml:"props" json:"props"`
}

var _ Capability = (*Descriptor)(nil)

func (d *Descriptor) Name() string { return d.ComponentName }

func (d *Descriptor) Accepts(prop string) bool {
	for _, p := range d.Props {
		if p.Name == prop {
			return true
		}
	}
	return false
}

func (d *Descriptor) Missing(props map[string]any) []string {
	var out []string
	for _, p := range d.Props {
		v, present := props[p.Name]
		switch {
		case p.Required && (!present || empty(v)):
			out = append(out, p.Name)
		case p.RequiredIfPresent && present && empty(v):
			out = append(out, p.Name)
		}
	}
	return out
}

// RequiredNames lists props that must be provided, in declaration order.
func (d *Descriptor) RequiredNames() []string {
	var out []string
	for _, p := range d.Props {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

func empty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Registry is a closed, read-only mapping from type name to capability.
// It is safe for concurrent use because nothing mutates it after Parse.
type Registry struct {
	byName map[string]*Descriptor
	order  []string
}

type document struct {
	Components []*Descriptor `yaml:"components"`
}

// Parse builds a registry from a YAML document.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse: %w", err)
	}
	r := &Registry{byName: make(map[string]*Descriptor, len(doc.Components))}
	for _, d := range doc.Components {
		if d == nil || strings.TrimSpace(d.ComponentName) == "" {
			return nil, fmt.Errorf("registry: component without a name")
		}
		if _, dup := r.byName[d.ComponentName]; dup {
			return nil, fmt.Errorf("registry: duplicate component %q", d.ComponentName)
		}
		r.byName[d.ComponentName] = d
		r.order = append(r.order, d.ComponentName)
	}
	return r, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the built-in component registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Parse(defaultComponents)
		if err != nil {
			panic(err)
		}
		defaultReg = r
	})
	return defaultReg
}

// Lookup returns the capability for typ. Type names are case-sensitive.
func (r *Registry) Lookup(typ string) (Capability, bool) {
	d, ok := r.byName[typ]
	if !ok {
		return nil, false
	}
	return d, true
}

// Descriptor returns the full record for typ.
func (r *Registry) Descriptor(typ string) (*Descriptor, bool) {
	d, ok := r.byName[typ]
	return d, ok
}

// Names lists every registered type in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Advertised lists the types offered to the planner, in declaration order.
func (r *Registry) Advertised() []*Descriptor {
	var out []*Descriptor
	for _, n := range r.order {
		if d := r.byName[n]; d.Advertise {
			out = append(out, d)
		}
	}
	return out
}

// Descriptors returns all records sorted by name.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComponentName < out[j].ComponentName })
	return out
}
