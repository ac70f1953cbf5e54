// Package preview renders turns and component trees for a terminal.
package preview

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"

	"uiagent/internal/registry"
	"uiagent/internal/render"
	"uiagent/internal/types"
)

const maxPropWidth = 40

var (
	typeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	propStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Options controls styling. The zero value renders plain text.
type Options struct {
	Color bool
	// Width wraps markdown; zero keeps glamour's default.
	Width int
}

// Printer renders pipeline output for humans.
type Printer struct {
	opts Options
	md   *glamour.TermRenderer
}

func New(opts Options) (*Printer, error) {
	mdOpts := []glamour.TermRendererOption{glamour.WithStandardStyle(styles.NoTTYStyle)}
	if opts.Color {
		mdOpts = []glamour.TermRendererOption{glamour.WithAutoStyle()}
	}
	if opts.Width > 0 {
		mdOpts = append(mdOpts, glamour.WithWordWrap(opts.Width))
	}
	md, err := glamour.NewTermRenderer(mdOpts...)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	return &Printer{opts: opts, md: md}, nil
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.opts.Color {
		return text
	}
	return s.Render(text)
}

// Tree draws a resolved forest as an indented tree.
func (p *Printer) Tree(nodes []render.RenderNode) string {
	root := tree.New()
	for i := range nodes {
		root.Child(p.node(&nodes[i]))
	}
	return root.String()
}

func (p *Printer) node(n *render.RenderNode) any {
	label := p.style(typeStyle, n.Type)
	if props := formatProps(n.ResolvedProps); props != "" {
		label += " " + p.style(propStyle, props)
	}
	if n.RenderError != "" {
		label = p.style(errorStyle, "! "+n.RenderError)
	}
	if len(n.MissingProps) > 0 {
		label += p.style(errorStyle, " missing: "+strings.Join(n.MissingProps, ","))
	}

	var kids []any
	switch n.ResolvedChildren.Kind {
	case render.ChildrenLiteral:
		kids = append(kids, literal(n.ResolvedChildren.Literal))
	case render.ChildrenSingle:
		kids = append(kids, p.node(n.ResolvedChildren.Node))
	case render.ChildrenMany:
		for _, c := range n.ResolvedChildren.Items {
			if c.IsNode() {
				kids = append(kids, p.node(c.Node))
			} else {
				kids = append(kids, literal(c.Literal))
			}
		}
	}
	if len(kids) == 0 {
		return label
	}
	return tree.Root(label).Child(kids...)
}

func literal(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}

// formatProps renders scalar props as k=v pairs sorted by key.
func formatProps(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var v string
		switch x := props[k].(type) {
		case string:
			v = fmt.Sprintf("%q", x)
		case map[string]any, []any:
			continue
		default:
			v = fmt.Sprint(x)
		}
		if len(v) > maxPropWidth {
			v = v[:maxPropWidth-3] + "..."
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}

// Components lists registry descriptors as a table.
func (p *Printer) Components(descs []*registry.Descriptor) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("COMPONENT", "REQUIRED", "OPTIONAL", "PLANNER")
	for _, d := range descs {
		var req, opt []string
		for _, prop := range d.Props {
			if prop.Required {
				req = append(req, prop.Name)
			} else {
				opt = append(opt, prop.Name)
			}
		}
		advertised := ""
		if d.Advertise {
			advertised = "yes"
		}
		t.Row(d.ComponentName, strings.Join(req, ", "), strings.Join(opt, ", "), advertised)
	}
	return t.String()
}

// Code highlights generated JSX. Plain mode returns it unchanged.
func (p *Printer) Code(code string) string {
	if !p.opts.Color {
		return code
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, code, "jsx", "terminal256", "monokai"); err != nil {
		return code
	}
	return buf.String()
}

// Markdown renders explanation text.
func (p *Printer) Markdown(text string) string {
	out, err := p.md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

// Turn renders every section of a turn next to its resolved tree.
func (p *Printer) Turn(t types.Turn, nodes []render.RenderNode) string {
	var b strings.Builder
	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		b.WriteString(p.style(titleStyle, title))
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(body, "\n"))
		b.WriteString("\n\n")
	}
	if t.Plan.IsSentinel() {
		section("Plan", p.style(errorStyle, t.Plan.Error))
	} else {
		section("Layout", t.Plan.Layout)
		section("Components", p.Tree(nodes))
	}
	section("Validation", t.Validation)
	section("Code", p.Code(t.Code))
	section("Explanation", p.Markdown(t.Explanation))
	return strings.TrimRight(b.String(), "\n") + "\n"
}
