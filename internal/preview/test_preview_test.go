package preview

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uiagent/internal/registry"
	"uiagent/internal/render"
	"uiagent/internal/types"
)

const loginPlan = `{"layout":"centered","components":[{"type":"Card","props":{"title":"Login","components":[
	{"type":"Input","props":{"label":"Email"}},
	{"type":"Sparkle","props":{}},
	{"type":"Button","props":{"label":"Go","children":["Go", {"type":"Text","props":{"value":"arrow"}}]}}]}}]}`

func resolve(t *testing.T, raw string) (types.Plan, []render.RenderNode) {
	t.Helper()
	var p types.Plan
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p, render.New(registry.Default()).ResolvePlan(p)
}

func plain(t *testing.T) *Printer {
	t.Helper()
	p, err := New(Options{})
	require.NoError(t, err)
	return p
}

func TestTree_Plain(t *testing.T) {
	_, nodes := resolve(t, loginPlan)
	out := plain(t).Tree(nodes)

	assert.Contains(t, out, `Card title="Login"`)
	assert.Contains(t, out, `Input label="Email"`)
	assert.Contains(t, out, "! Component not found: Sparkle")
	assert.Contains(t, out, `"Go"`)
	assert.Contains(t, out, `Text value="arrow"`)
	assert.Less(t, strings.Index(out, "Card"), strings.Index(out, "Input"))
}

func TestFormatProps_SkipsNestedAndTruncates(t *testing.T) {
	got := formatProps(map[string]any{
		"b":     true,
		"a":     strings.Repeat("x", 60),
		"style": map[string]any{"color": "red"},
	})
	assert.True(t, strings.HasPrefix(got, `a="xxx`))
	assert.True(t, strings.HasSuffix(got, "... b=true"))
	assert.NotContains(t, got, "style")
}

func TestComponents(t *testing.T) {
	out := plain(t).Components(registry.Default().Descriptors())
	assert.Contains(t, out, "COMPONENT")
	assert.Contains(t, out, "Button")
	assert.Contains(t, out, "Card")
}

func TestTurn_Sections(t *testing.T) {
	p, nodes := resolve(t, loginPlan)
	out := plain(t).Turn(types.Turn{
		Plan:        p,
		Validation:  "VALID",
		Code:        "<Card />",
		Explanation: "A **login** card.",
	}, nodes)
	for _, want := range []string{"Layout", "centered", "Components", "Validation", "VALID", "Code", "<Card />", "Explanation", "login"} {
		assert.Contains(t, out, want)
	}
}

func TestTurn_SentinelPlan(t *testing.T) {
	out := plain(t).Turn(types.Turn{Plan: types.SentinelPlan("garbage")}, []render.RenderNode{})
	assert.Contains(t, out, types.PlanParseError)
	assert.NotContains(t, out, "Components")
}

func TestCode_Color(t *testing.T) {
	p, err := New(Options{Color: true, Width: 60})
	require.NoError(t, err)
	out := p.Code("const x = <Button label=\"Go\" />;")
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "Button")
}
