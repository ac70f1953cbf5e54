package render

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uiagent/internal/registry"
	"uiagent/internal/types"
)

func node(t *testing.T, raw string) types.ComponentNode {
	t.Helper()
	var n types.ComponentNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	return n
}

func newInterp() *Interpreter { return New(registry.Default()) }

func TestResolve_RegisteredTreeHasNoErrors(t *testing.T) {
	n := node(t, `{"id":"login","type":"Card","props":{"title":"Login","components":[
		{"type":"Input","props":{"label":"Email","placeholder":"you@example.com"}},
		{"type":"Input","props":{"label":"Password","placeholder":"••••","type":"password"}},
		{"type":"Button","props":{"label":"Login"}}
	]}}`)
	out := newInterp().ResolveAll([]types.ComponentNode{n})
	require.Len(t, out, 1)
	assert.Empty(t, Errors(out))
	assert.Equal(t, "login-0", out[0].Key)
	assert.Equal(t, map[string]any{"title": "Login"}, out[0].ResolvedProps)

	kids := out[0].ResolvedChildren
	require.Equal(t, ChildrenMany, kids.Kind)
	require.Len(t, kids.Items, 3)
	assert.Equal(t, "component-2", kids.Items[2].Node.Key)
	assert.Equal(t, "Button", kids.Items[2].Node.Type)
}

func TestResolve_UnknownTypeIsTerminal(t *testing.T) {
	var seen []string
	in := New(registry.Default(), WithUnknownHook(func(typ string) { seen = append(seen, typ) }))
	n := node(t, `{"type":"Carousel","props":{"title":"x","children":[{"type":"Button","props":{"label":"a"}}]}}`)
	out := in.Resolve(n, 4)
	assert.Equal(t, "Component not found: Carousel", out.RenderError)
	assert.Equal(t, ChildrenAbsent, out.ResolvedChildren.Kind)
	assert.Empty(t, out.ResolvedProps)
	assert.Equal(t, "component-4", out.Key)
	assert.Equal(t, []string{"Carousel"}, seen)
}

func TestResolve_UnknownSiblingDoesNotAffectOthers(t *testing.T) {
	n := node(t, `{"type":"Layout","props":{"children":[{"type":"Nope"},{"type":"Button","props":{"label":"ok"}}]}}`)
	out := newInterp().Resolve(n, 0)
	assert.Empty(t, out.RenderError)
	items := out.ResolvedChildren.Items
	require.Len(t, items, 2)
	assert.Equal(t, "Component not found: Nope", items[0].Node.RenderError)
	assert.Empty(t, items[1].Node.RenderError)
	assert.Equal(t, []string{"Component not found: Nope"}, Errors([]RenderNode{out}))
}

func TestResolve_ComponentsWinOverChildren(t *testing.T) {
	n := node(t, `{"type":"Card","props":{
		"components":[{"type":"Input","props":{"label":"A","placeholder":"a"}}],
		"children":[{"type":"Button","props":{"label":"B"}}]}}`)
	out := newInterp().Resolve(n, 0)
	require.Equal(t, ChildrenMany, out.ResolvedChildren.Kind)
	require.Len(t, out.ResolvedChildren.Items, 1)
	assert.Equal(t, "Input", out.ResolvedChildren.Items[0].Node.Type)
	assert.NotContains(t, out.ResolvedProps, "children")
	assert.NotContains(t, out.ResolvedProps, "components")
}

func TestResolve_MixedChildrenArray(t *testing.T) {
	n := node(t, `{"type":"Box","props":{"children":["hello",{"type":"Button","props":{"label":"Go"}}]}}`)
	out := newInterp().Resolve(n, 0)
	items := out.ResolvedChildren.Items
	require.Len(t, items, 2)
	assert.False(t, items[0].IsNode())
	assert.Equal(t, "hello", items[0].Literal)
	require.True(t, items[1].IsNode())
	assert.Equal(t, "Button", items[1].Node.Type)
	assert.Equal(t, "component-1", items[1].Node.Key)

	b, err := json.Marshal(out.ResolvedChildren)
	require.NoError(t, err)
	assert.JSONEq(t, `["hello",{"key":"component-1","type":"Button","resolvedProps":{"label":"Go"},"resolvedChildren":null}]`, string(b))
}

func TestResolve_SingleObjectChild(t *testing.T) {
	n := node(t, `{"type":"Modal","props":{"title":"Hi","children":{"type":"Text","props":{"children":"body"}}}}`)
	out := newInterp().Resolve(n, 0)
	require.Equal(t, ChildrenSingle, out.ResolvedChildren.Kind)
	inner := out.ResolvedChildren.Node
	assert.Equal(t, "component-0", inner.Key)
	assert.Equal(t, ChildrenLiteral, inner.ResolvedChildren.Kind)
	assert.Equal(t, "body", inner.ResolvedChildren.Literal)
}

func TestResolve_LiteralAndAbsentChildren(t *testing.T) {
	in := newInterp()

	out := in.Resolve(node(t, `{"type":"Text","props":{"children":42}}`), 0)
	assert.Equal(t, ChildrenLiteral, out.ResolvedChildren.Kind)
	assert.Equal(t, float64(42), out.ResolvedChildren.Literal)

	// An object without a type is passed through, not recursed into.
	out = in.Resolve(node(t, `{"type":"Box","props":{"children":{"label":"x"}}}`), 0)
	assert.Equal(t, ChildrenLiteral, out.ResolvedChildren.Kind)

	out = in.Resolve(node(t, `{"type":"Box"}`), 0)
	assert.Equal(t, ChildrenAbsent, out.ResolvedChildren.Kind)

	// components that is not a sequence falls through to children.
	out = in.Resolve(node(t, `{"type":"Box","props":{"components":"nope","children":"text"}}`), 0)
	assert.Equal(t, ChildrenLiteral, out.ResolvedChildren.Kind)
	assert.Equal(t, "text", out.ResolvedChildren.Literal)
}

func TestResolve_Deterministic(t *testing.T) {
	n := node(t, `{"id":"root","type":"Layout","props":{"direction":"row","children":[
		"a",{"type":"Card","props":{"title":"t","children":{"type":"Chart","props":{"type":"bar"}}}},
		{"type":"Ghost"}]}}`)
	in := newInterp()
	first := in.ResolveAll([]types.ComponentNode{n})
	second := in.ResolveAll([]types.ComponentNode{n})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("resolution not deterministic (-first +second):\n%s", diff)
	}
}

func TestResolve_MissingPropsDiagnostic(t *testing.T) {
	out := newInterp().Resolve(node(t, `{"type":"Input","props":{"label":"Email"}}`), 0)
	assert.Equal(t, []string{"placeholder"}, out.MissingProps)
	assert.Empty(t, out.RenderError)
}

func TestResolveAll_EmptyAndSentinel(t *testing.T) {
	in := newInterp()
	out := in.ResolveAll(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	assert.Empty(t, in.ResolvePlan(types.SentinelPlan("garbage")))
}

func TestResolve_NodeLevelChildren(t *testing.T) {
	n := node(t, `{"type":"Card","props":{"title":"x"},"children":[{"type":"Button","props":{"label":"y"}}]}`)
	out := newInterp().Resolve(n, 0)
	require.Equal(t, ChildrenMany, out.ResolvedChildren.Kind)
	assert.Equal(t, "Button", out.ResolvedChildren.Items[0].Node.Type)
}

func TestResolve_UnknownPropsDiagnostic(t *testing.T) {
	out := newInterp().Resolve(node(t, `{"type":"Button","props":{"label":"Go","href":"/x","color":"red"}}`), 0)
	assert.Equal(t, []string{"color", "href"}, out.UnknownProps)
	assert.Equal(t, "/x", out.ResolvedProps["href"])

	out = newInterp().Resolve(node(t, `{"type":"Card","props":{"title":"t","components":[]}}`), 0)
	assert.Empty(t, out.UnknownProps)
}

const nestedNodeLevelChildren = `{"layout":"stack","components":[{"type":"Layout","props":{"children":[
	{"type":"Card","props":{"title":"t"},"children":"hello"},
	{"type":"Box","props":{"style":{}},"components":[{"type":"Text","props":{"children":"x"},"children":"y"}]}]}}]}`

func TestResolvePlan_LeavesPlanUntouched(t *testing.T) {
	var p types.Plan
	require.NoError(t, json.Unmarshal([]byte(nestedNodeLevelChildren), &p))
	before, err := json.Marshal(p)
	require.NoError(t, err)

	out := newInterp().ResolvePlan(p)
	require.Len(t, out, 1)
	card := out[0].ResolvedChildren.Items[0].Node
	assert.Equal(t, "hello", card.ResolvedChildren.Literal)

	after, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestResolvePlan_ConcurrentWithReaders(t *testing.T) {
	var p types.Plan
	require.NoError(t, json.Unmarshal([]byte(nestedNodeLevelChildren), &p))
	in := newInterp()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				in.ResolvePlan(p)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := json.Marshal(p)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
