package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uiagent/internal/archive"
	"uiagent/internal/artifact"
	"uiagent/internal/llm"
	"uiagent/internal/pipeline"
	"uiagent/internal/registry"
	"uiagent/internal/render"
	"uiagent/internal/session"
	"uiagent/internal/types"
)

type fixture struct {
	srv     *httptest.Server
	client  *llm.ScriptedClient
	store   *artifact.MemoryStore
	archive *archive.SQLStore
}

func newFixture(t *testing.T, cli *llm.ScriptedClient) *fixture {
	t.Helper()
	reg := registry.Default()
	var mu sync.Mutex
	clock := time.UnixMilli(1_700_000_000_000)
	orch := pipeline.New(cli, reg, pipeline.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	}))

	arch, err := archive.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = arch.Close() })

	store := artifact.NewMemoryStore()
	ctrl, err := session.NewController(orch, render.New(reg), session.Config{},
		session.WithArchive(arch), session.WithArtifacts(store))
	require.NoError(t, err)

	h := New(Deps{Sessions: ctrl, Runner: orch, Registry: reg, Archive: arch, Artifacts: store})
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, client: cli, store: store, archive: arch}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func TestStatelessGenerate(t *testing.T) {
	f := newFixture(t, llm.NewScriptedClient(llm.DemoReplies()))
	status, body := f.do(t, http.MethodPost, "/api/generate", map[string]any{
		"intent":       "login page",
		"previousPlan": map[string]any{"layout": "old", "components": []any{}},
		"previousCode": "<Navbar />",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.ElementsMatch(t, []string{"plan", "validation", "code", "explanation", "version"}, keys(out))
	assert.Contains(t, f.client.Calls()[0].User, `PREVIOUS_PLAN: {"components":[],"layout":"old"}`)
	assert.Contains(t, f.client.Calls()[0].User, "PREVIOUS_CODE: <Navbar />")
}

func TestStatelessGenerate_NullPreviousState(t *testing.T) {
	f := newFixture(t, llm.NewScriptedClient(llm.DemoReplies()))
	status, _ := f.do(t, http.MethodPost, "/api/generate", map[string]any{"intent": "x", "previousPlan": nil, "previousCode": nil})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, f.client.Calls()[0].User, "PREVIOUS_PLAN: null\nPREVIOUS_CODE: null")
}

func TestStatelessGenerate_Errors(t *testing.T) {
	f := newFixture(t, llm.NewScriptedClient(llm.DemoReplies()).Fail("plan", errors.New("GROQ_API_KEY is not defined")))

	status, body := f.do(t, http.MethodPost, "/api/generate", map[string]any{"intent": "x"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.JSONEq(t, `{"error":"GROQ_API_KEY is not defined"}`, string(body))

	status, _ = f.do(t, http.MethodPost, "/api/generate", map[string]any{"intent": "  "})
	assert.Equal(t, http.StatusBadRequest, status)

	resp, err := f.srv.Client().Post(f.srv.URL+"/api/generate", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, llm.NewScriptedClient(llm.DemoReplies()))

	status, body := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	var created createSessionResponse
	require.NoError(t, json.Unmarshal(body, &created))
	base := "/api/sessions/" + created.SessionID

	status, body = f.do(t, http.MethodPost, base+"/generate", intentRequest{Intent: "login page"})
	require.Equal(t, http.StatusOK, status, string(body))
	var res resultWire
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, 1, res.Turns)
	require.NotNil(t, res.Turn)
	require.Len(t, res.Tree, 1)

	status, _ = f.do(t, http.MethodPost, base+"/generate", intentRequest{Intent: "add a footer"})
	require.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)
	var view struct {
		Turns   int            `json:"turns"`
		Turn    *types.Turn    `json:"turn"`
		History []HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, 2, view.Turns)
	require.Len(t, view.History, 2)
	assert.Equal(t, "login page", view.History[0].UserIntent)
	assert.Equal(t, "add a footer", view.Turn.UserIntent)

	status, body = f.do(t, http.MethodPost, base+"/rollback", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, 1, res.Turns)
	assert.Equal(t, "login page", res.Turn.UserIntent)

	status, body = f.do(t, http.MethodGet, base+"/events", nil)
	require.Equal(t, http.StatusOK, status)
	var events []archive.Event
	require.NoError(t, json.Unmarshal(body, &events))
	require.Len(t, events, 3)
	assert.Equal(t, archive.KindRollback, events[2].Kind)

	status, body = f.do(t, http.MethodGet, base+"/artifacts", nil)
	require.Equal(t, http.StatusOK, status)
	var listed []artifactEntry
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed, 4)

	codePath, _ := artifact.TurnPaths(res.Turn.Version)
	status, body = f.do(t, http.MethodGet, base+"/artifacts/"+codePath, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, res.Turn.Code, string(body))

	status, _ = f.do(t, http.MethodGet, base+"/artifacts/0/code.jsx", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionRoutes_ErrorStatuses(t *testing.T) {
	f := newFixture(t, llm.NewScriptedClient(llm.DemoReplies()).Fail("validate", errors.New("timeout")))

	status, _ := f.do(t, http.MethodPost, "/api/sessions/missing/generate", intentRequest{Intent: "x"})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = f.do(t, http.MethodGet, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)

	_, body := f.do(t, http.MethodPost, "/api/sessions", nil)
	var created createSessionResponse
	require.NoError(t, json.Unmarshal(body, &created))

	status, body = f.do(t, http.MethodPost, "/api/sessions/"+created.SessionID+"/generate", intentRequest{Intent: "x"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.JSONEq(t, `{"error":"timeout"}`, string(body))

	status, _ = f.do(t, http.MethodPost, "/api/sessions/"+created.SessionID+"/generate", intentRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
}

type gateRunner struct {
	started chan struct{}
	release chan struct{}
}

func (g *gateRunner) Run(_ context.Context, req pipeline.Request, _ ...pipeline.RunOption) (types.Turn, error) {
	close(g.started)
	<-g.release
	return types.Turn{UserIntent: req.Intent, Version: 7}, nil
}

func TestSessionGenerate_BusyIsConflict(t *testing.T) {
	gate := &gateRunner{started: make(chan struct{}), release: make(chan struct{})}
	reg := registry.Default()
	ctrl, err := session.NewController(gate, render.New(reg), session.Config{})
	require.NoError(t, err)
	r := chi.NewRouter()
	New(Deps{Sessions: ctrl, Runner: gate, Registry: reg}).Routes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()
	s := ctrl.Create()

	done := make(chan int, 1)
	go func() {
		resp, err := srv.Client().Post(srv.URL+"/api/sessions/"+s.ID+"/generate", "application/json", strings.NewReader(`{"intent":"a"}`))
		if !assert.NoError(t, err) {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-gate.started

	resp, err := srv.Client().Post(srv.URL+"/api/sessions/"+s.ID+"/rollback", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(gate.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestRegistryAndHealth(t *testing.T) {
	f := newFixture(t, llm.NewScriptedClient(llm.DemoReplies()))
	status, body := f.do(t, http.MethodGet, "/api/registry", nil)
	require.Equal(t, http.StatusOK, status)
	var descs []registry.Descriptor
	require.NoError(t, json.Unmarshal(body, &descs))
	assert.Len(t, descs, 13)

	status, _ = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
}

// resultWire mirrors session.Result on the client side.
type resultWire struct {
	Turn  *types.Turn      `json:"turn"`
	Tree  []map[string]any `json:"tree"`
	Turns int              `json:"turns"`
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
