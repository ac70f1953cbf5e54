package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"uiagent/internal/llm"
	"uiagent/internal/pipeline"
	"uiagent/internal/registry"
	"uiagent/internal/render"
	"uiagent/internal/session"
)

func newController(t *testing.T, cli llm.Client) *session.Controller {
	t.Helper()
	reg := registry.Default()
	ctrl, err := session.NewController(pipeline.New(cli, reg), render.New(reg), session.Config{})
	require.NoError(t, err)
	return ctrl
}

func newServer(t *testing.T, ctrl *session.Controller) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Mount(NewAgentHandler(ctrl, nil).Handler())
	r.Get("/ws/sessions/{id}", NewStreamHandler(ctrl, nil).HandleSessionWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, procedure string, in map[string]any) (*structpb.Struct, error) {
	t.Helper()
	msg, err := structpb.NewStruct(in)
	require.NoError(t, err)
	client := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+procedure, connect.WithProtoJSON())
	res, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func TestAgentService_Flow(t *testing.T) {
	srv := newServer(t, newController(t, llm.NewScriptedClient(llm.DemoReplies())))

	out, err := call(t, srv, CreateSessionProcedure, map[string]any{})
	require.NoError(t, err)
	id := out.AsMap()["sessionId"].(string)
	require.NotEmpty(t, id)

	out, err = call(t, srv, GenerateProcedure, map[string]any{"sessionId": id, "intent": "login page"})
	require.NoError(t, err)
	got := out.AsMap()
	assert.Equal(t, float64(1), got["turns"])
	tree := got["tree"].([]any)
	require.Len(t, tree, 1)
	assert.Equal(t, "Card", tree[0].(map[string]any)["type"])

	out, err = call(t, srv, CurrentProcedure, map[string]any{"sessionId": id})
	require.NoError(t, err)
	turn := out.AsMap()["turn"].(map[string]any)
	assert.Equal(t, "login page", turn["userIntent"])

	out, err = call(t, srv, RollbackProcedure, map[string]any{"sessionId": id})
	require.NoError(t, err)
	assert.Equal(t, float64(0), out.AsMap()["turns"])
	assert.Nil(t, out.AsMap()["turn"])
}

func TestAgentService_Errors(t *testing.T) {
	cli := llm.NewScriptedClient(llm.DemoReplies()).Fail("plan", errors.New("down"))
	srv := newServer(t, newController(t, cli))

	_, err := call(t, srv, CurrentProcedure, map[string]any{"sessionId": "nope"})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = call(t, srv, CurrentProcedure, map[string]any{})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = call(t, srv, CurrentProcedure, map[string]any{"sessionId": "x", "bogus": true})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	out, err := call(t, srv, CreateSessionProcedure, map[string]any{})
	require.NoError(t, err)
	id := out.AsMap()["sessionId"].(string)

	_, err = call(t, srv, GenerateProcedure, map[string]any{"sessionId": id})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = call(t, srv, GenerateProcedure, map[string]any{"sessionId": id, "intent": "x"})
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

type resultWire struct {
	Turns int              `json:"turns"`
	Tree  []map[string]any `json:"tree"`
}

// wireOutbound is streamOutbound as a client decodes it.
type wireOutbound struct {
	Type    string         `json:"type"`
	Event   *session.Event `json:"event"`
	Result  *resultWire    `json:"result"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + id
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestStream_GenerateOverSocket(t *testing.T) {
	ctrl := newController(t, llm.NewScriptedClient(llm.DemoReplies()))
	srv := newServer(t, ctrl)
	s := ctrl.Create()
	conn := dial(t, srv, s.ID)

	var first wireOutbound
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "subscribed", first.Type)

	require.NoError(t, conn.WriteJSON(streamInbound{Type: "generate", Intent: "login page"}))

	// Events are forwarded asynchronously and may trail the result.
	var kinds []string
	var result *resultWire
	appended := false
	for result == nil || !appended {
		var out wireOutbound
		require.NoError(t, conn.ReadJSON(&out))
		switch out.Type {
		case "event":
			kinds = append(kinds, out.Event.Kind)
			appended = appended || out.Event.Kind == string(session.EventTurnAppended)
		case "result":
			result = out.Result
		case "error":
			t.Fatalf("unexpected error: %s", out.Message)
		}
	}
	assert.Equal(t, 1, result.Turns)
	assert.Contains(t, kinds, string(pipeline.EventStageStarted))
	assert.Equal(t, 1, s.History.Len())
}

func TestStream_BadCommands(t *testing.T) {
	ctrl := newController(t, llm.NewScriptedClient(llm.DemoReplies()))
	srv := newServer(t, ctrl)
	conn := dial(t, srv, ctrl.Create().ID)

	var out wireOutbound
	require.NoError(t, conn.ReadJSON(&out))

	require.NoError(t, conn.WriteJSON(streamInbound{Type: "ping"}))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "pong", out.Type)

	require.NoError(t, conn.WriteJSON(streamInbound{Type: "generate"}))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "error", out.Type)
	assert.Equal(t, "invalid_argument", out.Code)

	require.NoError(t, conn.WriteJSON(streamInbound{Type: "dance"}))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "unsupported type: dance", out.Message)
}

func TestStream_UnknownSession(t *testing.T) {
	srv := newServer(t, newController(t, llm.NewScriptedClient(llm.DemoReplies())))
	resp, err := http.Get(srv.URL + "/ws/sessions/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
