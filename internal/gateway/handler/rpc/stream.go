package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"uiagent/internal/pipeline"
	"uiagent/internal/session"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type streamInbound struct {
	Type   string `json:"type"`
	Intent string `json:"intent,omitempty"`
}

type streamOutbound struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Event     *session.Event  `json:"event,omitempty"`
	Result    *session.Result `json:"result,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// StreamHandler pushes session events over a websocket and accepts
// generate and rollback commands on the same connection.
type StreamHandler struct {
	sessions *session.Controller
	log      *zap.Logger
}

func NewStreamHandler(sessions *session.Controller, log *zap.Logger) *StreamHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamHandler{sessions: sessions, log: log}
}

func (h *StreamHandler) HandleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "id"))
	s, err := h.sessions.Get(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(streamPongWait)); err != nil {
		h.log.Warn("stream set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	writeCh := make(chan streamOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(streamPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	events, unsubscribe := s.Subscribe(64)
	defer unsubscribe()
	push(writeCh, streamOutbound{Type: "subscribed", SessionID: sessionID})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					// Session evicted.
					push(writeCh, streamOutbound{Type: "error", Code: "not_found", Message: session.ErrNotFound.Error()})
					return
				}
				push(writeCh, streamOutbound{Type: "event", SessionID: sessionID, Event: &evt})
			}
		}
	}()

	for {
		var in streamInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch msgType := strings.ToLower(strings.TrimSpace(in.Type)); msgType {
		case "ping":
			push(writeCh, streamOutbound{Type: "pong"})
		case "generate":
			if strings.TrimSpace(in.Intent) == "" {
				push(writeCh, streamOutbound{Type: "error", Code: "invalid_argument", Message: "intent is required"})
				continue
			}
			go h.run(ctx, writeCh, func(ctx context.Context) (session.Result, error) {
				return h.sessions.Generate(ctx, sessionID, in.Intent)
			})
		case "rollback":
			go h.run(ctx, writeCh, func(ctx context.Context) (session.Result, error) {
				return h.sessions.Rollback(ctx, sessionID)
			})
		case "":
			push(writeCh, streamOutbound{Type: "error", Code: "invalid_argument", Message: "type is required"})
		default:
			push(writeCh, streamOutbound{Type: "error", Code: "invalid_argument", Message: "unsupported type: " + msgType})
		}
	}
}

func (h *StreamHandler) run(ctx context.Context, writeCh chan streamOutbound, action func(context.Context) (session.Result, error)) {
	res, err := action(ctx)
	if err != nil {
		push(writeCh, streamOutbound{Type: "error", Code: errorCode(err), Message: err.Error()})
		return
	}
	push(writeCh, streamOutbound{Type: "result", SessionID: res.SessionID, Result: &res})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrBusy):
		return "busy"
	case errors.Is(err, session.ErrNotFound):
		return "not_found"
	case errors.Is(err, pipeline.ErrBackendUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

// push drops the oldest queued message when the writer falls behind.
func push(writeCh chan streamOutbound, out streamOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
