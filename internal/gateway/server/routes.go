package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"uiagent/internal/gateway/handler"
	"uiagent/internal/gateway/handler/rpc"
	"uiagent/internal/gateway/middleware"
)

func NewMux(
	restHandler *handler.Handler,
	agentHandler *rpc.AgentHandler,
	streamHandler *rpc.StreamHandler,
	metricsHandler http.Handler,
	log *zap.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))

	// RPC Handlers
	r.Mount(agentHandler.Handler())

	// Streaming
	r.Get("/ws/sessions/{id}", streamHandler.HandleSessionWS)

	// REST
	restHandler.Routes(r)

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	return middleware.CORS(r)
}
