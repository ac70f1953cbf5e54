package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"uiagent/internal/gateway/config"
	"uiagent/internal/gateway/handler"
	"uiagent/internal/gateway/handler/rpc"
	"uiagent/internal/gateway/server"
	"uiagent/internal/llm"
	"uiagent/internal/metrics"
	"uiagent/internal/pipeline"
	"uiagent/internal/registry"
	"uiagent/internal/render"
	"uiagent/internal/session"
)

// Core is the transport-independent object graph shared by the HTTP
// gateway, the MCP server and the terminal commands.
type Core struct {
	Log      *zap.Logger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Registry *registry.Registry
	Interp   *render.Interpreter
	Pipeline *pipeline.Orchestrator
	Sessions *session.Controller

	client llm.Client
	stores *gatewayStores
}

// NewCore builds the model client, pipeline, stores and session controller.
func NewCore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Core, error) {
	if log == nil {
		log = zap.NewNop()
	}
	promReg := metrics.NewRegistry()
	m := metrics.New(promReg)

	client, err := llm.New(ctx, cfg.LLM.Config, log, m)
	if err != nil {
		return nil, fmt.Errorf("failed to init model client: %w", err)
	}

	stores, err := initStores(ctx, cfg, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	reg := registry.Default()
	interp := render.New(reg, render.WithUnknownHook(m.UnknownComponent))
	orch := pipeline.New(client, reg,
		pipeline.WithLogger(log),
		pipeline.WithTimeout(cfg.LLM.PipelineTimeout),
		pipeline.WithRecorder(m),
	)

	opts := []session.Option{
		session.WithLogger(log),
		session.WithSessionGauge(m.SetSessions),
		session.WithArtifacts(stores.artifact),
	}
	if stores.archive != nil {
		opts = append(opts, session.WithArchive(stores.archive))
	}
	if stores.locker != nil {
		opts = append(opts, session.WithLocker(stores.locker))
	}
	sessions, err := session.NewController(orch, interp, cfg.Session, opts...)
	if err != nil {
		_ = stores.Close()
		_ = client.Close()
		return nil, err
	}

	return &Core{
		Log:      log,
		Gatherer: promReg,
		Metrics:  m,
		Registry: reg,
		Interp:   interp,
		Pipeline: orch,
		Sessions: sessions,
		client:   client,
		stores:   stores,
	}, nil
}

// Close releases the model client and stores.
func (c *Core) Close() error {
	storeErr := c.stores.Close()
	if err := c.client.Close(); err != nil {
		return err
	}
	return storeErr
}

// Handler builds the full HTTP surface over c.
func (c *Core) Handler() *handler.Handler {
	return handler.New(handler.Deps{
		Sessions:  c.Sessions,
		Runner:    c.Pipeline,
		Registry:  c.Registry,
		Archive:   c.stores.archive,
		Artifacts: c.stores.artifact,
		Logger:    c.Log,
	})
}

type App struct {
	core   *Core
	server *server.Server
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	core, err := NewCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	agentHandler := rpc.NewAgentHandler(core.Sessions, core.Log)
	streamHandler := rpc.NewStreamHandler(core.Sessions, core.Log)

	// Routing & Server
	mux := server.NewMux(core.Handler(), agentHandler, streamHandler, metrics.Handler(core.Gatherer), core.Log)
	srv := server.New(cfg.Port, mux, core.Log)

	return &App{
		core:   core,
		server: srv,
	}, nil
}

func (a *App) Core() *Core { return a.core }

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.core.Close(); err == nil {
		err = cerr
	}
	return err
}
