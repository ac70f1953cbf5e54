package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"uiagent/internal/pipeline"
	"uiagent/internal/session"
)

// ServiceName is the connect service path prefix.
const ServiceName = "uiagent.v1.AgentService"

const (
	CreateSessionProcedure = "/" + ServiceName + "/CreateSession"
	GenerateProcedure      = "/" + ServiceName + "/Generate"
	RollbackProcedure      = "/" + ServiceName + "/Rollback"
	CurrentProcedure       = "/" + ServiceName + "/Current"
)

// AgentHandler exposes the session controller over connect. Payloads are
// google.protobuf.Struct values carrying the REST JSON shapes, so no
// generated code is needed.
type AgentHandler struct {
	sessions *session.Controller
	log      *zap.Logger
}

func NewAgentHandler(sessions *session.Controller, log *zap.Logger) *AgentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AgentHandler{sessions: sessions, log: log}
}

type sessionRequest struct {
	SessionID string `mapstructure:"sessionId"`
	Intent    string `mapstructure:"intent"`
}

// Handler returns the service path prefix and its handler, in the shape
// expected by mux.Handle.
func (h *AgentHandler) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithInterceptors(LoggingInterceptor(h.log))}, opts...)
	mux := http.NewServeMux()
	mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, h.CreateSession, opts...))
	mux.Handle(GenerateProcedure, connect.NewUnaryHandler(GenerateProcedure, h.Generate, opts...))
	mux.Handle(RollbackProcedure, connect.NewUnaryHandler(RollbackProcedure, h.Rollback, opts...))
	mux.Handle(CurrentProcedure, connect.NewUnaryHandler(CurrentProcedure, h.Current, opts...))
	return "/" + ServiceName + "/", mux
}

func (h *AgentHandler) CreateSession(_ context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	s := h.sessions.Create()
	return respond(map[string]any{"sessionId": s.ID})
}

func (h *AgentHandler) Generate(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	in, err := decodeRequest(req.Msg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Intent) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("intent is required"))
	}
	res, err := h.sessions.Generate(ctx, in.SessionID, in.Intent)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(res)
}

func (h *AgentHandler) Rollback(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	in, err := decodeRequest(req.Msg)
	if err != nil {
		return nil, err
	}
	res, err := h.sessions.Rollback(ctx, in.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(res)
}

func (h *AgentHandler) Current(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	in, err := decodeRequest(req.Msg)
	if err != nil {
		return nil, err
	}
	res, err := h.sessions.Current(in.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(res)
}

func decodeRequest(msg *structpb.Struct) (sessionRequest, error) {
	var out sessionRequest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &out, ErrorUnused: true})
	if err != nil {
		return out, connect.NewError(connect.CodeInternal, err)
	}
	if err := dec.Decode(msg.AsMap()); err != nil {
		return out, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return out, connect.NewError(connect.CodeInvalidArgument, errors.New("sessionId is required"))
	}
	return out, nil
}

// respond converts v to a Struct through its JSON form.
func respond(v any) (*connect.Response[structpb.Struct], error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("encode response: %w", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("encode response: %w", err))
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("encode response: %w", err))
	}
	return connect.NewResponse(st), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, session.ErrBusy):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, pipeline.ErrBackendUnavailable):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("agent service failed: %w", err))
	}
}

// LoggingInterceptor logs each unary call with its procedure, code and latency.
func LoggingInterceptor(log *zap.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("procedure", req.Spec().Procedure),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				log.Warn("rpc failed", append(fields, zap.String("code", connect.CodeOf(err).String()), zap.Error(err))...)
				return res, err
			}
			log.Debug("rpc", fields...)
			return res, nil
		}
	}
}
