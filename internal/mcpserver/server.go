package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"uiagent/internal/registry"
	"uiagent/internal/render"
	"uiagent/internal/session"
	"uiagent/internal/types"
)

const componentsURI = "uiagent://components"

// UIResponse is the structured result of every session tool.
type UIResponse struct {
	SessionID   string              `json:"sessionId"`
	Turns       int                 `json:"turns"`
	Turn        *types.Turn         `json:"turn"`
	Tree        []render.RenderNode `json:"tree"`
	RenderError []string            `json:"renderErrors,omitempty"`
}

type generateArgs struct {
	Intent    string `json:"intent"`
	SessionID string `json:"session_id"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

// Server exposes the session controller as MCP tools.
type Server struct {
	sessions  *session.Controller
	reg       *registry.Registry
	log       *zap.Logger
	mcpServer *server.MCPServer
}

func New(sessions *session.Controller, reg *registry.Registry, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		sessions: sessions,
		reg:      reg,
		log:      log,
		mcpServer: server.NewMCPServer("uiagent", strings.TrimSpace(version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithInstructions("Generate UI from natural language. Call generate_ui repeatedly with the same session_id to refine a design; rollback_ui undoes the last change."),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server for alternative transports.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("generate_ui",
		mcp.WithDescription("Plan, validate, generate and explain a UI for an intent. Omit session_id to start a new session."),
		mcp.WithString("intent", mcp.Required(), mcp.Description("What to build or change")),
		mcp.WithString("session_id", mcp.Description("Session to continue (optional)")),
	), mcp.NewStructuredToolHandler(s.handleGenerate))

	s.mcpServer.AddTool(mcp.NewTool("rollback_ui",
		mcp.WithDescription("Discard the most recent turn of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to roll back")),
	), mcp.NewStructuredToolHandler(s.handleRollback))

	s.mcpServer.AddTool(mcp.NewTool("current_ui",
		mcp.WithDescription("Return a session's current turn and resolved component tree."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to inspect")),
	), mcp.NewStructuredToolHandler(s.handleCurrent))

	s.mcpServer.AddTool(mcp.NewTool("list_components",
		mcp.WithDescription("List the renderable components and their props."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(s.reg.Descriptors())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode components: %v", err)), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	})
}

func (s *Server) handleGenerate(ctx context.Context, _ mcp.CallToolRequest, args generateArgs) (UIResponse, error) {
	if strings.TrimSpace(args.Intent) == "" {
		return UIResponse{}, errors.New("intent is required")
	}
	id := strings.TrimSpace(args.SessionID)
	if id == "" {
		id = s.sessions.Create().ID
		s.log.Info("mcp session created", zap.String("session_id", id))
	}
	res, err := s.sessions.Generate(ctx, id, args.Intent)
	if err != nil {
		return UIResponse{}, err
	}
	return toResponse(res), nil
}

func (s *Server) handleRollback(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (UIResponse, error) {
	res, err := s.sessions.Rollback(ctx, args.SessionID)
	if err != nil {
		return UIResponse{}, err
	}
	return toResponse(res), nil
}

func (s *Server) handleCurrent(_ context.Context, _ mcp.CallToolRequest, args sessionArgs) (UIResponse, error) {
	res, err := s.sessions.Current(args.SessionID)
	if err != nil {
		return UIResponse{}, err
	}
	return toResponse(res), nil
}

func toResponse(res session.Result) UIResponse {
	return UIResponse{
		SessionID:   res.SessionID,
		Turns:       res.Turns,
		Turn:        res.Turn,
		Tree:        res.Tree,
		RenderError: render.Errors(res.Tree),
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(componentsURI, "Component registry",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		raw, err := json.Marshal(s.reg.Descriptors())
		if err != nil {
			return nil, fmt.Errorf("encode components: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      componentsURI,
				MIMEType: "application/json",
				Text:     string(raw),
			},
		}, nil
	})
}
