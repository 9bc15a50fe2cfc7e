package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/gommon/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"smartclass/internal/logging"
	"smartclass/internal/service"
)

// Server is the MCP server of the page builder. It exposes tools, resources
// and prompts so AI agents can build lesson pages.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	layout   *LayoutEngine
	builder  *service.BuilderService
	log      *log.Logger

	// project used when a tool call omits projectId
	mu              sync.Mutex
	activeProjectID string
}

// Deps holds everything the MCP server needs from the app layer.
type Deps struct {
	// Name is the server name reported to clients.
	Name    string
	Emitter EventEmitter
	Builder *service.BuilderService
	// AutoApprove skips the approval queue, for standalone use where no
	// builder UI is around to answer.
	AutoApprove bool
}

func New(ctx context.Context, deps Deps) *Server {
	if deps.Emitter == nil {
		deps.Emitter = service.NopEmitter{}
	}
	if deps.Name == "" {
		deps.Name = "smartclass-mcp"
	}
	s := &Server{
		emitter:  deps.Emitter,
		approval: NewApprovalQueue(ctx, deps.Emitter, deps.AutoApprove),
		layout:   NewLayoutEngine(),
		builder:  deps.Builder,
		log:      logging.New("mcp"),
	}

	s.mcp = server.NewMCPServer(
		deps.Name,
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerProjectTools()
	s.registerElementTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// HTTPHandler serves the same tools over streamable HTTP, for clients that
// talk to a running builder instead of spawning one.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	s.approval.Reject(actionID)
}

// Pending lists the ids of actions waiting for the user.
func (s *Server) Pending() []string {
	return s.approval.Pending()
}

// ── Helpers ────────────────────────────────────────────────

func (s *Server) emitElementsChanged(ctx context.Context, projectID string) {
	s.emitter.Emit(ctx, EventElementsChanged, map[string]string{"projectId": projectID})
}

func (s *Server) setActive(projectID string) {
	s.mu.Lock()
	s.activeProjectID = projectID
	s.mu.Unlock()
}

// session resolves projectId from the args, falling back to the active
// project. The project must be open.
func (s *Server) session(args map[string]any) (*service.Session, error) {
	id, _ := args["projectId"].(string)
	if id == "" {
		s.mu.Lock()
		id = s.activeProjectID
		s.mu.Unlock()
	}
	if id == "" {
		return nil, fmt.Errorf("no projectId provided and no active project (use open_project first)")
	}
	return s.builder.Session(id)
}

// requestTool is a convenience for building a CallToolRequest in-process.
func requestTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}
