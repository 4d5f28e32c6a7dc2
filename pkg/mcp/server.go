// Package mcp exposes the progress tracker as MCP tools.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wisarudtecha/CMS-sub002/internal/payload"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// ProgressServerDeps holds the dependencies for creating a ProgressServer.
type ProgressServerDeps struct {
	Tracker   *tracker.Tracker
	Decoder   *payload.Decoder
	Logger    *slog.Logger
}

// ProgressServer wraps an MCP server with the progress tool handlers.
type ProgressServer struct {
	tracker   *tracker.Tracker
	decoder   *payload.Decoder
	logger    *slog.Logger
	watches   *WatchRegistry
	mcpServer *server.MCPServer
}

// NewProgressServer creates a new ProgressServer with every tool registered.
func NewProgressServer(deps ProgressServerDeps) *ProgressServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &ProgressServer{
		tracker:   deps.Tracker,
		decoder:   deps.Decoder,
		logger:    logger,
		watches:   NewWatchRegistry(),
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.watches.Remove(session.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		"sopprogress",
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions("SOP progress tracker. Use sop.progress to resolve an inline SOP payload, case.progress to read a stored case, case.open and case.advance to move cases through their workflow, sop.validate to check a payload, sop.diagram to draw a workflow and case.watch to receive case events as notifications."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *ProgressServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *ProgressServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Notifier returns a CaseNotifier that pushes hub events to watching sessions.
func (s *ProgressServer) Notifier() *CaseNotifier {
	return NewCaseNotifier(s.mcpServer, s.watches, s.logger)
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *ProgressServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: sopProgressTool(), Handler: s.handleSOPProgress},
		{Tool: caseProgressTool(), Handler: s.handleCaseProgress},
		{Tool: sopValidateTool(), Handler: s.handleSOPValidate},
		{Tool: caseAdvanceTool(), Handler: s.handleCaseAdvance},
		{Tool: caseOpenTool(), Handler: s.handleCaseOpen},
		{Tool: caseHistoryTool(), Handler: s.handleCaseHistory},
		{Tool: workflowDefineTool(), Handler: s.handleWorkflowDefine},
		{Tool: sopDiagramTool(), Handler: s.handleSOPDiagram},
		{Tool: labelSetTool(), Handler: s.handleLabelSet},
		{Tool: delaySetTool(), Handler: s.handleDelaySet},
		{Tool: caseWatchTool(), Handler: s.handleCaseWatch},
	}
}

// --- Tool definitions ---

func sopProgressTool() mcp.Tool {
	return mcp.NewTool("sop.progress",
		mcp.WithDescription("Resolve the progress steps of an inline SOP payload"),
		mcp.WithObject("payload", mcp.Required(), mcp.Description("SOP case payload: sop sections, currentStage, slaTimelines")),
		mcp.WithString("language", mcp.Description("Title language (default: configured language)")),
	)
}

func caseProgressTool() mcp.Tool {
	return mcp.NewTool("case.progress",
		mcp.WithDescription("Resolve the progress steps of a stored case"),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("ID of the case")),
		mcp.WithString("language", mcp.Description("Title language (default: configured language)")),
	)
}

func sopValidateTool() mcp.Tool {
	return mcp.NewTool("sop.validate",
		mcp.WithDescription("Validate an SOP payload and report errors and warnings"),
		mcp.WithObject("payload", mcp.Required(), mcp.Description("SOP payload to validate")),
	)
}

func caseAdvanceTool() mcp.Tool {
	return mcp.NewTool("case.advance",
		mcp.WithDescription("Move a case to another node of its workflow"),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("ID of the case")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Target node ID")),
		mcp.WithString("owner_id", mcp.Description("Officer or unit that owns the new stage")),
		mcp.WithNumber("duration_seconds", mcp.Description("Seconds spent on the previous stage")),
	)
}

func caseOpenTool() mcp.Tool {
	return mcp.NewTool("case.open",
		mcp.WithDescription("Open a case on a registered workflow"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow")),
		mcp.WithNumber("version", mcp.Description("Workflow version (default: latest)")),
	)
}

func caseHistoryTool() mcp.Tool {
	return mcp.NewTool("case.history",
		mcp.WithDescription("List the recorded events of a case"),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("ID of the case")),
	)
}

func workflowDefineTool() mcp.Tool {
	return mcp.NewTool("workflow.define",
		mcp.WithDescription("Register a new version of an SOP workflow"),
		mcp.WithObject("payload", mcp.Required(), mcp.Description("Payload whose sop sections hold the workflow graph")),
		mcp.WithString("workflow_id", mcp.Description("Workflow ID (default: new ID)")),
		mcp.WithString("name", mcp.Description("Workflow name")),
	)
}

func sopDiagramTool() mcp.Tool {
	return mcp.NewTool("sop.diagram",
		mcp.WithDescription("Draw a workflow with its progress. Returns Mermaid syntax, ASCII art or a PNG image"),
		mcp.WithString("case_id", mcp.Description("Case to draw")),
		mcp.WithObject("payload", mcp.Description("Inline SOP payload to draw when no case_id is given")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("mermaid", "ascii", "image"),
			mcp.Description("Output format"),
		),
		mcp.WithString("language", mcp.Description("Title language")),
	)
}

func labelSetTool() mcp.Tool {
	return mcp.NewTool("label.set",
		mcp.WithDescription("Set the localized title of a case status"),
		mcp.WithString("status_id", mcp.Required(), mcp.Description("Status ID")),
		mcp.WithString("language", mcp.Required(), mcp.Description("Language code")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title shown for the status")),
	)
}

func delaySetTool() mcp.Tool {
	return mcp.NewTool("delay.set",
		mcp.WithDescription("Mark or unmark a status as a delay status"),
		mcp.WithString("status_id", mcp.Required(), mcp.Description("Status ID")),
		mcp.WithBoolean("delay", mcp.Required(), mcp.Description("Whether the status means the case is waiting")),
	)
}

func caseWatchTool() mcp.Tool {
	return mcp.NewTool("case.watch",
		mcp.WithDescription("Receive the events of a case as notifications on this session"),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("ID of the case")),
		mcp.WithBoolean("stop", mcp.Description("Stop watching instead")),
	)
}
