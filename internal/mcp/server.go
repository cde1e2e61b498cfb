package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/mail"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

// ServerName and ServerVersion identify this MCP server implementation.
const (
	ServerName    = "ai-mail-mcp"
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the mailbox kernel and the resolved
// caller identity. The caller name is fixed at startup; tool payloads can
// never override it.
type Server struct {
	server  *mcp.Server
	storage store.Storage
	mailSvc *mail.Service
	log     *slog.Logger

	agentName string
	machineID string
}

// Config holds the dependencies for the MCP server.
type Config struct {
	// Storage is the mailbox store.
	Storage store.Storage

	// Service is the mailbox kernel.
	Service *mail.Service

	// AgentName is the resolved, collision-free name of this agent.
	AgentName string

	// MachineID is the host identifier this agent registered under.
	MachineID string

	// Log receives structured server logs. Message bodies are never
	// logged.
	Log *slog.Logger
}

// NewServer creates a new MCP server with all ten mailbox tools registered.
func NewServer(cfg Config) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	s := &Server{
		server:    mcpServer,
		storage:   cfg.Storage,
		mailSvc:   cfg.Service,
		log:       cfg.Log,
		agentName: cfg.AgentName,
		machineID: cfg.MachineID,
	}

	s.registerTools()

	return s
}

// Run serves MCP requests on the given transport until the context ends.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// registerTools registers the mailbox tool surface.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "send_mail",
		Description: "Send a message to another agent on this " +
			"machine, with optional priority, tags, and reply " +
			"threading",
	}, s.handleSendMail)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "check_mail",
		Description: "Check your inbox for messages, newest and " +
			"most urgent first",
	}, s.handleCheckMail)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "read_message",
		Description: "Read a specific message and mark it as " +
			"read",
	}, s.handleReadMessage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "mark_read",
		Description: "Mark a batch of messages as read",
	}, s.handleMarkRead)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search_messages",
		Description: "Search your message history by substring " +
			"across subject, body, and tags",
	}, s.handleSearchMessages)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "get_thread",
		Description: "Get all messages in a conversation thread " +
			"in chronological order",
	}, s.handleGetThread)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "archive_message",
		Description: "Archive a message from your inbox",
	}, s.handleArchiveMessage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_message",
		Description: "Permanently delete a message from your inbox",
	}, s.handleDeleteMessage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "list_agents",
		Description: "List agents registered on this machine with " +
			"their presence status",
	}, s.handleListAgents)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_mailbox_stats",
		Description: "Get mailbox statistics for your agent",
	}, s.handleGetMailboxStats)
}

// touch refreshes this agent's last_seen on a tool call. Best effort; the
// heartbeat covers any miss.
func (s *Server) touch(ctx context.Context) {
	err := s.storage.TouchAgent(
		ctx, s.agentName, s.machineID, time.Now().UTC(),
	)
	if err != nil {
		s.log.Warn("presence touch failed",
			"agent", s.agentName, "err", err)
	}
}

// shapeError maps kernel errors onto stable kind-prefixed messages. Raw
// storage errors never cross this boundary verbatim.
func shapeError(err error) error {
	switch {
	case errors.Is(err, mail.ErrInvalidArgument):
		return fmt.Errorf("invalid_argument: %v", err)

	case errors.Is(err, mail.ErrRecipientNotFound):
		return fmt.Errorf("recipient_not_found: %v", err)

	case errors.Is(err, mail.ErrReplyTargetNotFound):
		return fmt.Errorf("reply_target_not_found: %v", err)

	case errors.Is(err, mail.ErrNotAuthorized):
		return fmt.Errorf("not_authorized: %v", err)

	case errors.Is(err, mail.ErrNotFound):
		return errors.New("not_found: message or thread not found")

	case errors.Is(err, mail.ErrStorageFailure):
		return errors.New("storage_failure: operation failed, retry " +
			"may succeed")

	default:
		return fmt.Errorf("internal: %v", err)
	}
}

// textResult builds a tool result with a human-readable summary alongside
// the structured payload.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
