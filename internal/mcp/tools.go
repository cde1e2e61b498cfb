package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/mail"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

// wireTimeLayout is the timestamp format used in tool results: RFC 3339 UTC
// with millisecond precision.
const wireTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// MessageRecord is the transport-neutral form of a message.
type MessageRecord struct {
	ID        string   `json:"id"`
	Sender    string   `json:"sender"`
	Recipient string   `json:"recipient"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Priority  string   `json:"priority"`
	Tags      []string `json:"tags"`
	ReplyTo   string   `json:"reply_to,omitempty"`
	ThreadID  string   `json:"thread_id"`
	Timestamp string   `json:"timestamp"`
	Read      bool     `json:"read"`
	Archived  bool     `json:"archived"`
}

// toRecord converts a stored message to its wire form.
func toRecord(m store.Message) MessageRecord {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}

	return MessageRecord{
		ID:        m.ID,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Subject:   m.Subject,
		Body:      m.Body,
		Priority:  string(m.Priority),
		Tags:      tags,
		ReplyTo:   m.ReplyTo,
		ThreadID:  m.ThreadID,
		Timestamp: m.CreatedAt.UTC().Format(wireTimeLayout),
		Read:      m.Read,
		Archived:  m.Archived,
	}
}

// toRecords converts a message slice to wire form, never nil.
func toRecords(messages []store.Message) []MessageRecord {
	records := make([]MessageRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, toRecord(m))
	}
	return records
}

// AgentRecord is the transport-neutral form of an agent roster entry.
type AgentRecord struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	LastSeen string `json:"last_seen"`
}

// SendMailArgs are the arguments for the send_mail tool.
type SendMailArgs struct {
	// Recipient is the target agent name.
	Recipient string `json:"recipient" jsonschema:"Name of the recipient agent"`

	// Subject is the message subject line.
	Subject string `json:"subject" jsonschema:"Message subject line"`

	// Body is the message body text.
	Body string `json:"body" jsonschema:"Message body text"`

	// Priority is one of urgent, high, normal, low.
	Priority string `json:"priority,omitempty" jsonschema:"Priority: urgent, high, normal, or low,default=normal"`

	// Tags label the message for later filtering and search.
	Tags []string `json:"tags,omitempty" jsonschema:"Optional list of tags"`

	// ReplyTo threads this message under an existing one.
	ReplyTo string `json:"reply_to,omitempty" jsonschema:"Optional ID of the message being replied to"`
}

// SendMailResult is the result of the send_mail tool.
type SendMailResult struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Priority  string `json:"priority"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleSendMail(ctx context.Context, req *mcp.CallToolRequest,
	args SendMailArgs) (*mcp.CallToolResult, SendMailResult, error) {

	s.touch(ctx)

	resp, err := s.mailSvc.SendMail(ctx, mail.SendMailRequest{
		Self:      s.agentName,
		Recipient: args.Recipient,
		Subject:   args.Subject,
		Body:      args.Body,
		Priority:  args.Priority,
		Tags:      args.Tags,
		ReplyTo:   args.ReplyTo,
	})
	if err != nil {
		return nil, SendMailResult{}, shapeError(err)
	}

	summary := fmt.Sprintf("Message %s sent to %s (priority %s)",
		resp.MessageID, resp.Recipient, resp.Priority)

	return textResult(summary), SendMailResult{
		MessageID: resp.MessageID,
		ThreadID:  resp.ThreadID,
		Recipient: resp.Recipient,
		Subject:   resp.Subject,
		Priority:  string(resp.Priority),
		Timestamp: resp.CreatedAt.UTC().Format(wireTimeLayout),
	}, nil
}

// CheckMailArgs are the arguments for the check_mail tool.
type CheckMailArgs struct {
	// UnreadOnly restricts results to unread messages.
	UnreadOnly *bool `json:"unread_only,omitempty" jsonschema:"Only return unread messages,default=true"`

	// Limit bounds the number of returned messages.
	Limit int `json:"limit,omitempty" jsonschema:"Maximum messages to return (1-100),default=10"`

	// PriorityFilter restricts results to one priority.
	PriorityFilter string `json:"priority_filter,omitempty" jsonschema:"Only return messages of this priority"`

	// TagFilter restricts results to messages carrying the tag.
	TagFilter string `json:"tag_filter,omitempty" jsonschema:"Only return messages carrying this tag"`

	// DaysBack restricts results to the last N days.
	DaysBack int `json:"days_back,omitempty" jsonschema:"Only return messages from the last N days,default=7"`
}

// CheckMailResult is the result of the check_mail tool.
type CheckMailResult struct {
	Count    int             `json:"count"`
	Messages []MessageRecord `json:"messages"`
}

func (s *Server) handleCheckMail(ctx context.Context, req *mcp.CallToolRequest,
	args CheckMailArgs) (*mcp.CallToolResult, CheckMailResult, error) {

	s.touch(ctx)

	unreadOnly := true
	if args.UnreadOnly != nil {
		unreadOnly = *args.UnreadOnly
	}

	messages, err := s.mailSvc.CheckMail(ctx, mail.CheckMailRequest{
		Self:       s.agentName,
		UnreadOnly: unreadOnly,
		Limit:      args.Limit,
		Priority:   args.PriorityFilter,
		Tag:        args.TagFilter,
		DaysBack:   args.DaysBack,
	})
	if err != nil {
		return nil, CheckMailResult{}, shapeError(err)
	}

	summary := fmt.Sprintf("%d message(s) in inbox", len(messages))
	if len(messages) == 0 {
		summary = "No new mail"
	}

	return textResult(summary), CheckMailResult{
		Count:    len(messages),
		Messages: toRecords(messages),
	}, nil
}

// ReadMessageArgs are the arguments for the read_message tool.
type ReadMessageArgs struct {
	MessageID string `json:"message_id" jsonschema:"ID of the message to read"`
}

// ReadMessageResult is the result of the read_message tool.
type ReadMessageResult struct {
	Message MessageRecord `json:"message"`
}

func (s *Server) handleReadMessage(ctx context.Context,
	req *mcp.CallToolRequest, args ReadMessageArgs) (*mcp.CallToolResult,
	ReadMessageResult, error) {

	s.touch(ctx)

	msg, err := s.mailSvc.ReadMessage(ctx, s.agentName, args.MessageID)
	if err != nil {
		return nil, ReadMessageResult{}, shapeError(err)
	}

	return nil, ReadMessageResult{Message: toRecord(msg)}, nil
}

// MarkReadArgs are the arguments for the mark_read tool.
type MarkReadArgs struct {
	MessageIDs []string `json:"message_ids" jsonschema:"IDs of the messages to mark as read"`
}

// MarkReadResult is the result of the mark_read tool.
type MarkReadResult struct {
	MarkedCount int64 `json:"marked_count"`
}

func (s *Server) handleMarkRead(ctx context.Context, req *mcp.CallToolRequest,
	args MarkReadArgs) (*mcp.CallToolResult, MarkReadResult, error) {

	s.touch(ctx)

	marked, err := s.mailSvc.MarkRead(ctx, s.agentName, args.MessageIDs)
	if err != nil {
		return nil, MarkReadResult{}, shapeError(err)
	}

	return nil, MarkReadResult{MarkedCount: marked}, nil
}

// SearchMessagesArgs are the arguments for the search_messages tool.
type SearchMessagesArgs struct {
	// Query is the substring to search for.
	Query string `json:"query" jsonschema:"Substring to search for in subject, body, and tags"`

	// DaysBack restricts results to the last N days.
	DaysBack int `json:"days_back,omitempty" jsonschema:"Only search messages from the last N days (1-365),default=30"`

	// Sender restricts results to one sender.
	Sender string `json:"sender,omitempty" jsonschema:"Only return messages from this sender"`

	// Priority restricts results to one priority.
	Priority string `json:"priority,omitempty" jsonschema:"Only return messages of this priority"`

	// Limit bounds the number of returned messages.
	Limit int `json:"limit,omitempty" jsonschema:"Maximum messages to return (1-100),default=20"`
}

// SearchMessagesResult is the result of the search_messages tool.
type SearchMessagesResult struct {
	Count    int             `json:"count"`
	Messages []MessageRecord `json:"messages"`
}

func (s *Server) handleSearchMessages(ctx context.Context,
	req *mcp.CallToolRequest, args SearchMessagesArgs) (*mcp.CallToolResult,
	SearchMessagesResult, error) {

	s.touch(ctx)

	messages, err := s.mailSvc.Search(ctx, mail.SearchRequest{
		Self:     s.agentName,
		Query:    args.Query,
		Sender:   args.Sender,
		Priority: args.Priority,
		DaysBack: args.DaysBack,
		Limit:    args.Limit,
	})
	if err != nil {
		return nil, SearchMessagesResult{}, shapeError(err)
	}

	return nil, SearchMessagesResult{
		Count:    len(messages),
		Messages: toRecords(messages),
	}, nil
}

// GetThreadArgs are the arguments for the get_thread tool.
type GetThreadArgs struct {
	ThreadID string `json:"thread_id" jsonschema:"ID of the thread to fetch"`
}

// GetThreadResult is the result of the get_thread tool.
type GetThreadResult struct {
	ThreadID string          `json:"thread_id"`
	Count    int             `json:"count"`
	Messages []MessageRecord `json:"messages"`
}

func (s *Server) handleGetThread(ctx context.Context,
	req *mcp.CallToolRequest, args GetThreadArgs) (*mcp.CallToolResult,
	GetThreadResult, error) {

	s.touch(ctx)

	messages, err := s.mailSvc.GetThread(ctx, s.agentName, args.ThreadID)
	if err != nil {
		return nil, GetThreadResult{}, shapeError(err)
	}

	return nil, GetThreadResult{
		ThreadID: args.ThreadID,
		Count:    len(messages),
		Messages: toRecords(messages),
	}, nil
}

// ArchiveMessageArgs are the arguments for the archive_message tool.
type ArchiveMessageArgs struct {
	MessageID string `json:"message_id" jsonschema:"ID of the message to archive"`
}

// ArchiveMessageResult is the result of the archive_message tool.
type ArchiveMessageResult struct {
	MessageID string `json:"message_id"`
	Archived  bool   `json:"archived"`
}

func (s *Server) handleArchiveMessage(ctx context.Context,
	req *mcp.CallToolRequest, args ArchiveMessageArgs) (*mcp.CallToolResult,
	ArchiveMessageResult, error) {

	s.touch(ctx)

	err := s.mailSvc.ArchiveMessage(ctx, s.agentName, args.MessageID)
	if err != nil {
		return nil, ArchiveMessageResult{}, shapeError(err)
	}

	return nil, ArchiveMessageResult{
		MessageID: args.MessageID,
		Archived:  true,
	}, nil
}

// DeleteMessageArgs are the arguments for the delete_message tool.
type DeleteMessageArgs struct {
	MessageID string `json:"message_id" jsonschema:"ID of the message to delete"`
}

// DeleteMessageResult is the result of the delete_message tool.
type DeleteMessageResult struct {
	MessageID string `json:"message_id"`
	Deleted   bool   `json:"deleted"`
}

func (s *Server) handleDeleteMessage(ctx context.Context,
	req *mcp.CallToolRequest, args DeleteMessageArgs) (*mcp.CallToolResult,
	DeleteMessageResult, error) {

	s.touch(ctx)

	err := s.mailSvc.DeleteMessage(ctx, s.agentName, args.MessageID)
	if err != nil {
		return nil, DeleteMessageResult{}, shapeError(err)
	}

	return nil, DeleteMessageResult{
		MessageID: args.MessageID,
		Deleted:   true,
	}, nil
}

// ListAgentsArgs are the arguments for the list_agents tool.
type ListAgentsArgs struct {
	ActiveOnly bool `json:"active_only,omitempty" jsonschema:"Only return agents seen in the last hour"`
}

// ListAgentsResult is the result of the list_agents tool.
type ListAgentsResult struct {
	Count  int           `json:"count"`
	Agents []AgentRecord `json:"agents"`
}

func (s *Server) handleListAgents(ctx context.Context,
	req *mcp.CallToolRequest, args ListAgentsArgs) (*mcp.CallToolResult,
	ListAgentsResult, error) {

	s.touch(ctx)

	agents, err := s.mailSvc.ListAgents(ctx, args.ActiveOnly)
	if err != nil {
		return nil, ListAgentsResult{}, shapeError(err)
	}

	records := make([]AgentRecord, 0, len(agents))
	for _, a := range agents {
		records = append(records, AgentRecord{
			Name:     a.Name,
			Status:   string(a.Status),
			LastSeen: a.LastSeen.UTC().Format(wireTimeLayout),
		})
	}

	return nil, ListAgentsResult{
		Count:  len(records),
		Agents: records,
	}, nil
}

// GetMailboxStatsArgs are the arguments for the get_mailbox_stats tool.
type GetMailboxStatsArgs struct{}

// GetMailboxStatsResult is the result of the get_mailbox_stats tool.
type GetMailboxStatsResult struct {
	Agent           string `json:"agent"`
	TotalInbox      int64  `json:"total_inbox"`
	UnreadInbox     int64  `json:"unread_inbox"`
	UnreadUrgent    int64  `json:"unread_urgent"`
	SentTotal       int64  `json:"sent_total"`
	RecentActivity  int64  `json:"recent_activity"`
	AgentsTotal     int64  `json:"agents_total"`
	DistinctThreads int64  `json:"distinct_threads"`
}

func (s *Server) handleGetMailboxStats(ctx context.Context,
	req *mcp.CallToolRequest, args GetMailboxStatsArgs) (*mcp.CallToolResult,
	GetMailboxStatsResult, error) {

	s.touch(ctx)

	stats, err := s.mailSvc.GetStats(ctx, s.agentName)
	if err != nil {
		return nil, GetMailboxStatsResult{}, shapeError(err)
	}

	summary := fmt.Sprintf("%d unread of %d inbox messages",
		stats.UnreadInbox, stats.TotalInbox)

	return textResult(summary), GetMailboxStatsResult{
		Agent:           s.agentName,
		TotalInbox:      stats.TotalInbox,
		UnreadInbox:     stats.UnreadInbox,
		UnreadUrgent:    stats.UnreadUrgent,
		SentTotal:       stats.SentTotal,
		RecentActivity:  stats.RecentActivity,
		AgentsTotal:     stats.AgentsTotal,
		DistinctThreads: stats.DistinctThreads,
	}, nil
}
