package mail

import (
	"time"

	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

// MailRequest is the union type for all mailbox service requests. The Self
// field on each request names the authenticated caller; it is always filled
// in by the server from its resolved identity, never from a payload.
type MailRequest interface {
	isMailRequest()
}

// Ensure all request types implement MailRequest.
func (SendMailRequest) isMailRequest()       {}
func (CheckMailRequest) isMailRequest()      {}
func (ReadMessageRequest) isMailRequest()    {}
func (MarkReadRequest) isMailRequest()       {}
func (SearchRequest) isMailRequest()         {}
func (GetThreadRequest) isMailRequest()      {}
func (ArchiveMessageRequest) isMailRequest() {}
func (DeleteMessageRequest) isMailRequest()  {}
func (ListAgentsRequest) isMailRequest()     {}
func (GetStatsRequest) isMailRequest()       {}

// MailResponse is the union type for all mailbox service responses.
type MailResponse interface {
	isMailResponse()
}

// Ensure all response types implement MailResponse.
func (SendMailResponse) isMailResponse()       {}
func (CheckMailResponse) isMailResponse()      {}
func (ReadMessageResponse) isMailResponse()    {}
func (MarkReadResponse) isMailResponse()       {}
func (SearchResponse) isMailResponse()         {}
func (GetThreadResponse) isMailResponse()      {}
func (ArchiveMessageResponse) isMailResponse() {}
func (DeleteMessageResponse) isMailResponse()  {}
func (ListAgentsResponse) isMailResponse()     {}
func (GetStatsResponse) isMailResponse()       {}

// SendMailRequest creates and delivers a new message.
type SendMailRequest struct {
	Self      string
	Recipient string
	Subject   string
	Body      string
	Priority  string
	Tags      []string
	ReplyTo   string
}

// SendMailResponse reports the allocated identifiers of a sent message.
type SendMailResponse struct {
	MessageID string
	ThreadID  string
	Recipient string
	Subject   string
	Priority  store.Priority
	CreatedAt time.Time
	Error     error
}

// CheckMailRequest polls the caller's inbox.
type CheckMailRequest struct {
	Self string

	// UnreadOnly restricts results to unread messages.
	UnreadOnly bool

	// Limit bounds the result size, 1 to 100. Zero selects the default
	// of 10.
	Limit int

	// Priority, when non-empty, restricts results to that priority.
	Priority string

	// Tag, when non-empty, restricts results to messages carrying the
	// tag.
	Tag string

	// DaysBack bounds results to the last N days. Zero selects the
	// default of 7.
	DaysBack int
}

// CheckMailResponse carries the inbox slice.
type CheckMailResponse struct {
	Messages []store.Message
	Error    error
}

// ReadMessageRequest fetches one of the caller's messages and marks it read.
type ReadMessageRequest struct {
	Self      string
	MessageID string
}

// ReadMessageResponse carries the message after the read transition.
type ReadMessageResponse struct {
	Message store.Message
	Error   error
}

// MarkReadRequest marks a batch of the caller's messages as read.
type MarkReadRequest struct {
	Self       string
	MessageIDs []string
}

// MarkReadResponse reports how many messages actually transitioned.
type MarkReadResponse struct {
	Marked int64
	Error  error
}

// SearchRequest searches the caller's message history.
type SearchRequest struct {
	Self string

	// Query is the case-insensitive substring to match against subject,
	// body, and tags. Required.
	Query string

	// Sender, when non-empty, restricts results to that sender.
	Sender string

	// Priority, when non-empty, restricts results to that priority.
	Priority string

	// DaysBack bounds results to the last N days, 1 to 365. Zero selects
	// the default of 30.
	DaysBack int

	// Limit bounds the result size, 1 to 100. Zero selects the default
	// of 20.
	Limit int
}

// SearchResponse carries the matching messages, newest first.
type SearchResponse struct {
	Messages []store.Message
	Error    error
}

// GetThreadRequest fetches a conversation thread.
type GetThreadRequest struct {
	Self     string
	ThreadID string
}

// GetThreadResponse carries the visible thread messages, oldest first.
type GetThreadResponse struct {
	Messages []store.Message
	Error    error
}

// ArchiveMessageRequest archives one of the caller's messages.
type ArchiveMessageRequest struct {
	Self      string
	MessageID string
}

// ArchiveMessageResponse reports the outcome of an archive.
type ArchiveMessageResponse struct {
	Error error
}

// DeleteMessageRequest permanently deletes one of the caller's messages.
type DeleteMessageRequest struct {
	Self      string
	MessageID string
}

// DeleteMessageResponse reports the outcome of a delete.
type DeleteMessageResponse struct {
	Error error
}

// ListAgentsRequest enumerates registered agents.
type ListAgentsRequest struct {
	// ActiveOnly restricts results to agents seen in the last hour.
	ActiveOnly bool
}

// ListAgentsResponse carries the agent roster, most recently seen first.
type ListAgentsResponse struct {
	Agents []store.Agent
	Error  error
}

// GetStatsRequest fetches the caller's mailbox counters.
type GetStatsRequest struct {
	Self string
}

// GetStatsResponse carries the mailbox counters.
type GetStatsResponse struct {
	Stats store.MailboxStats
	Error error
}
