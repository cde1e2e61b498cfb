package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

const (
	// DefaultCheckLimit is the inbox page size when none is requested.
	DefaultCheckLimit = 10

	// DefaultCheckDaysBack is the inbox recency window in days.
	DefaultCheckDaysBack = 7

	// DefaultSearchLimit is the search page size when none is requested.
	DefaultSearchLimit = 20

	// DefaultSearchDaysBack is the search recency window in days.
	DefaultSearchDaysBack = 30

	// MaxLimit caps the page size of inbox and search queries.
	MaxLimit = 100

	// MaxDaysBack caps the recency window of search queries.
	MaxDaysBack = 365

	// ActiveAgentWindow is the recency window for active-only agent
	// listings.
	ActiveAgentWindow = time.Hour
)

// Service is the mailbox kernel. All operations take the caller's name on
// the request and enforce recipient-only mutation against the store.
type Service struct {
	store store.Storage
	log   *slog.Logger
}

// NewService creates a new mailbox service over the given store.
func NewService(storage store.Storage, log *slog.Logger) *Service {
	return &Service{
		store: storage,
		log:   log,
	}
}

// Receive dispatches a request to its type-specific handler. Responses carry
// domain errors in their Error field; the result is only an error for request
// types the service does not know.
func (s *Service) Receive(ctx context.Context,
	msg MailRequest) fn.Result[MailResponse] {

	switch m := msg.(type) {
	case SendMailRequest:
		return fn.Ok[MailResponse](s.handleSendMail(ctx, m))

	case CheckMailRequest:
		return fn.Ok[MailResponse](s.handleCheckMail(ctx, m))

	case ReadMessageRequest:
		return fn.Ok[MailResponse](s.handleReadMessage(ctx, m))

	case MarkReadRequest:
		return fn.Ok[MailResponse](s.handleMarkRead(ctx, m))

	case SearchRequest:
		return fn.Ok[MailResponse](s.handleSearch(ctx, m))

	case GetThreadRequest:
		return fn.Ok[MailResponse](s.handleGetThread(ctx, m))

	case ArchiveMessageRequest:
		return fn.Ok[MailResponse](s.handleArchive(ctx, m))

	case DeleteMessageRequest:
		return fn.Ok[MailResponse](s.handleDelete(ctx, m))

	case ListAgentsRequest:
		return fn.Ok[MailResponse](s.handleListAgents(ctx, m))

	case GetStatsRequest:
		return fn.Ok[MailResponse](s.handleGetStats(ctx, m))

	default:
		return fn.Err[MailResponse](fmt.Errorf("%w: %T",
			ErrUnknownRequestType, msg))
	}
}

// storageErr collapses a store error into the transient storage failure
// kind. The detail string stays short; message bodies never pass through it.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}

// invalidArg builds an invalid-argument error naming the offending field.
func invalidArg(field, detail string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidArgument, field, detail)
}

// normalizeTags trims and dedupes a tag list, preserving first-seen order.
// An empty tag after trimming is a validation failure.
func normalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, invalidArg("tags", "must not contain "+
				"empty strings")
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	return out, nil
}

// boundedLimit validates a page size against [1, MaxLimit], substituting the
// default for zero.
func boundedLimit(limit, def int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 1 || limit > MaxLimit {
		return 0, invalidArg("limit",
			fmt.Sprintf("must be between 1 and %d", MaxLimit))
	}
	return limit, nil
}

// handleSendMail validates, threads, and stores a new message.
func (s *Service) handleSendMail(ctx context.Context,
	req SendMailRequest) SendMailResponse {

	fail := func(err error) SendMailResponse {
		return SendMailResponse{Error: err}
	}

	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return fail(invalidArg("recipient", "is required"))
	}
	if strings.TrimSpace(req.Subject) == "" {
		return fail(invalidArg("subject", "is required"))
	}
	if req.Body == "" {
		return fail(invalidArg("body", "is required"))
	}

	priority, err := store.ParsePriority(req.Priority)
	if err != nil {
		return fail(invalidArg("priority", err.Error()))
	}

	tags, err := normalizeTags(req.Tags)
	if err != nil {
		return fail(err)
	}

	exists, err := s.store.AgentExists(ctx, recipient)
	if err != nil {
		return fail(storageErr(err))
	}
	if !exists {
		return fail(fmt.Errorf("%w: %q", ErrRecipientNotFound,
			recipient))
	}

	// Replies inherit the referenced message's thread; fresh sends open
	// a new one. The reply target must be visible to the sender, but the
	// lookup itself is unrestricted so an invisible target yields a
	// distinct authorization error rather than a spurious not-found.
	threadID := uuid.NewString()
	if req.ReplyTo != "" {
		target, err := s.store.GetMessageAny(ctx, req.ReplyTo)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return fail(fmt.Errorf("%w: %q",
				ErrReplyTargetNotFound, req.ReplyTo))
		case err != nil:
			return fail(storageErr(err))
		}

		if target.Sender != req.Self && target.Recipient != req.Self {
			return fail(fmt.Errorf("%w: reply target %q",
				ErrNotAuthorized, req.ReplyTo))
		}
		threadID = target.ThreadID
	}

	msg := store.Message{
		ID:        uuid.NewString(),
		Sender:    req.Self,
		Recipient: recipient,
		Subject:   req.Subject,
		Body:      req.Body,
		Priority:  priority,
		Tags:      tags,
		ReplyTo:   req.ReplyTo,
		ThreadID:  threadID,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := s.store.PutMessage(ctx, msg); err != nil {
		return fail(storageErr(err))
	}

	s.log.Info("message sent",
		"id", msg.ID,
		"sender", msg.Sender,
		"recipient", msg.Recipient,
		"priority", msg.Priority,
	)

	return SendMailResponse{
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Priority:  msg.Priority,
		CreatedAt: msg.CreatedAt,
	}
}

// handleCheckMail pages through the caller's inbox.
func (s *Service) handleCheckMail(ctx context.Context,
	req CheckMailRequest) CheckMailResponse {

	fail := func(err error) CheckMailResponse {
		return CheckMailResponse{Error: err}
	}

	limit, err := boundedLimit(req.Limit, DefaultCheckLimit)
	if err != nil {
		return fail(err)
	}

	daysBack := req.DaysBack
	switch {
	case daysBack == 0:
		daysBack = DefaultCheckDaysBack
	case daysBack < 0:
		return fail(invalidArg("days_back", "must be positive"))
	}

	var priority store.Priority
	if req.Priority != "" {
		priority, err = store.ParsePriority(req.Priority)
		if err != nil {
			return fail(invalidArg("priority_filter", err.Error()))
		}
	}

	messages, err := s.store.ListInbox(ctx, req.Self, store.InboxFilter{
		UnreadOnly: req.UnreadOnly,
		Priority:   priority,
		Tag:        req.Tag,
		DaysBack:   daysBack,
		Limit:      limit,
	})
	if err != nil {
		return fail(storageErr(err))
	}

	return CheckMailResponse{Messages: messages}
}

// handleReadMessage fetches a message addressed to the caller and marks it
// read. Absent ids and messages addressed to someone else are
// indistinguishable.
func (s *Service) handleReadMessage(ctx context.Context,
	req ReadMessageRequest) ReadMessageResponse {

	fail := func(err error) ReadMessageResponse {
		return ReadMessageResponse{Error: err}
	}

	if req.MessageID == "" {
		return fail(invalidArg("message_id", "is required"))
	}

	msg, err := s.store.GetMessage(ctx, req.MessageID, req.Self)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fail(ErrNotFound)
	case err != nil:
		return fail(storageErr(err))
	}

	if msg.Recipient != req.Self {
		return fail(ErrNotFound)
	}

	if !msg.Read {
		_, err := s.store.MarkRead(ctx, []string{msg.ID}, req.Self)
		if err != nil {
			return fail(storageErr(err))
		}
		msg.Read = true
	}

	return ReadMessageResponse{Message: msg}
}

// handleMarkRead marks a batch of the caller's messages as read. Partial
// success is legal; the response counts the actual transitions.
func (s *Service) handleMarkRead(ctx context.Context,
	req MarkReadRequest) MarkReadResponse {

	fail := func(err error) MarkReadResponse {
		return MarkReadResponse{Error: err}
	}

	if len(req.MessageIDs) == 0 {
		return fail(invalidArg("message_ids", "must be non-empty"))
	}
	for _, id := range req.MessageIDs {
		if id == "" {
			return fail(invalidArg("message_ids",
				"must not contain empty strings"))
		}
	}

	marked, err := s.store.MarkRead(ctx, req.MessageIDs, req.Self)
	if err != nil {
		return fail(storageErr(err))
	}

	return MarkReadResponse{Marked: marked}
}

// handleSearch searches the caller's message history.
func (s *Service) handleSearch(ctx context.Context,
	req SearchRequest) SearchResponse {

	fail := func(err error) SearchResponse {
		return SearchResponse{Error: err}
	}

	if strings.TrimSpace(req.Query) == "" {
		return fail(invalidArg("query", "is required"))
	}

	limit, err := boundedLimit(req.Limit, DefaultSearchLimit)
	if err != nil {
		return fail(err)
	}

	daysBack := req.DaysBack
	switch {
	case daysBack == 0:
		daysBack = DefaultSearchDaysBack
	case daysBack < 1 || daysBack > MaxDaysBack:
		return fail(invalidArg("days_back",
			fmt.Sprintf("must be between 1 and %d", MaxDaysBack)))
	}

	var priority store.Priority
	if req.Priority != "" {
		priority, err = store.ParsePriority(req.Priority)
		if err != nil {
			return fail(invalidArg("priority", err.Error()))
		}
	}

	messages, err := s.store.Search(ctx, req.Self, req.Query,
		store.SearchFilter{
			Sender:   req.Sender,
			Priority: priority,
			DaysBack: daysBack,
			Limit:    limit,
		},
	)
	if err != nil {
		return fail(storageErr(err))
	}

	return SearchResponse{Messages: messages}
}

// handleGetThread reconstructs a conversation visible to the caller.
func (s *Service) handleGetThread(ctx context.Context,
	req GetThreadRequest) GetThreadResponse {

	fail := func(err error) GetThreadResponse {
		return GetThreadResponse{Error: err}
	}

	if req.ThreadID == "" {
		return fail(invalidArg("thread_id", "is required"))
	}

	messages, err := s.store.GetThread(ctx, req.ThreadID, req.Self)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fail(ErrNotFound)
	case err != nil:
		return fail(storageErr(err))
	}

	return GetThreadResponse{Messages: messages}
}

// handleArchive archives one of the caller's messages. Idempotent.
func (s *Service) handleArchive(ctx context.Context,
	req ArchiveMessageRequest) ArchiveMessageResponse {

	if req.MessageID == "" {
		return ArchiveMessageResponse{
			Error: invalidArg("message_id", "is required"),
		}
	}

	n, err := s.store.SetArchived(ctx, req.MessageID, req.Self)
	switch {
	case err != nil:
		return ArchiveMessageResponse{Error: storageErr(err)}
	case n == 0:
		return ArchiveMessageResponse{Error: ErrNotFound}
	}

	return ArchiveMessageResponse{}
}

// handleDelete permanently removes one of the caller's messages.
func (s *Service) handleDelete(ctx context.Context,
	req DeleteMessageRequest) DeleteMessageResponse {

	if req.MessageID == "" {
		return DeleteMessageResponse{
			Error: invalidArg("message_id", "is required"),
		}
	}

	n, err := s.store.Delete(ctx, req.MessageID, req.Self)
	switch {
	case err != nil:
		return DeleteMessageResponse{Error: storageErr(err)}
	case n == 0:
		return DeleteMessageResponse{Error: ErrNotFound}
	}

	return DeleteMessageResponse{}
}

// handleListAgents enumerates registered agents, most recently seen first.
func (s *Service) handleListAgents(ctx context.Context,
	req ListAgentsRequest) ListAgentsResponse {

	var window time.Duration
	if req.ActiveOnly {
		window = ActiveAgentWindow
	}

	agents, err := s.store.ListAgents(ctx, window)
	if err != nil {
		return ListAgentsResponse{Error: storageErr(err)}
	}

	return ListAgentsResponse{Agents: agents}
}

// handleGetStats fetches the caller's mailbox counters.
func (s *Service) handleGetStats(ctx context.Context,
	req GetStatsRequest) GetStatsResponse {

	stats, err := s.store.Stats(ctx, req.Self)
	if err != nil {
		return GetStatsResponse{Error: storageErr(err)}
	}

	return GetStatsResponse{Stats: stats}
}

// Direct methods for synchronous callers (the tool dispatcher and the CLI).

// SendMail sends a message synchronously.
func (s *Service) SendMail(ctx context.Context,
	req SendMailRequest) (SendMailResponse, error) {

	resp := s.handleSendMail(ctx, req)
	return resp, resp.Error
}

// CheckMail pages through an inbox synchronously.
func (s *Service) CheckMail(ctx context.Context,
	req CheckMailRequest) ([]store.Message, error) {

	resp := s.handleCheckMail(ctx, req)
	return resp.Messages, resp.Error
}

// ReadMessage fetches and marks a message read synchronously.
func (s *Service) ReadMessage(ctx context.Context, self,
	messageID string) (store.Message, error) {

	resp := s.handleReadMessage(ctx, ReadMessageRequest{
		Self:      self,
		MessageID: messageID,
	})
	return resp.Message, resp.Error
}

// MarkRead marks a batch of messages read synchronously.
func (s *Service) MarkRead(ctx context.Context, self string,
	messageIDs []string) (int64, error) {

	resp := s.handleMarkRead(ctx, MarkReadRequest{
		Self:       self,
		MessageIDs: messageIDs,
	})
	return resp.Marked, resp.Error
}

// Search searches message history synchronously.
func (s *Service) Search(ctx context.Context,
	req SearchRequest) ([]store.Message, error) {

	resp := s.handleSearch(ctx, req)
	return resp.Messages, resp.Error
}

// GetThread reconstructs a conversation synchronously.
func (s *Service) GetThread(ctx context.Context, self,
	threadID string) ([]store.Message, error) {

	resp := s.handleGetThread(ctx, GetThreadRequest{
		Self:     self,
		ThreadID: threadID,
	})
	return resp.Messages, resp.Error
}

// ArchiveMessage archives a message synchronously.
func (s *Service) ArchiveMessage(ctx context.Context, self,
	messageID string) error {

	resp := s.handleArchive(ctx, ArchiveMessageRequest{
		Self:      self,
		MessageID: messageID,
	})
	return resp.Error
}

// DeleteMessage permanently removes a message synchronously.
func (s *Service) DeleteMessage(ctx context.Context, self,
	messageID string) error {

	resp := s.handleDelete(ctx, DeleteMessageRequest{
		Self:      self,
		MessageID: messageID,
	})
	return resp.Error
}

// ListAgents enumerates registered agents synchronously.
func (s *Service) ListAgents(ctx context.Context,
	activeOnly bool) ([]store.Agent, error) {

	resp := s.handleListAgents(ctx, ListAgentsRequest{
		ActiveOnly: activeOnly,
	})
	return resp.Agents, resp.Error
}

// GetStats fetches mailbox counters synchronously.
func (s *Service) GetStats(ctx context.Context,
	self string) (store.MailboxStats, error) {

	resp := s.handleGetStats(ctx, GetStatsRequest{Self: self})
	return resp.Stats, resp.Error
}
