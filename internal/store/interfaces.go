package store

import (
	"context"
	"errors"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrNotFound is returned when a requested row does not exist or is not
// visible to the viewer. The two cases are deliberately indistinguishable so
// the store cannot be used as an existence oracle.
var ErrNotFound = errors.New("not found")

// Storage is the persistence contract for the mailbox. All methods are
// synchronous and safe for concurrent use; single-row reads and writes are
// linearizable through the single-writer SQLite connection.
type Storage interface {
	// PutMessage durably stores a new message. The message must be fully
	// visible to readers once PutMessage returns.
	PutMessage(ctx context.Context, m Message) error

	// GetMessage returns the message with the given id if the viewer is
	// its sender or recipient, and ErrNotFound otherwise.
	GetMessage(ctx context.Context, id, viewer string) (Message, error)

	// GetMessageAny returns the message with the given id regardless of
	// viewer. Callers use this to separate "absent" from "not visible";
	// it must never be exposed through the tool surface.
	GetMessageAny(ctx context.Context, id string) (Message, error)

	// ListInbox returns non-archived messages addressed to recipient,
	// ordered by (priority rank, created_at DESC, id ASC).
	ListInbox(ctx context.Context, recipient string,
		f InboxFilter) ([]Message, error)

	// Search returns non-archived messages involving participant (as
	// sender or recipient) whose subject, body, or any tag contains the
	// query substring, case-insensitively. Ordered by created_at DESC.
	Search(ctx context.Context, participant, query string,
		f SearchFilter) ([]Message, error)

	// GetThread returns all messages in a thread visible to participant,
	// ordered by created_at ASC. Returns ErrNotFound if the visible set
	// is empty.
	GetThread(ctx context.Context, threadID,
		participant string) ([]Message, error)

	// MarkRead transitions the given messages to read where recipient
	// matches, returning the number of rows actually transitioned.
	MarkRead(ctx context.Context, ids []string,
		recipient string) (int64, error)

	// SetArchived archives the message if recipient matches. Returns the
	// number of matched rows (0 or 1); archiving twice still matches.
	SetArchived(ctx context.Context, id, recipient string) (int64, error)

	// Delete permanently removes the message if recipient matches,
	// returning the number of deleted rows (0 or 1).
	Delete(ctx context.Context, id, recipient string) (int64, error)

	// UpsertAgent inserts or replaces an agent presence record.
	UpsertAgent(ctx context.Context, a Agent) error

	// FindAgent looks up an agent by (name, machine_id).
	FindAgent(ctx context.Context, name,
		machineID string) (fn.Option[Agent], error)

	// AgentExists reports whether any agent with the given name is
	// registered on this host.
	AgentExists(ctx context.Context, name string) (bool, error)

	// TouchAgent updates last_seen (and the opportunistic status column)
	// for an agent.
	TouchAgent(ctx context.Context, name, machineID string,
		seen time.Time) error

	// MarkAgentOffline records a graceful shutdown for an agent.
	MarkAgentOffline(ctx context.Context, name, machineID string,
		seen time.Time) error

	// ListAgents returns agents ordered by last_seen DESC. When
	// activeWithin is non-zero, only agents seen within that window are
	// returned. Status is derived from last_seen at read time.
	ListAgents(ctx context.Context,
		activeWithin time.Duration) ([]Agent, error)

	// Stats returns mailbox counters for the given agent.
	Stats(ctx context.Context, agentName string) (MailboxStats, error)

	// Cleanup purges archived messages older than archivedOlderThan and
	// agent rows not seen for agentIdleFor.
	Cleanup(ctx context.Context, archivedOlderThan,
		agentIdleFor time.Duration) (CleanupResult, error)

	// Close releases the underlying database handle.
	Close() error
}
