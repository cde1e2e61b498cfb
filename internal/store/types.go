package store

import (
	"fmt"
	"time"
)

// Priority is the delivery priority of a message. Priorities form a total
// order: urgent > high > normal > low.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// ParsePriority validates a priority string. The empty string parses to
// PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case "":
		return PriorityNormal, nil
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return Priority(s), nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Rank returns the sort rank of the priority, lower ranks sorting first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

// Message is a mail message. The envelope fields are write-once; only Read
// and Archived may change after creation, and both only false to true.
type Message struct {
	// ID is the globally unique message identifier (UUID v4).
	ID string

	// Sender is the agent name that created the message.
	Sender string

	// Recipient is the agent name the message is addressed to. Only the
	// recipient may mutate or delete the message.
	Recipient string

	// Subject is the message subject line.
	Subject string

	// Body is the message body. No length cap is enforced.
	Body string

	// Priority is the message priority.
	Priority Priority

	// Tags is an unordered set of free-form labels.
	Tags []string

	// ReplyTo is the ID of the message this one replies to, or empty.
	ReplyTo string

	// ThreadID groups messages into a conversation. Replies inherit the
	// thread of the referenced message.
	ThreadID string

	// CreatedAt is the UTC creation instant, millisecond precision.
	CreatedAt time.Time

	// Read reports whether the recipient has read the message.
	Read bool

	// Archived reports whether the recipient has archived the message.
	Archived bool
}

// AgentStatus is the derived liveness status of an agent.
type AgentStatus string

const (
	StatusOnline  AgentStatus = "online"
	StatusOffline AgentStatus = "offline"
)

// OnlineWindow is how recent an agent's last_seen must be for the agent to be
// considered online. The stored status column is opportunistic only; readers
// always recompute from last_seen.
const OnlineWindow = 60 * time.Second

// StatusAt derives the presence status for an agent last seen at lastSeen,
// evaluated at now.
func StatusAt(lastSeen, now time.Time) AgentStatus {
	if now.Sub(lastSeen) <= OnlineWindow {
		return StatusOnline
	}
	return StatusOffline
}

// Agent is a presence record for a registered agent, keyed by
// (name, machine_id).
type Agent struct {
	// Name is the agent name, unique within a machine.
	Name string

	// MachineID is an opaque host identifier, stable across restarts.
	MachineID string

	// LastSeen is the last heartbeat or tool-call instant, UTC.
	LastSeen time.Time

	// Status is the presence status derived from LastSeen at read time.
	Status AgentStatus

	// ProcessInfo is an opaque diagnostic blob (pid, platform, version).
	ProcessInfo string
}

// InboxFilter narrows a ListInbox scan.
type InboxFilter struct {
	// UnreadOnly restricts results to unread messages.
	UnreadOnly bool

	// Priority, when non-empty, restricts results to the given priority.
	Priority Priority

	// Tag, when non-empty, restricts results to messages carrying the tag.
	Tag string

	// DaysBack restricts results to messages newer than now minus this
	// many days. Zero means no recency bound.
	DaysBack int

	// Limit bounds the number of returned rows. Zero means no bound.
	Limit int
}

// SearchFilter narrows a Search scan beyond the substring query.
type SearchFilter struct {
	// Sender, when non-empty, restricts results to this sender.
	Sender string

	// Priority, when non-empty, restricts results to the given priority.
	Priority Priority

	// DaysBack restricts results to messages newer than now minus this
	// many days. Zero means no recency bound.
	DaysBack int

	// Limit bounds the number of returned rows. Zero means no bound.
	Limit int
}

// MailboxStats are per-agent mailbox counters.
type MailboxStats struct {
	// TotalInbox is the number of non-archived messages addressed to the
	// agent.
	TotalInbox int64

	// UnreadInbox is the number of unread, non-archived inbox messages.
	UnreadInbox int64

	// UnreadUrgent is the number of unread urgent inbox messages.
	UnreadUrgent int64

	// SentTotal is the number of messages the agent has sent.
	SentTotal int64

	// RecentActivity counts messages sent or received in the last 24h.
	RecentActivity int64

	// AgentsTotal is the number of registered agents.
	AgentsTotal int64

	// DistinctThreads counts threads the agent participates in.
	DistinctThreads int64
}

// CleanupResult reports what a maintenance pass removed.
type CleanupResult struct {
	// MessagesPurged is the number of archived messages deleted.
	MessagesPurged int64

	// AgentsPurged is the number of stale agent rows deleted.
	AgentsPurged int64
}
