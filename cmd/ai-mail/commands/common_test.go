package commands

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

// TestFormatMessage_UnreadUrgent verifies that urgent unread messages carry
// both the priority banner and the unread marker.
func TestFormatMessage_UnreadUrgent(t *testing.T) {
	t.Parallel()

	msg := store.Message{
		ID:        "msg-1",
		Sender:    "alice",
		Subject:   "deploy broke",
		Priority:  store.PriorityUrgent,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	out := formatMessage(msg)
	require.True(t, strings.HasPrefix(out, "[URGENT] * msg-1: deploy broke"))
	require.Contains(t, out, "From: alice")
}

// TestFormatMessage_ReadNormal verifies that read normal-priority messages
// carry neither a banner nor the unread marker.
func TestFormatMessage_ReadNormal(t *testing.T) {
	t.Parallel()

	msg := store.Message{
		ID:        "msg-2",
		Sender:    "bob",
		Subject:   "weekly notes",
		Priority:  store.PriorityNormal,
		Read:      true,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	out := formatMessage(msg)
	require.True(t, strings.HasPrefix(out, "msg-2: weekly notes"))
	require.NotContains(t, out, "*")
	require.NotContains(t, out, "Tags:")
}

// TestFormatMessage_Tags verifies that tags are joined on one line.
func TestFormatMessage_Tags(t *testing.T) {
	t.Parallel()

	msg := store.Message{
		ID:        "msg-3",
		Sender:    "bob",
		Subject:   "review ready",
		Priority:  store.PriorityHigh,
		Tags:      []string{"review", "backend"},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	out := formatMessage(msg)
	require.Contains(t, out, "Tags: review, backend")
}

// TestToJSON_NilTags verifies that a message without tags serializes with an
// empty array rather than null.
func TestToJSON_NilTags(t *testing.T) {
	t.Parallel()

	msg := store.Message{
		ID:        "msg-4",
		Sender:    "alice",
		Recipient: "bob",
		Subject:   "ping",
		Body:      "pong",
		Priority:  store.PriorityLow,
		ThreadID:  "thr-1",
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 500e6, time.UTC),
	}

	out := toJSON(msg)
	require.NotNil(t, out.Tags)
	require.Empty(t, out.Tags)
	require.Equal(t, "2026-03-01T09:00:00Z", out.Timestamp)
	require.Empty(t, out.ReplyTo)
}

// TestToJSONList_PreservesOrder verifies that list conversion keeps the
// input order.
func TestToJSONList_PreservesOrder(t *testing.T) {
	t.Parallel()

	msgs := []store.Message{
		{ID: "a", Priority: store.PriorityNormal},
		{ID: "b", Priority: store.PriorityNormal},
		{ID: "c", Priority: store.PriorityNormal},
	}

	out := toJSONList(msgs)
	require.Len(t, out, 3)
	require.Equal(t, "a", out[0].ID)
	require.Equal(t, "b", out[1].ID)
	require.Equal(t, "c", out[2].ID)
}
