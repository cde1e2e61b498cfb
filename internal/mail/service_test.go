package mail

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

// newTestService opens a fresh service over an on-disk store and registers
// the given agents.
func newTestService(t *testing.T, agents ...string) *Service {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "mailbox.db")
	log := slog.New(slog.DiscardHandler)

	s, err := store.Open(dbPath, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	ctx := context.Background()
	for _, name := range agents {
		require.NoError(t, s.UpsertAgent(ctx, store.Agent{
			Name:      name,
			MachineID: "test-machine",
			LastSeen:  time.Now().UTC(),
			Status:    store.StatusOnline,
		}))
	}

	return NewService(s, log)
}

// TestLargeBodyRoundTrip verifies that a megabyte-scale body is accepted and
// comes back byte for byte. Agents hand off whole artifacts through message
// bodies, so there is no size cap to trip over.
func TestLargeBodyRoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob")
	ctx := context.Background()

	// Just over 1 MiB of non-repeating-boundary content.
	body := strings.Repeat("0123456789abcdef", 66560)
	require.Greater(t, len(body), 1<<20)

	sent, err := svc.SendMail(ctx, SendMailRequest{
		Self:      "alice",
		Recipient: "bob",
		Subject:   "artifact handoff",
		Body:      body,
	})
	require.NoError(t, err)

	got, err := svc.ReadMessage(ctx, "bob", sent.MessageID)
	require.NoError(t, err)
	require.Len(t, got.Body, len(body))
	require.Equal(t, body, got.Body)
}

// TestSendReceiveRead covers the basic lifecycle: send, poll, read, poll
// again.
func TestSendReceiveRead(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob")
	ctx := context.Background()

	sent, err := svc.SendMail(ctx, SendMailRequest{
		Self:      "alice",
		Recipient: "bob",
		Subject:   "hi",
		Body:      "hello",
	})
	require.NoError(t, err)
	require.NotEmpty(t, sent.MessageID)
	require.NotEmpty(t, sent.ThreadID)
	require.Equal(t, store.PriorityNormal, sent.Priority)

	inbox, err := svc.CheckMail(ctx, CheckMailRequest{
		Self:       "bob",
		UnreadOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, sent.MessageID, inbox[0].ID)
	require.False(t, inbox[0].Read)

	msg, err := svc.ReadMessage(ctx, "bob", sent.MessageID)
	require.NoError(t, err)
	require.Equal(t, "hello", msg.Body)
	require.True(t, msg.Read)

	inbox, err = svc.CheckMail(ctx, CheckMailRequest{
		Self:       "bob",
		UnreadOnly: true,
	})
	require.NoError(t, err)
	require.Empty(t, inbox)
}

// TestReplySharesThread verifies that replies join the referenced message's
// thread and the thread reads back in chronological order.
func TestReplySharesThread(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob")
	ctx := context.Background()

	first, err := svc.SendMail(ctx, SendMailRequest{
		Self:      "alice",
		Recipient: "bob",
		Subject:   "Q",
		Body:      "?",
	})
	require.NoError(t, err)

	// Keep the two timestamps distinct at millisecond resolution so the
	// chronological thread order is unambiguous.
	time.Sleep(5 * time.Millisecond)

	reply, err := svc.SendMail(ctx, SendMailRequest{
		Self:      "bob",
		Recipient: "alice",
		Subject:   "Re: Q",
		Body:      "!",
		ReplyTo:   first.MessageID,
	})
	require.NoError(t, err)
	require.Equal(t, first.ThreadID, reply.ThreadID)

	thread, err := svc.GetThread(ctx, "alice", first.ThreadID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	require.Equal(t, first.MessageID, thread[0].ID)
	require.Equal(t, reply.MessageID, thread[1].ID)
}

// TestPriorityOrdering verifies the inbox sort when four priorities land at
// effectively the same instant.
func TestPriorityOrdering(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob")
	ctx := context.Background()

	ids := make(map[string]string)
	for _, prio := range []string{"normal", "urgent", "high", "low"} {
		sent, err := svc.SendMail(ctx, SendMailRequest{
			Self:      "alice",
			Recipient: "bob",
			Subject:   prio,
			Body:      "x",
			Priority:  prio,
		})
		require.NoError(t, err)
		ids[prio] = sent.MessageID
	}

	inbox, err := svc.CheckMail(ctx, CheckMailRequest{
		Self:  "bob",
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, inbox, 4)
	require.Equal(t, ids["urgent"], inbox[0].ID)
	require.Equal(t, ids["high"], inbox[1].ID)
	require.Equal(t, ids["normal"], inbox[2].ID)
	require.Equal(t, ids["low"], inbox[3].ID)
}

// TestNonRecipientCannotMutate verifies that only the recipient can read,
// archive, or delete, and that outsiders get the same NotFound as for an
// absent id.
func TestNonRecipientCannotMutate(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob", "carol")
	ctx := context.Background()

	sent, err := svc.SendMail(ctx, SendMailRequest{
		Self:      "alice",
		Recipient: "bob",
		Subject:   "s",
		Body:      "b",
	})
	require.NoError(t, err)

	err = svc.ArchiveMessage(ctx, "carol", sent.MessageID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ReadMessage(ctx, "carol", sent.MessageID)
	require.ErrorIs(t, err, ErrNotFound)

	// The sender cannot mutate either.
	err = svc.ArchiveMessage(ctx, "alice", sent.MessageID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ReadMessage(ctx, "alice", sent.MessageID)
	require.ErrorIs(t, err, ErrNotFound)

	// An entirely absent id fails identically.
	err = svc.ArchiveMessage(ctx, "carol", "no-such-id")
	require.ErrorIs(t, err, ErrNotFound)

	// The recipient succeeds, and the message leaves the inbox.
	require.NoError(t, svc.ArchiveMessage(ctx, "bob", sent.MessageID))

	inbox, err := svc.CheckMail(ctx, CheckMailRequest{Self: "bob"})
	require.NoError(t, err)
	require.Empty(t, inbox)
}

// TestSearchFilters verifies case-insensitive substring matching on bodies.
func TestSearchFilters(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob")
	ctx := context.Background()

	bodies := []string{"alpha", "ALPHA", "beta", "alphabet", "gamma"}
	ids := make([]string, len(bodies))
	for i, body := range bodies {
		sent, err := svc.SendMail(ctx, SendMailRequest{
			Self:      "alice",
			Recipient: "bob",
			Subject:   "note",
			Body:      body,
		})
		require.NoError(t, err)
		ids[i] = sent.MessageID
	}

	results, err := svc.Search(ctx, SearchRequest{
		Self:  "bob",
		Query: "alpha",
	})
	require.NoError(t, err)

	got := make([]string, 0, len(results))
	for _, m := range results {
		got = append(got, m.ID)
	}
	require.ElementsMatch(t, []string{ids[0], ids[1], ids[3]}, got)
}

// TestSendValidation covers the send-side error taxonomy.
func TestSendValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob", "carol")
	ctx := context.Background()

	cases := []struct {
		name string
		req  SendMailRequest
		want error
	}{
		{
			name: "missing recipient",
			req: SendMailRequest{
				Self: "alice", Subject: "s", Body: "b",
			},
			want: ErrInvalidArgument,
		},
		{
			name: "missing subject",
			req: SendMailRequest{
				Self: "alice", Recipient: "bob", Body: "b",
			},
			want: ErrInvalidArgument,
		},
		{
			name: "missing body",
			req: SendMailRequest{
				Self: "alice", Recipient: "bob", Subject: "s",
			},
			want: ErrInvalidArgument,
		},
		{
			name: "bad priority",
			req: SendMailRequest{
				Self: "alice", Recipient: "bob",
				Subject: "s", Body: "b",
				Priority: "asap",
			},
			want: ErrInvalidArgument,
		},
		{
			name: "empty tag",
			req: SendMailRequest{
				Self: "alice", Recipient: "bob",
				Subject: "s", Body: "b",
				Tags: []string{"ok", "  "},
			},
			want: ErrInvalidArgument,
		},
		{
			name: "unknown recipient",
			req: SendMailRequest{
				Self: "alice", Recipient: "nobody",
				Subject: "s", Body: "b",
			},
			want: ErrRecipientNotFound,
		},
		{
			name: "absent reply target",
			req: SendMailRequest{
				Self: "alice", Recipient: "bob",
				Subject: "s", Body: "b",
				ReplyTo: "no-such-id",
			},
			want: ErrReplyTargetNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SendMail(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	// A reply target the sender cannot see is an authorization failure,
	// not a not-found.
	sent, err := svc.SendMail(ctx, SendMailRequest{
		Self: "alice", Recipient: "bob", Subject: "s", Body: "b",
	})
	require.NoError(t, err)

	_, err = svc.SendMail(ctx, SendMailRequest{
		Self: "carol", Recipient: "bob",
		Subject: "s", Body: "b",
		ReplyTo: sent.MessageID,
	})
	require.ErrorIs(t, err, ErrNotAuthorized)
}

// TestCheckMailBounds covers the paging bounds and defaults.
func TestCheckMailBounds(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob")
	ctx := context.Background()

	_, err := svc.CheckMail(ctx, CheckMailRequest{Self: "bob", Limit: 101})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.CheckMail(ctx, CheckMailRequest{Self: "bob", Limit: -1})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Search(ctx, SearchRequest{Self: "bob", Query: "  "})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Search(ctx, SearchRequest{
		Self: "bob", Query: "x", DaysBack: 366,
	})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.MarkRead(ctx, "bob", nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// The default page size caps an overfull inbox at ten.
	for i := 0; i < 12; i++ {
		_, err := svc.SendMail(ctx, SendMailRequest{
			Self: "alice", Recipient: "bob",
			Subject: "s", Body: "b",
		})
		require.NoError(t, err)
	}

	inbox, err := svc.CheckMail(ctx, CheckMailRequest{Self: "bob"})
	require.NoError(t, err)
	require.Len(t, inbox, 10)
}

// TestMarkReadPartial verifies the partial-success contract of a batch mark.
func TestMarkReadPartial(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob", "carol")
	ctx := context.Background()

	mine, err := svc.SendMail(ctx, SendMailRequest{
		Self: "alice", Recipient: "bob", Subject: "s", Body: "b",
	})
	require.NoError(t, err)

	other, err := svc.SendMail(ctx, SendMailRequest{
		Self: "alice", Recipient: "carol", Subject: "s", Body: "b",
	})
	require.NoError(t, err)

	marked, err := svc.MarkRead(ctx, "bob", []string{
		mine.MessageID, other.MessageID, "no-such-id",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, marked)
}

// TestReceiveDispatch verifies the union dispatch path end to end.
func TestReceiveDispatch(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob")
	ctx := context.Background()

	result := svc.Receive(ctx, SendMailRequest{
		Self: "alice", Recipient: "bob", Subject: "s", Body: "b",
	})
	resp, err := result.Unpack()
	require.NoError(t, err)

	sendResp, ok := resp.(SendMailResponse)
	require.True(t, ok)
	require.NoError(t, sendResp.Error)
	require.NotEmpty(t, sendResp.MessageID)

	result = svc.Receive(ctx, GetStatsRequest{Self: "bob"})
	resp, err = result.Unpack()
	require.NoError(t, err)

	statsResp, ok := resp.(GetStatsResponse)
	require.True(t, ok)
	require.NoError(t, statsResp.Error)
	require.EqualValues(t, 1, statsResp.Stats.TotalInbox)
	require.EqualValues(t, 1, statsResp.Stats.UnreadInbox)
}

// TestStatsCounts verifies the mailbox counters through the kernel.
func TestStatsCounts(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice", "bob")
	ctx := context.Background()

	urgent, err := svc.SendMail(ctx, SendMailRequest{
		Self: "alice", Recipient: "bob",
		Subject: "s", Body: "b", Priority: "urgent",
	})
	require.NoError(t, err)

	_, err = svc.SendMail(ctx, SendMailRequest{
		Self: "alice", Recipient: "bob", Subject: "s", Body: "b",
	})
	require.NoError(t, err)

	_, err = svc.ReadMessage(ctx, "bob", urgent.MessageID)
	require.NoError(t, err)

	stats, err := svc.GetStats(ctx, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalInbox)
	require.EqualValues(t, 1, stats.UnreadInbox)
	require.EqualValues(t, 0, stats.UnreadUrgent)
	require.EqualValues(t, 2, stats.AgentsTotal)
	require.EqualValues(t, 2, stats.DistinctThreads)
}

// TestListAgentsActiveWindow verifies the active-only roster filter.
func TestListAgentsActiveWindow(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "alice")
	ctx := context.Background()

	// Register a long-idle agent directly through the store.
	stale := store.Agent{
		Name:      "sleeper",
		MachineID: "test-machine",
		LastSeen:  time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, svc.store.UpsertAgent(ctx, stale))

	agents, err := svc.ListAgents(ctx, false)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	agents, err = svc.ListAgents(ctx, true)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "alice", agents[0].Name)
	require.Equal(t, store.StatusOnline, agents[0].Status)
}
