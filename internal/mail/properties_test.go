package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

var rapidDBSeq atomic.Int64

// newRapidService opens a fresh service for one property iteration.
func newRapidService(t *rapid.T, dir string, agents ...string) *Service {
	log := slog.New(slog.DiscardHandler)

	dbPath := filepath.Join(dir, fmt.Sprintf("mailbox-%d.db",
		rapidDBSeq.Add(1)))
	s, err := store.Open(dbPath, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	ctx := context.Background()
	for _, name := range agents {
		err := s.UpsertAgent(ctx, store.Agent{
			Name:      name,
			MachineID: "rapid-machine",
			LastSeen:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	return NewService(s, log)
}

var priorityGen = rapid.SampledFrom([]string{
	"urgent", "high", "normal", "low",
})

// TestSearchSoundness verifies that every search hit actually contains the
// query substring in its subject, body, or a tag.
func TestSearchSoundness(t *testing.T) {
	dir := t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		svc := newRapidService(t, dir, "alice", "bob")
		ctx := context.Background()

		wordGen := rapid.StringMatching(`[a-zA-Z]{1,8}`)

		numMsgs := rapid.IntRange(1, 12).Draw(t, "numMsgs")
		for i := 0; i < numMsgs; i++ {
			req := SendMailRequest{
				Self:      "alice",
				Recipient: "bob",
				Subject:   wordGen.Draw(t, "subject"),
				Body:      wordGen.Draw(t, "body"),
			}
			if rapid.Bool().Draw(t, "tagged") {
				req.Tags = []string{wordGen.Draw(t, "tag")}
			}
			if _, err := svc.SendMail(ctx, req); err != nil {
				t.Fatal(err)
			}
		}

		query := wordGen.Draw(t, "query")
		results, err := svc.Search(ctx, SearchRequest{
			Self:  "bob",
			Query: query,
			Limit: 100,
		})
		if err != nil {
			t.Fatal(err)
		}

		lowered := strings.ToLower(query)
		for _, m := range results {
			if strings.Contains(strings.ToLower(m.Subject), lowered) {
				continue
			}
			if strings.Contains(strings.ToLower(m.Body), lowered) {
				continue
			}
			tagHit := false
			for _, tag := range m.Tags {
				if strings.Contains(strings.ToLower(tag),
					lowered) {

					tagHit = true
					break
				}
			}
			if !tagHit {
				t.Fatalf("message %s matched query %q without "+
					"containing it", m.ID, query)
			}
		}
	})
}

// TestInboxOrderingProperty verifies that check results are sorted by
// priority rank, then recency, then id.
func TestInboxOrderingProperty(t *testing.T) {
	dir := t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		svc := newRapidService(t, dir, "alice", "bob")
		ctx := context.Background()

		numMsgs := rapid.IntRange(2, 15).Draw(t, "numMsgs")
		for i := 0; i < numMsgs; i++ {
			_, err := svc.SendMail(ctx, SendMailRequest{
				Self:      "alice",
				Recipient: "bob",
				Subject:   "s",
				Body:      "b",
				Priority:  priorityGen.Draw(t, "priority"),
			})
			if err != nil {
				t.Fatal(err)
			}
		}

		inbox, err := svc.CheckMail(ctx, CheckMailRequest{
			Self:  "bob",
			Limit: 100,
		})
		if err != nil {
			t.Fatal(err)
		}

		sorted := sort.SliceIsSorted(inbox, func(i, j int) bool {
			a, b := inbox[i], inbox[j]
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() < b.Priority.Rank()
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		if !sorted {
			t.Fatalf("inbox not in priority/recency/id order: %v",
				inbox)
		}
	})
}

// TestReadUnreadRoundTrip verifies that a sent message is visible unread and
// disappears from the unread view once read, never the other way around.
func TestReadUnreadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		svc := newRapidService(t, dir, "alice", "bob")
		ctx := context.Background()

		sent, err := svc.SendMail(ctx, SendMailRequest{
			Self:      "alice",
			Recipient: "bob",
			Subject:   "s",
			Body:      "b",
			Priority:  priorityGen.Draw(t, "priority"),
		})
		if err != nil {
			t.Fatal(err)
		}

		unread, err := svc.CheckMail(ctx, CheckMailRequest{
			Self:       "bob",
			UnreadOnly: true,
			Limit:      100,
		})
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, m := range unread {
			if m.ID == sent.MessageID {
				found = true
			}
		}
		if !found {
			t.Fatalf("fresh message %s missing from unread view",
				sent.MessageID)
		}

		// Reading is monotone: a second read keeps the flag set.
		reads := rapid.IntRange(1, 3).Draw(t, "reads")
		for i := 0; i < reads; i++ {
			msg, err := svc.ReadMessage(ctx, "bob", sent.MessageID)
			if err != nil {
				t.Fatal(err)
			}
			if !msg.Read {
				t.Fatal("read flag not set after read")
			}
		}

		unread, err = svc.CheckMail(ctx, CheckMailRequest{
			Self:       "bob",
			UnreadOnly: true,
			Limit:      100,
		})
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range unread {
			if m.ID == sent.MessageID {
				t.Fatalf("read message %s still in unread view",
					sent.MessageID)
			}
		}
	})
}

// TestNoExistenceOracle verifies that mutating an absent id and mutating a
// foreign id fail with the same error kind.
func TestNoExistenceOracle(t *testing.T) {
	dir := t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		svc := newRapidService(t, dir, "alice", "bob", "carol")
		ctx := context.Background()

		sent, err := svc.SendMail(ctx, SendMailRequest{
			Self:      "alice",
			Recipient: "bob",
			Subject:   "s",
			Body:      "b",
		})
		if err != nil {
			t.Fatal(err)
		}

		foreign := sent.MessageID
		absent := rapid.StringMatching(`[0-9a-f]{8}`).Draw(t, "absent")

		type op func(id string) error
		ops := map[string]op{
			"read": func(id string) error {
				_, err := svc.ReadMessage(ctx, "carol", id)
				return err
			},
			"archive": func(id string) error {
				return svc.ArchiveMessage(ctx, "carol", id)
			},
			"delete": func(id string) error {
				return svc.DeleteMessage(ctx, "carol", id)
			},
		}

		for name, run := range ops {
			errForeign := run(foreign)
			errAbsent := run(absent)

			if !errors.Is(errForeign, ErrNotFound) {
				t.Fatalf("%s(foreign) = %v, want NotFound",
					name, errForeign)
			}
			if !errors.Is(errAbsent, ErrNotFound) {
				t.Fatalf("%s(absent) = %v, want NotFound",
					name, errAbsent)
			}
		}

		// The probes must not have mutated bob's message.
		msg, err := svc.ReadMessage(ctx, "bob", sent.MessageID)
		if err != nil {
			t.Fatal(err)
		}
		if msg.Archived {
			t.Fatal("foreign archive probe mutated the message")
		}
	})
}
