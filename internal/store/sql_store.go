package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/db"
)

// timeLayout is the canonical on-disk timestamp format: RFC 3339 UTC with
// millisecond precision. The fixed width makes lexicographic order equal to
// chronological order, which the recency indexes rely on.
const timeLayout = "2006-01-02T15:04:05.000Z"

// SQLStore implements Storage on top of a SQLite database opened by the db
// package.
type SQLStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLStore creates a new SQLStore wrapping the given database connection.
func NewSQLStore(sqlDB *sql.DB, log *slog.Logger) *SQLStore {
	return &SQLStore{
		db:  sqlDB,
		log: log,
	}
}

// Open opens (and migrates) the mailbox database at dbPath and returns a
// store wrapping it.
func Open(dbPath string, log *slog.Logger) (*SQLStore, error) {
	sqlDB, err := db.Open(dbPath, log)
	if err != nil {
		return nil, err
	}

	return NewSQLStore(sqlDB, log), nil
}

// busyRetries bounds reruns of a write statement that loses the database
// lock to a concurrent process. The busy_timeout pragma absorbs most
// contention between the daemon and the CLI; this covers the window where
// sqlite gives up anyway.
const busyRetries = 3

// execWrite runs a write statement, retrying while the database reports a
// busy or locked condition. The returned error is already classified, so
// callers only add their operation context.
func (s *SQLStore) execWrite(ctx context.Context, query string,
	args ...any) (sql.Result, error) {

	for attempt := 1; ; attempt++ {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}

		mapped := db.MapSQLError(err)
		if attempt >= busyRetries ||
			!db.IsSerializationOrDeadlockError(mapped) {

			return nil, mapped
		}

		s.log.Debug("database busy, retrying write",
			"attempt", attempt)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
}

// Close checkpoints the WAL and closes the underlying database connection.
func (s *SQLStore) Close() error {
	if err := db.Checkpoint(s.db); err != nil {
		s.log.Warn("WAL checkpoint failed on close", "err", err)
	}

	return s.db.Close()
}

// encodeTime renders a timestamp in the canonical storage format.
func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp. Reads are tolerant of any RFC 3339
// variant so a hand-edited database row does not wedge the store.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp "+
			"%q: %w", s, err)
	}

	return t.UTC(), nil
}

// encodeTags serializes a tag set as a JSON array.
func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}

	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}

	return string(data), nil
}

// decodeTags parses a stored JSON tag array.
func decodeTags(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}

	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}

	return tags, nil
}

// messageColumns is the canonical SELECT column list for message scans.
const messageColumns = `id, sender, recipient, subject, body, priority,
	tags, reply_to, thread_id, created_at, read, archived`

// scanMessage scans one message row in messageColumns order.
func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var (
		m         Message
		priority  string
		tags      string
		replyTo   sql.NullString
		createdAt string
	)

	err := row.Scan(
		&m.ID, &m.Sender, &m.Recipient, &m.Subject, &m.Body,
		&priority, &tags, &replyTo, &m.ThreadID, &createdAt,
		&m.Read, &m.Archived,
	)
	if err != nil {
		return Message{}, err
	}

	m.Priority = Priority(priority)
	if replyTo.Valid {
		m.ReplyTo = replyTo.String
	}

	m.Tags, err = decodeTags(tags)
	if err != nil {
		return Message{}, err
	}

	m.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return Message{}, err
	}

	return m, nil
}

// collectMessages drains a result set of message rows.
func collectMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// PutMessage durably stores a new message.
func (s *SQLStore) PutMessage(ctx context.Context, m Message) error {
	tags, err := encodeTags(m.Tags)
	if err != nil {
		return err
	}

	var replyTo sql.NullString
	if m.ReplyTo != "" {
		replyTo = sql.NullString{String: m.ReplyTo, Valid: true}
	}

	_, err = s.execWrite(ctx, `
		INSERT INTO messages
		(id, sender, recipient, subject, body, priority, tags,
		 reply_to, thread_id, created_at, read, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Sender, m.Recipient, m.Subject, m.Body,
		string(m.Priority), tags, replyTo, m.ThreadID,
		encodeTime(m.CreatedAt), m.Read, m.Archived,
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}

	return nil
}

// GetMessage returns the message if the viewer is its sender or recipient.
func (s *SQLStore) GetMessage(ctx context.Context, id,
	viewer string) (Message, error) {

	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = ? AND (sender = ? OR recipient = ?)
	`, id, viewer, viewer)

	m, err := scanMessage(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Message{}, ErrNotFound
	case err != nil:
		return Message{}, fmt.Errorf("failed to get message: %w",
			db.MapSQLError(err))
	}

	return m, nil
}

// GetMessageAny returns the message regardless of viewer.
func (s *SQLStore) GetMessageAny(ctx context.Context,
	id string) (Message, error) {

	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = ?
	`, id)

	m, err := scanMessage(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Message{}, ErrNotFound
	case err != nil:
		return Message{}, fmt.Errorf("failed to get message: %w",
			db.MapSQLError(err))
	}

	return m, nil
}

// ListInbox returns non-archived messages addressed to recipient, ordered by
// priority, then recency, with the message id as a deterministic tiebreak.
func (s *SQLStore) ListInbox(ctx context.Context, recipient string,
	f InboxFilter) ([]Message, error) {

	var sb strings.Builder
	sb.WriteString(`
		SELECT ` + messageColumns + `
		FROM messages
		WHERE recipient = ? AND archived = 0
	`)
	args := []any{recipient}

	if f.UnreadOnly {
		sb.WriteString(" AND read = 0")
	}
	if f.Priority != "" {
		sb.WriteString(" AND priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.DaysBack > 0 {
		cutoff := time.Now().UTC().Add(
			-time.Duration(f.DaysBack) * 24 * time.Hour,
		)
		sb.WriteString(" AND created_at >= ?")
		args = append(args, encodeTime(cutoff))
	}

	sb.WriteString(`
		ORDER BY CASE priority
			WHEN 'urgent' THEN 0
			WHEN 'high' THEN 1
			WHEN 'normal' THEN 2
			ELSE 3
		END ASC, created_at DESC, id ASC
	`)

	// The tag filter needs the decoded tag set, so the limit is applied
	// after scanning when a tag filter is present.
	if f.Limit > 0 && f.Tag == "" {
		sb.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w",
			db.MapSQLError(err))
	}

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	if f.Tag != "" {
		filtered := messages[:0]
		for _, m := range messages {
			if hasTag(m.Tags, f.Tag) {
				filtered = append(filtered, m)
			}
		}
		messages = filtered

		if f.Limit > 0 && len(messages) > f.Limit {
			messages = messages[:f.Limit]
		}
	}

	return messages, nil
}

// hasTag reports whether the tag set contains tag.
func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// matchesQuery reports whether the lowercased query appears in the subject,
// body, or any tag of the message.
func matchesQuery(m Message, loweredQuery string) bool {
	if strings.Contains(strings.ToLower(m.Subject), loweredQuery) {
		return true
	}
	if strings.Contains(strings.ToLower(m.Body), loweredQuery) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), loweredQuery) {
			return true
		}
	}
	return false
}

// Search returns non-archived messages involving participant that contain the
// query substring in subject, body, or a tag.
func (s *SQLStore) Search(ctx context.Context, participant, query string,
	f SearchFilter) ([]Message, error) {

	var sb strings.Builder
	sb.WriteString(`
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender = ? OR recipient = ?) AND archived = 0
	`)
	args := []any{participant, participant}

	if f.Sender != "" {
		sb.WriteString(" AND sender = ?")
		args = append(args, f.Sender)
	}
	if f.Priority != "" {
		sb.WriteString(" AND priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.DaysBack > 0 {
		cutoff := time.Now().UTC().Add(
			-time.Duration(f.DaysBack) * 24 * time.Hour,
		)
		sb.WriteString(" AND created_at >= ?")
		args = append(args, encodeTime(cutoff))
	}

	// Cheap SQL prefilter; matching the serialized tags column can yield
	// false positives across JSON punctuation, so rows are re-verified
	// against the decoded tag set before being returned.
	lowered := strings.ToLower(query)
	sb.WriteString(`
		AND (instr(lower(subject), ?) > 0
		     OR instr(lower(body), ?) > 0
		     OR instr(lower(tags), ?) > 0)
		ORDER BY created_at DESC, id ASC
	`)
	args = append(args, lowered, lowered, lowered)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w",
			db.MapSQLError(err))
	}

	candidates, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	var results []Message
	for _, m := range candidates {
		if !matchesQuery(m, lowered) {
			continue
		}
		results = append(results, m)
		if f.Limit > 0 && len(results) >= f.Limit {
			break
		}
	}

	return results, nil
}

// GetThread returns all messages in a thread visible to the participant.
func (s *SQLStore) GetThread(ctx context.Context, threadID,
	participant string) ([]Message, error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE thread_id = ? AND (sender = ? OR recipient = ?)
		ORDER BY created_at ASC, id ASC
	`, threadID, participant, participant)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w",
			db.MapSQLError(err))
	}

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		return nil, ErrNotFound
	}

	return messages, nil
}

// MarkRead transitions messages to read where the recipient matches.
func (s *SQLStore) MarkRead(ctx context.Context, ids []string,
	recipient string) (int64, error) {

	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, recipient)

	// The read = 0 guard makes the returned count reflect actual
	// transitions, and keeps the flag monotone.
	res, err := s.execWrite(ctx, `
		UPDATE messages
		SET read = 1
		WHERE id IN (`+placeholders+`) AND recipient = ? AND read = 0
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count marked rows: %w", err)
	}

	return n, nil
}

// SetArchived archives a message if the recipient matches. Re-archiving an
// already archived message still matches, so the operation is idempotent.
func (s *SQLStore) SetArchived(ctx context.Context, id,
	recipient string) (int64, error) {

	res, err := s.execWrite(ctx, `
		UPDATE messages
		SET archived = 1
		WHERE id = ? AND recipient = ?
	`, id, recipient)
	if err != nil {
		return 0, fmt.Errorf("failed to archive message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count archived rows: %w", err)
	}

	return n, nil
}

// Delete permanently removes a message if the recipient matches.
func (s *SQLStore) Delete(ctx context.Context, id,
	recipient string) (int64, error) {

	res, err := s.execWrite(ctx, `
		DELETE FROM messages
		WHERE id = ? AND recipient = ?
	`, id, recipient)
	if err != nil {
		return 0, fmt.Errorf("failed to delete message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}

	return n, nil
}

// UpsertAgent inserts or replaces an agent presence record.
func (s *SQLStore) UpsertAgent(ctx context.Context, a Agent) error {
	_, err := s.execWrite(ctx, `
		INSERT OR REPLACE INTO agents
		(name, machine_id, last_seen, status, process_info)
		VALUES (?, ?, ?, ?, ?)
	`, a.Name, a.MachineID, encodeTime(a.LastSeen), string(a.Status),
		a.ProcessInfo,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert agent: %w", err)
	}

	return nil
}

// FindAgent looks up an agent by (name, machine_id).
func (s *SQLStore) FindAgent(ctx context.Context, name,
	machineID string) (fn.Option[Agent], error) {

	row := s.db.QueryRowContext(ctx, `
		SELECT name, machine_id, last_seen, status, process_info
		FROM agents
		WHERE name = ? AND machine_id = ?
	`, name, machineID)

	a, err := scanAgent(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fn.None[Agent](), nil
	case err != nil:
		return fn.None[Agent](), fmt.Errorf("failed to find agent: %w",
			db.MapSQLError(err))
	}

	return fn.Some(a), nil
}

// AgentExists reports whether any agent with the given name is registered.
func (s *SQLStore) AgentExists(ctx context.Context,
	name string) (bool, error) {

	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM agents WHERE name = ? LIMIT 1
	`, name).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to check agent: %w",
			db.MapSQLError(err))
	}

	return true, nil
}

// scanAgent scans one agent row and derives its presence status.
func scanAgent(row interface{ Scan(...any) error }) (Agent, error) {
	var (
		a           Agent
		lastSeen    string
		status      string
		processInfo sql.NullString
	)

	err := row.Scan(&a.Name, &a.MachineID, &lastSeen, &status, &processInfo)
	if err != nil {
		return Agent{}, err
	}

	a.LastSeen, err = parseTime(lastSeen)
	if err != nil {
		return Agent{}, err
	}

	if processInfo.Valid {
		a.ProcessInfo = processInfo.String
	}

	// The stored status column is opportunistic; presence is always
	// derived from last_seen on read.
	a.Status = StatusAt(a.LastSeen, time.Now().UTC())

	return a, nil
}

// TouchAgent updates last_seen for an agent.
func (s *SQLStore) TouchAgent(ctx context.Context, name, machineID string,
	seen time.Time) error {

	_, err := s.execWrite(ctx, `
		UPDATE agents
		SET last_seen = ?, status = ?
		WHERE name = ? AND machine_id = ?
	`, encodeTime(seen), string(StatusOnline), name, machineID)
	if err != nil {
		return fmt.Errorf("failed to touch agent: %w", err)
	}

	return nil
}

// MarkAgentOffline records a graceful shutdown for an agent.
func (s *SQLStore) MarkAgentOffline(ctx context.Context, name,
	machineID string, seen time.Time) error {

	_, err := s.execWrite(ctx, `
		UPDATE agents
		SET last_seen = ?, status = ?
		WHERE name = ? AND machine_id = ?
	`, encodeTime(seen), string(StatusOffline), name, machineID)
	if err != nil {
		return fmt.Errorf("failed to mark agent offline: %w", err)
	}

	return nil
}

// ListAgents returns agents ordered by last_seen DESC.
func (s *SQLStore) ListAgents(ctx context.Context,
	activeWithin time.Duration) ([]Agent, error) {

	query := `
		SELECT name, machine_id, last_seen, status, process_info
		FROM agents
	`
	var args []any

	if activeWithin > 0 {
		cutoff := time.Now().UTC().Add(-activeWithin)
		query += " WHERE last_seen >= ?"
		args = append(args, encodeTime(cutoff))
	}

	query += " ORDER BY last_seen DESC, name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w",
			db.MapSQLError(err))
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return agents, nil
}

// Stats returns mailbox counters for the given agent.
func (s *SQLStore) Stats(ctx context.Context,
	agentName string) (MailboxStats, error) {

	var stats MailboxStats

	count := func(dest *int64, query string, args ...any) error {
		err := s.db.QueryRowContext(ctx, query, args...).Scan(dest)
		if err != nil {
			return fmt.Errorf("failed to compute stats: %w",
				db.MapSQLError(err))
		}
		return nil
	}

	err := count(&stats.TotalInbox, `
		SELECT COUNT(*) FROM messages
		WHERE recipient = ? AND archived = 0
	`, agentName)
	if err != nil {
		return MailboxStats{}, err
	}

	err = count(&stats.UnreadInbox, `
		SELECT COUNT(*) FROM messages
		WHERE recipient = ? AND archived = 0 AND read = 0
	`, agentName)
	if err != nil {
		return MailboxStats{}, err
	}

	err = count(&stats.UnreadUrgent, `
		SELECT COUNT(*) FROM messages
		WHERE recipient = ? AND archived = 0 AND read = 0
		      AND priority = 'urgent'
	`, agentName)
	if err != nil {
		return MailboxStats{}, err
	}

	err = count(&stats.SentTotal, `
		SELECT COUNT(*) FROM messages WHERE sender = ?
	`, agentName)
	if err != nil {
		return MailboxStats{}, err
	}

	dayAgo := encodeTime(time.Now().UTC().Add(-24 * time.Hour))
	err = count(&stats.RecentActivity, `
		SELECT COUNT(*) FROM messages
		WHERE (sender = ? OR recipient = ?) AND created_at >= ?
	`, agentName, agentName, dayAgo)
	if err != nil {
		return MailboxStats{}, err
	}

	err = count(&stats.AgentsTotal, `SELECT COUNT(*) FROM agents`)
	if err != nil {
		return MailboxStats{}, err
	}

	err = count(&stats.DistinctThreads, `
		SELECT COUNT(DISTINCT thread_id) FROM messages
		WHERE sender = ? OR recipient = ?
	`, agentName, agentName)
	if err != nil {
		return MailboxStats{}, err
	}

	return stats, nil
}

// Cleanup purges old archived messages and stale agent rows.
func (s *SQLStore) Cleanup(ctx context.Context, archivedOlderThan,
	agentIdleFor time.Duration) (CleanupResult, error) {

	var result CleanupResult
	now := time.Now().UTC()

	res, err := s.execWrite(ctx, `
		DELETE FROM messages
		WHERE archived = 1 AND created_at < ?
	`, encodeTime(now.Add(-archivedOlderThan)))
	if err != nil {
		return result, fmt.Errorf("failed to purge messages: %w", err)
	}
	result.MessagesPurged, _ = res.RowsAffected()

	res, err = s.execWrite(ctx, `
		DELETE FROM agents
		WHERE last_seen < ?
	`, encodeTime(now.Add(-agentIdleFor)))
	if err != nil {
		return result, fmt.Errorf("failed to purge agents: %w", err)
	}
	result.AgentsPurged, _ = res.RowsAffected()

	return result, nil
}

// A compile-time assertion that SQLStore satisfies the Storage contract.
var _ Storage = (*SQLStore)(nil)
