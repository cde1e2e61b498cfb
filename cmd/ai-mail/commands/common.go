package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/TimeLordRaps/ai-mail-mcp/internal/agent"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/db"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/mail"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

// openEnv opens the mailbox and builds the kernel for one CLI invocation.
// The returned close function checkpoints and closes the store.
func openEnv() (*mail.Service, string, func(), error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	dir := dataDir
	if dir == "" {
		var err error
		dir, err = db.DefaultDataDir()
		if err != nil {
			return nil, "", nil, err
		}
	}

	mailStore, err := store.Open(db.DBPath(dir), logger)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to open mailbox: %w",
			err)
	}

	self, err := resolveSelf()
	if err != nil {
		mailStore.Close()
		return nil, "", nil, err
	}

	closeFn := func() {
		if err := mailStore.Close(); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
	}

	return mail.NewService(mailStore, logger), self, closeFn, nil
}

// resolveSelf picks the acting agent name from the flag or detection.
func resolveSelf() (string, error) {
	if agentName != "" {
		name, ok := agent.SanitizeName(agentName)
		if !ok {
			return "", fmt.Errorf("invalid agent name %q", agentName)
		}
		return name, nil
	}

	return agent.DetectName(), nil
}

// outputJSON renders a value as indented JSON on stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatMessage renders a one-message summary for text output.
func formatMessage(msg store.Message) string {
	var sb strings.Builder

	switch msg.Priority {
	case store.PriorityUrgent:
		sb.WriteString("[URGENT] ")
	case store.PriorityHigh:
		sb.WriteString("[high] ")
	case store.PriorityLow:
		sb.WriteString("[low] ")
	}

	if !msg.Read {
		sb.WriteString("* ")
	}

	sb.WriteString(fmt.Sprintf("%s: %s\n", msg.ID, msg.Subject))
	sb.WriteString(fmt.Sprintf("  From: %s | %s\n",
		msg.Sender, msg.CreatedAt.Format(time.RFC3339)))

	if len(msg.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("  Tags: %s\n",
			strings.Join(msg.Tags, ", ")))
	}

	return sb.String()
}

// messageJSON is the JSON output shape for a message.
type messageJSON struct {
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

// toJSON converts a message to its JSON output shape.
func toJSON(msg store.Message) messageJSON {
	tags := msg.Tags
	if tags == nil {
		tags = []string{}
	}

	return messageJSON{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Priority:  string(msg.Priority),
		Tags:      tags,
		ReplyTo:   msg.ReplyTo,
		ThreadID:  msg.ThreadID,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
		Read:      msg.Read,
		Archived:  msg.Archived,
	}
}

// toJSONList converts a message slice to its JSON output shape.
func toJSONList(messages []store.Message) []messageJSON {
	out := make([]messageJSON, 0, len(messages))
	for _, m := range messages {
		out = append(out, toJSON(m))
	}
	return out
}
