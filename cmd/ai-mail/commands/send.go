package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/mail"
)

var (
	sendTo       string
	sendSubject  string
	sendBody     string
	sendPriority string
	sendTags     []string
	sendReplyTo  string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message to another agent",
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "",
		"Recipient agent name (required)")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "",
		"Message subject (required)")
	sendCmd.Flags().StringVar(&sendBody, "body", "",
		"Message body (required)")
	sendCmd.Flags().StringVar(&sendPriority, "priority", "normal",
		"Priority: urgent, high, normal, low")
	sendCmd.Flags().StringSliceVar(&sendTags, "tag", nil,
		"Tag to attach (repeatable)")
	sendCmd.Flags().StringVar(&sendReplyTo, "reply-to", "",
		"ID of the message being replied to")

	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("subject")
	sendCmd.MarkFlagRequired("body")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, self, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()

	resp, err := svc.SendMail(ctx, mail.SendMailRequest{
		Self:      self,
		Recipient: sendTo,
		Subject:   sendSubject,
		Body:      sendBody,
		Priority:  sendPriority,
		Tags:      sendTags,
		ReplyTo:   sendReplyTo,
	})
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		return outputJSON(map[string]any{
			"message_id": resp.MessageID,
			"thread_id":  resp.ThreadID,
		})
	default:
		fmt.Printf("Message sent! ID: %s, Thread: %s\n",
			resp.MessageID, resp.ThreadID)
	}

	return nil
}
