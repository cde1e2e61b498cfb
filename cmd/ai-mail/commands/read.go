package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <message-id>",
	Short: "Read a message and mark it as read",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, self, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()

	msg, err := svc.ReadMessage(ctx, self, args[0])
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(toJSON(msg))
	}

	fmt.Printf("Subject: %s\n", msg.Subject)
	fmt.Printf("From: %s\n", msg.Sender)
	fmt.Printf("Date: %s\n", msg.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Priority: %s\n", msg.Priority)
	if len(msg.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(msg.Tags, ", "))
	}
	if msg.ReplyTo != "" {
		fmt.Printf("In-Reply-To: %s\n", msg.ReplyTo)
	}
	fmt.Printf("Thread: %s\n\n", msg.ThreadID)
	fmt.Println(msg.Body)

	return nil
}
