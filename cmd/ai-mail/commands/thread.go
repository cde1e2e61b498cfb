package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var threadCmd = &cobra.Command{
	Use:   "thread <thread-id>",
	Short: "Show a conversation thread in chronological order",
	Args:  cobra.ExactArgs(1),
	RunE:  runThread,
}

func runThread(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, self, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()

	messages, err := svc.GetThread(ctx, self, args[0])
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(toJSONList(messages))
	}

	fmt.Printf("Thread %s (%d message(s))\n\n", args[0], len(messages))
	for _, msg := range messages {
		fmt.Printf("--- %s | %s -> %s | %s\n",
			msg.CreatedAt.Format(time.RFC3339),
			msg.Sender, msg.Recipient, msg.Subject)
		fmt.Println(msg.Body)
		fmt.Println()
	}

	return nil
}
