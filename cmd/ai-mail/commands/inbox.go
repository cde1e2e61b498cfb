package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/mail"
)

var (
	inboxAll      bool
	inboxLimit    int
	inboxPriority string
	inboxTag      string
	inboxDays     int
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Check your inbox",
	RunE:  runInbox,
}

func init() {
	inboxCmd.Flags().BoolVar(&inboxAll, "all", false,
		"Include messages already read")
	inboxCmd.Flags().IntVar(&inboxLimit, "limit", 0,
		"Maximum messages to show (1-100, default 10)")
	inboxCmd.Flags().StringVar(&inboxPriority, "priority", "",
		"Only show messages of this priority")
	inboxCmd.Flags().StringVar(&inboxTag, "tag", "",
		"Only show messages carrying this tag")
	inboxCmd.Flags().IntVar(&inboxDays, "days", 0,
		"Only show messages from the last N days (default 7)")
}

func runInbox(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, self, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()

	messages, err := svc.CheckMail(ctx, mail.CheckMailRequest{
		Self:       self,
		UnreadOnly: !inboxAll,
		Limit:      inboxLimit,
		Priority:   inboxPriority,
		Tag:        inboxTag,
		DaysBack:   inboxDays,
	})
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(toJSONList(messages))
	}

	if len(messages) == 0 {
		fmt.Println("No new mail")
		return nil
	}

	for _, msg := range messages {
		fmt.Print(formatMessage(msg))
	}

	return nil
}
