package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/mail"
)

var (
	searchSender   string
	searchPriority string
	searchDays     int
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search your message history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchSender, "from", "",
		"Only show messages from this sender")
	searchCmd.Flags().StringVar(&searchPriority, "priority", "",
		"Only show messages of this priority")
	searchCmd.Flags().IntVar(&searchDays, "days", 0,
		"Only search the last N days (1-365, default 30)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0,
		"Maximum messages to show (1-100, default 20)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, self, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()

	messages, err := svc.Search(ctx, mail.SearchRequest{
		Self:     self,
		Query:    args[0],
		Sender:   searchSender,
		Priority: searchPriority,
		DaysBack: searchDays,
		Limit:    searchLimit,
	})
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(toJSONList(messages))
	}

	if len(messages) == 0 {
		fmt.Println("No matches")
		return nil
	}

	for _, msg := range messages {
		fmt.Print(formatMessage(msg))
	}

	return nil
}
