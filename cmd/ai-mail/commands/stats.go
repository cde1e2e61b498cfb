package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mailbox statistics for your agent",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, self, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()

	stats, err := svc.GetStats(ctx, self)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(map[string]any{
			"agent":            self,
			"total_inbox":      stats.TotalInbox,
			"unread_inbox":     stats.UnreadInbox,
			"unread_urgent":    stats.UnreadUrgent,
			"sent_total":       stats.SentTotal,
			"recent_activity":  stats.RecentActivity,
			"agents_total":     stats.AgentsTotal,
			"distinct_threads": stats.DistinctThreads,
		})
	}

	fmt.Printf("Mailbox stats for %s\n", self)
	fmt.Printf("  inbox total:      %d\n", stats.TotalInbox)
	fmt.Printf("  inbox unread:     %d\n", stats.UnreadInbox)
	fmt.Printf("  unread urgent:    %d\n", stats.UnreadUrgent)
	fmt.Printf("  sent total:       %d\n", stats.SentTotal)
	fmt.Printf("  recent activity:  %d\n", stats.RecentActivity)
	fmt.Printf("  agents total:     %d\n", stats.AgentsTotal)
	fmt.Printf("  distinct threads: %d\n", stats.DistinctThreads)

	return nil
}
