package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var agentsActiveOnly bool

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents registered on this machine",
	RunE:  runAgents,
}

func init() {
	agentsCmd.Flags().BoolVar(&agentsActiveOnly, "active", false,
		"Only show agents seen in the last hour")
}

func runAgents(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, _, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()

	agents, err := svc.ListAgents(ctx, agentsActiveOnly)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		type agentJSON struct {
			Name     string `json:"name"`
			Status   string `json:"status"`
			LastSeen string `json:"last_seen"`
		}
		out := make([]agentJSON, 0, len(agents))
		for _, a := range agents {
			out = append(out, agentJSON{
				Name:   a.Name,
				Status: string(a.Status),
				LastSeen: a.LastSeen.UTC().Format(
					time.RFC3339),
			})
		}
		return outputJSON(out)
	}

	if len(agents) == 0 {
		fmt.Println("No agents registered")
		return nil
	}

	for _, a := range agents {
		fmt.Printf("%-30s %-8s last seen %s\n",
			a.Name, a.Status,
			a.LastSeen.UTC().Format(time.RFC3339))
	}

	return nil
}
