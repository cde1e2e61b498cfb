package commands

import (
	"github.com/spf13/cobra"
)

var (
	// dataDir is the directory holding the mailbox database.
	dataDir string

	// agentName is the agent to act as.
	agentName string

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "ai-mail",
	Short: "Local inter-agent mailbox CLI",
	Long: `ai-mail reads and writes the shared agent mailbox directly.

Use it to send and receive messages between agents on this machine, inspect
conversation threads, and check mailbox statistics. The MCP daemon
(ai-maild) serves the same mailbox to connected agents.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dataDir, "data-dir", "",
		"Mailbox data directory (default: $AI_MAIL_DATA_DIR or ~/.ai_mail)",
	)
	rootCmd.PersistentFlags().StringVar(
		&agentName, "agent", "",
		"Agent name to act as (default: $AI_AGENT_NAME or autodetected)",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(statsCmd)
}
