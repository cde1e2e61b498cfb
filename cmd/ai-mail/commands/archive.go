package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <message-id>",
	Short: "Archive a message from your inbox",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchive,
}

func runArchive(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, self, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := svc.ArchiveMessage(ctx, self, args[0]); err != nil {
		return err
	}

	fmt.Printf("Archived %s\n", args[0])
	return nil
}
