package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <message-id>",
	Short: "Permanently delete a message from your inbox",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, self, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := svc.DeleteMessage(ctx, self, args[0]); err != nil {
		return err
	}

	fmt.Printf("Deleted %s\n", args[0])
	return nil
}
