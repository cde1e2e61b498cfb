package main

import (
	"os"

	"github.com/TimeLordRaps/ai-mail-mcp/cmd/ai-mail/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
