package db

import "embed"

// sqlSchemas embeds the mailbox schema migrations so a single binary can
// bootstrap a fresh database without any files on disk.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS
