package migrations

import "embed"

// FS contains embedded SQLite migrations for the durable rendezvous tier.
//
//go:embed *.sql
var FS embed.FS
