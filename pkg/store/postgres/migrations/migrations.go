// Package migrations embeds the SQL migration files so they ship inside
// the compiled binary rather than as files the operator must deploy
// alongside it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
