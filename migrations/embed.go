// Package migrations embeds the SQL schema migrations applied by goose
// at server startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
