// Package migrations holds the PostgreSQL schema for links and browser
// sessions.
package migrations

import "embed"

// FS contains the embedded up and down migrations.
//
//go:embed *.sql
var FS embed.FS
