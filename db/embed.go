// Package db embeds the catalog schema applied at startup.
package db

import _ "embed"

// Schema creates the merchant, product, variant and order tables. Every
// statement is idempotent so it can run on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
