// Package db embeds the SQL schema applied on startup.
package db

import _ "embed"

// Schema contains the DDL for all catalog tables. The statements are
// idempotent, so re-applying the schema on every start is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
