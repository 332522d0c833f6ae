// Package db provides the embedded goods schema.
package db

import _ "embed"

// Schema contains the DDL statements for the goods table.
//
//go:embed migrations/001_schema.sql
var Schema string
