// Package migrations holds the goose SQL migrations for the placement catalog.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
