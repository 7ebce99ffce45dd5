package pgstore

import "embed"

// Migrations holds the goose migrations for the gallery schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS
