// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains the schema migrations for every supported driver.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Directories within FS, one per driver.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
