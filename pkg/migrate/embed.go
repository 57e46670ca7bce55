package migrate

import "embed"

// Migrations holds the SQL files shipped inside the binary for auto-run.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const embeddedDir = "migrations"
