// Package migrations embeds the SQLite schema so the binary can migrate
// its database without the SQL files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/scanctl/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
