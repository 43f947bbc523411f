// Package migrations embeds the chimed schema into the binary.
//
// Importing the package for side effects registers the SQL files with the
// database package, so Migrate works without files on disk.
package migrations

import (
	"embed"

	"github.com/virtualchime/chime-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(migrationsFS, ".")
}
