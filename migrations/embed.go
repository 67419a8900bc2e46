// Package migrations embeds the gateway's SQL migration files into the
// binary so the local store can be created without files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

// Source returns the embedded migrations for database.DB.Migrate.
func Source() database.Source {
	return database.Source{FS: files, Dir: "."}
}
