// Package migrations embeds the SQL migration files into the binary so the
// journal schema can be applied without shipping loose files.
package migrations

import (
	"embed"

	"github.com/dellis86/sidekick/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files sit at the root of the embedded FS
}
