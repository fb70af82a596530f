package postgres

import (
	"context"
	"embed"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taldoflemis/trattoria/pacchetto"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	return pacchetto.RunMigrations(ctx, pool, sub)
}
