package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations holds every schema change; each file registers one version named after its file.
var Migrations = migrate.NewMigrations()

func execUp(sql string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, sql)
		return err
	}
}
