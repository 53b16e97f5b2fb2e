package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0001_create_users.sql
var createUsersSQL string

func init() {
	Migrations.MustRegister(
		execUp(createUsersSQL),
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS user_online_days; DROP TABLE IF EXISTS users`)
			return err
		},
	)
}
