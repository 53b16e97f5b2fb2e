package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0003_create_quiz_bank.sql
var createQuizBankSQL string

func init() {
	Migrations.MustRegister(
		execUp(createQuizBankSQL),
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS quiz_bank`)
			return err
		},
	)
}
