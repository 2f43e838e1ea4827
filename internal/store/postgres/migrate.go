package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/pumpwatch/internal/store/postgres/migrations"
)

// Migrate applies all pending embedded migrations against connStr.
func Migrate(ctx context.Context, connStr string) error {
	return runMigrations(ctx, connStr, migrations.FS)
}

func runMigrations(ctx context.Context, connStr string, fsys fs.FS) error {
	// goose works on database/sql, so open a separate handle through the
	// pgx stdlib driver.
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("postgres.Migrate: open: %w", err)
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("postgres.Migrate: provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("postgres.Migrate: up: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("postgres.Migrate: migration %d (%s): %w", r.Source.Version, r.Source.Path, r.Error)
		}
		log.Info().
			Int64("version", r.Source.Version).
			Str("file", r.Source.Path).
			Dur("duration", r.Duration).
			Msg("migration applied")
	}

	if len(results) == 0 {
		log.Debug().Msg("all migrations already applied")
	}

	return nil
}
