package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE play_status AS ENUM ('playing', 'ended'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS track_plays (
		id BIGSERIAL PRIMARY KEY,
		handle UUID NOT NULL,
		channel INTEGER NOT NULL,
		source TEXT NOT NULL,
		status play_status NOT NULL DEFAULT 'playing',
		end_reason TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_track_plays_started ON track_plays (started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_track_plays_playing ON track_plays (handle) WHERE status = 'playing'`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
