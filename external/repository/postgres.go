package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/otomaze/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) RecordTrackStarted(ctx context.Context, input repository.RecordTrackStartedInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO track_plays (handle, channel, source, status, started_at)
		 VALUES ($1, $2, $3, 'playing', $4)`,
		input.Handle, input.Channel, input.Source, input.StartedAt)
	return err
}

// RecordTrackEnded closes the open play for the handle. A replaced track keeps its handle, so
// a handle can own several rows but at most one is playing.
func (r *PostgresRepository) RecordTrackEnded(ctx context.Context, input repository.RecordTrackEndedInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE track_plays SET status = 'ended', end_reason = $2, error = $3, ended_at = $4
		 WHERE handle = $1 AND status = 'playing'`,
		input.Handle, input.EndReason, input.Error, input.EndedAt)
	return err
}

func (r *PostgresRepository) ListRecentPlays(ctx context.Context, limit int) ([]repository.PlaybackRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT handle::text, channel, source, status::text, end_reason, error, started_at, ended_at
		 FROM track_plays ORDER BY started_at DESC, id DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.PlaybackRecord, error) {
		var rec repository.PlaybackRecord
		var endedAt *time.Time
		err := row.Scan(&rec.Handle, &rec.Channel, &rec.Source, &rec.Status, &rec.EndReason, &rec.Error, &rec.StartedAt, &endedAt)
		rec.EndedAt = endedAt
		return rec, err
	})
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}
