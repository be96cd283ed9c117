package repository

import (
	"context"
	"time"
)

type RecordTrackStartedInput struct {
	Handle    string
	Channel   int
	Source    string
	StartedAt time.Time
}

type RecordTrackEndedInput struct {
	Handle    string
	EndReason string
	Error     string
	EndedAt   time.Time
}

// PlaybackRepository keeps a history of played tracks. It is never read back into the mixer.
type PlaybackRepository interface {
	RecordTrackStarted(ctx context.Context, input RecordTrackStartedInput) error
	RecordTrackEnded(ctx context.Context, input RecordTrackEndedInput) error
	ListRecentPlays(ctx context.Context, limit int) ([]PlaybackRecord, error)
}
