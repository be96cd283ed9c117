package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/foxseedlab/otomaze/internal/repository"
)

// MemoryRepository is used when no database is configured. History is lost on restart.
type MemoryRepository struct {
	mu      sync.Mutex
	records []repository.PlaybackRecord
	// handle -> index of its playing record
	playing map[string]int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{playing: make(map[string]int)}
}

func (r *MemoryRepository) RecordTrackStarted(_ context.Context, input repository.RecordTrackStartedInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing[input.Handle] = len(r.records)
	r.records = append(r.records, repository.PlaybackRecord{
		Handle:    input.Handle,
		Channel:   input.Channel,
		Source:    input.Source,
		Status:    repository.PlayStatusPlaying,
		StartedAt: input.StartedAt,
	})
	return nil
}

func (r *MemoryRepository) RecordTrackEnded(_ context.Context, input repository.RecordTrackEndedInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.playing[input.Handle]
	if !ok {
		return nil
	}
	delete(r.playing, input.Handle)
	endedAt := input.EndedAt
	rec := &r.records[i]
	rec.Status = repository.PlayStatusEnded
	rec.EndReason = input.EndReason
	rec.Error = input.Error
	rec.EndedAt = &endedAt
	return nil
}

func (r *MemoryRepository) ListRecentPlays(_ context.Context, limit int) ([]repository.PlaybackRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := slices.Clone(r.records)
	slices.Reverse(list)
	slices.SortStableFunc(list, func(a, b repository.PlaybackRecord) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
