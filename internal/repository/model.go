package repository

import "time"

type PlayStatus string

const (
	PlayStatusPlaying PlayStatus = "playing"
	PlayStatusEnded   PlayStatus = "ended"
)

type PlaybackRecord struct {
	Handle    string
	Channel   int
	Source    string
	Status    PlayStatus
	EndReason string
	Error     string
	StartedAt time.Time
	EndedAt   *time.Time
}
