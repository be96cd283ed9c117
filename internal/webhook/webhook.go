package webhook

import (
	"context"
	"time"
)

type PlaybackEvent struct {
	Event      string    `json:"event"`
	Handle     string    `json:"handle"`
	Channel    int       `json:"channel"`
	Source     string    `json:"source"`
	EndReason  string    `json:"end_reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Sender interface {
	SendPlaybackEvent(ctx context.Context, event PlaybackEvent) error
}
