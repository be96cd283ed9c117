package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	schedulerStatsInterval = 5 * time.Second
	// After falling this many periods behind, the schedule restarts from now instead of bursting to catch up.
	maxLagPeriods = 5
)

type FrameProducer interface {
	ProduceFrame(ctx context.Context) []byte
}

type FrameSink interface {
	WriteFrame(ctx context.Context, frame []byte) error
}

type SchedulerStats struct {
	Frames   uint64
	Overruns uint64
	Resyncs  uint64
}

// Scheduler drives a FrameProducer at a fixed period and hands every frame to a FrameSink in order.
type Scheduler struct {
	producer FrameProducer
	sink     FrameSink
	period   time.Duration

	frames   atomic.Uint64
	overruns atomic.Uint64
	resyncs  atomic.Uint64
}

func NewScheduler(producer FrameProducer, sink FrameSink, period time.Duration) *Scheduler {
	if period <= 0 {
		period = FrameDuration
	}
	return &Scheduler{
		producer: producer,
		sink:     sink,
		period:   period,
	}
}

// Run blocks until ctx is cancelled or the sink fails.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	statsTicker := time.NewTicker(schedulerStatsInterval)
	defer statsTicker.Stop()

	slog.Info("mixer scheduler started", "period", s.period)
	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("mixer scheduler stopped by context cancel", s.statsAttrs()...)
			return nil
		case <-statsTicker.C:
			slog.Info("mixer scheduler stats", s.statsAttrs()...)
			continue
		case <-timer.C:
		}

		frame := s.producer.ProduceFrame(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err := s.sink.WriteFrame(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to write mixed frame: %w", err)
		}
		s.frames.Add(1)

		var delay time.Duration
		var resync bool
		next, delay, resync = nextCycle(next, time.Now(), s.period)
		if delay == 0 {
			s.overruns.Add(1)
		}
		if resync {
			s.resyncs.Add(1)
			slog.Debug("mixer scheduler fell behind; resynchronizing", "period", s.period)
		}
		timer.Reset(delay)
	}
}

// nextCycle advances the scheduled start by one period and returns how long to wait for it.
// The delay never goes below zero. Deadlines are kept on an absolute grid so timer lateness
// does not accumulate.
func nextCycle(scheduled, now time.Time, period time.Duration) (time.Time, time.Duration, bool) {
	next := scheduled.Add(period)
	delay := next.Sub(now)
	if delay >= 0 {
		return next, delay, false
	}
	if -delay > maxLagPeriods*period {
		return now, 0, true
	}
	return next, 0, false
}

func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Frames:   s.frames.Load(),
		Overruns: s.overruns.Load(),
		Resyncs:  s.resyncs.Load(),
	}
}

func (s *Scheduler) statsAttrs() []any {
	st := s.Stats()
	attrs := []any{"frames", st.Frames, "overruns", st.Overruns, "resyncs", st.Resyncs}
	if e, ok := s.producer.(*Engine); ok {
		es := e.Stats()
		attrs = append(attrs, "silent_frames", es.SilentFrames, "starved_pulls", es.StarvedPulls, "active_tracks", es.ActiveTracks)
	}
	return attrs
}
