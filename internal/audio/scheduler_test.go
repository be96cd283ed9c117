package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNextCycle(t *testing.T) {
	period := 20 * time.Millisecond
	base := time.Unix(1000, 0)

	tests := []struct {
		name       string
		now        time.Time
		wantNext   time.Time
		wantDelay  time.Duration
		wantResync bool
	}{
		{name: "on time", now: base.Add(5 * time.Millisecond), wantNext: base.Add(period), wantDelay: 15 * time.Millisecond},
		{name: "exactly at deadline", now: base.Add(period), wantNext: base.Add(period), wantDelay: 0},
		{name: "overrun floors at zero", now: base.Add(30 * time.Millisecond), wantNext: base.Add(period), wantDelay: 0},
		{name: "far behind resyncs", now: base.Add(time.Second), wantNext: base.Add(time.Second), wantDelay: 0, wantResync: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, delay, resync := nextCycle(base, tt.now, period)
			if !next.Equal(tt.wantNext) || delay != tt.wantDelay || resync != tt.wantResync {
				t.Fatalf("got next=%v delay=%v resync=%v", next.Sub(base), delay, resync)
			}
		})
	}
}

func TestNextCycle_DoesNotAccumulateLateness(t *testing.T) {
	period := 20 * time.Millisecond
	scheduled := time.Unix(0, 0)
	for i := 0; i < 50; i++ {
		// every wake-up is 1ms late
		now := scheduled.Add(time.Millisecond)
		scheduled, _, _ = nextCycle(scheduled, now, period)
	}
	if want := time.Unix(0, 0).Add(50 * period); !scheduled.Equal(want) {
		t.Fatalf("expected schedule to stay on grid, drift=%v", scheduled.Sub(want))
	}
}

type countingProducer struct {
	mu sync.Mutex
	n  int
}

func (p *countingProducer) ProduceFrame(_ context.Context) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return constFrame(int16(p.n), 8)
}

type collectingSink struct {
	mu     sync.Mutex
	frames [][]byte
	failAt int
}

func (s *collectingSink) WriteFrame(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.frames)+1 == s.failAt {
		return errors.New("voice connection lost")
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestScheduler_DeliversFramesInOrder(t *testing.T) {
	sink := &collectingSink{}
	s := NewScheduler(&countingProducer{}, sink, 2*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.frames) < 5 {
		t.Fatalf("expected at least 5 frames, got %d", len(sink.frames))
	}
	for i, f := range sink.frames {
		if got := DecodeSamples(f)[0]; int(got) != i+1 {
			t.Fatalf("frame %d out of order: got %d", i, got)
		}
	}
	if s.Stats().Frames != uint64(len(sink.frames)) {
		t.Fatalf("stats mismatch: %d vs %d", s.Stats().Frames, len(sink.frames))
	}
}

func TestScheduler_StopsOnSinkError(t *testing.T) {
	sink := &collectingSink{failAt: 3}
	s := NewScheduler(&countingProducer{}, sink, time.Millisecond)
	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected sink error")
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 frames before failure, got %d", sink.count())
	}
}

func TestScheduler_DrivesEngineAtNominalRate(t *testing.T) {
	e := NewEngine(WithFrameDuration(10 * time.Millisecond))
	defer e.Close()
	_, _ = e.Registry().Allocate(NewToneSource(440, 0.5, time.Second), false)

	var mu sync.Mutex
	var frames int
	sink := FrameSinkFunc(func(_ context.Context, frame []byte) error {
		if len(frame) != FrameBytes(10*time.Millisecond) {
			t.Errorf("unexpected frame size %d", len(frame))
		}
		mu.Lock()
		frames++
		mu.Unlock()
		return nil
	})
	s := NewScheduler(e, sink, e.FrameDuration())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// 200ms at 10ms per frame; allow slack for slow CI machines but reject free-running loops.
	if frames < 5 || frames > 25 {
		t.Fatalf("expected roughly 20 frames, got %d", frames)
	}
}
