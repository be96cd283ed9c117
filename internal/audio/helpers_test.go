package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
)

var testFrameSize = FrameBytes(FrameDuration)

func constFrame(v int16, size int) []byte {
	samples := make([]int16, size/BytesPerSample)
	for i := range samples {
		samples[i] = v
	}
	return EncodeSamples(samples)
}

// bufferOf returns a closed buffer holding one frame per value.
func bufferOf(values ...int16) *Buffer {
	b := NewBuffer()
	for _, v := range values {
		_, _ = b.Write(constFrame(v, testFrameSize))
	}
	b.CloseWrite(nil)
	return b
}

// openBufferOf is like bufferOf but the stream has not ended.
func openBufferOf(values ...int16) *Buffer {
	b := NewBuffer()
	for _, v := range values {
		_, _ = b.Write(constFrame(v, testFrameSize))
	}
	return b
}

func assertConstFrame(t *testing.T, frame []byte, want int16) {
	t.Helper()
	if len(frame) != testFrameSize {
		t.Fatalf("expected %d bytes, got %d", testFrameSize, len(frame))
	}
	for i, s := range DecodeSamples(frame) {
		if s != want {
			t.Fatalf("sample %d: expected %d, got %d", i, want, s)
		}
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []TrackEvent
}

func (o *recordingObserver) OnTrackEvent(event TrackEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) snapshot() []TrackEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]TrackEvent(nil), o.events...)
}

// failingSource returns errRead on the first read.
type failingSource struct{}

var errRead = errors.New("decoder crashed")

func (failingSource) ReadFrame(_ context.Context, _ []byte) (int, error) {
	return 0, errRead
}

// blockingSource blocks until ctx is done and records that it was released.
type blockingSource struct {
	released chan struct{}
}

func (s *blockingSource) ReadFrame(ctx context.Context, _ []byte) (int, error) {
	<-ctx.Done()
	close(s.released)
	return 0, ctx.Err()
}
