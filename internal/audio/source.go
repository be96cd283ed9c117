package audio

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Source is a pull-based PCM byte source (48 kHz, s16le, stereo interleaved).
//
// ReadFrame fills p completely and returns len(p), nil when enough data is buffered.
// When the stream has ended it returns the remaining bytes (possibly zero) and io.EOF.
// Otherwise it blocks until data arrives or ctx is done, in which case it returns 0 and
// ctx.Err() without consuming anything. Any other error is a read failure.
type Source interface {
	ReadFrame(ctx context.Context, p []byte) (int, error)
}

var ErrBufferClosed = errors.New("audio: write to closed buffer")

// Buffer is an in-memory Source fed by a decoder goroutine.
type Buffer struct {
	mu      sync.Mutex
	data    []byte
	ended   bool
	err     error
	closed  bool
	notify  chan struct{}
	onClose func()
}

func NewBuffer() *Buffer {
	return &Buffer{notify: make(chan struct{})}
}

// OnClose registers fn to run once when the reader closes the buffer. The decoder uses it to stop early.
func (b *Buffer) OnClose(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onClose = fn
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.ended {
		return 0, ErrBufferClosed
	}
	b.data = append(b.data, p...)
	b.wakeLocked()
	return len(p), nil
}

// CloseWrite marks the end of the stream. A non-nil err is reported to the reader
// once the buffered data has been drained.
func (b *Buffer) CloseWrite(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return
	}
	b.ended = true
	b.err = err
	b.wakeLocked()
}

func (b *Buffer) wakeLocked() {
	close(b.notify)
	b.notify = make(chan struct{})
}

// Buffered returns the number of bytes waiting to be read.
func (b *Buffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *Buffer) ReadFrame(ctx context.Context, p []byte) (int, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return 0, io.EOF
		}
		if len(b.data) >= len(p) {
			n := copy(p, b.data)
			b.data = b.data[n:]
			b.mu.Unlock()
			return n, nil
		}
		if b.ended {
			n := copy(p, b.data)
			b.data = nil
			err := b.err
			b.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return n, err
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (b *Buffer) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.data = nil
	fn := b.onClose
	b.wakeLocked()
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Opener turns a file path or URL into a track Source. Decoding happens off the tick goroutine.
type Opener interface {
	Open(ctx context.Context, pathOrURL string) (Source, error)
}
