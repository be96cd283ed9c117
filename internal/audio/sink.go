package audio

import (
	"context"
	"io"
	"sync"
)

// WriterSink writes raw PCM frames to an io.Writer, e.g. stdout piped into ffplay.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) WriteFrame(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(frame)
	return err
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(ctx context.Context, frame []byte) error

func (f FrameSinkFunc) WriteFrame(ctx context.Context, frame []byte) error {
	return f(ctx, frame)
}

// OpusPacketSender is the voice transport an Opus sink writes to.
type OpusPacketSender interface {
	Speaking(speaking bool) error
	SendOpus(ctx context.Context, packet []byte) error
}

type SinkTarget struct {
	Output      string
	Voice       OpusPacketSender
	OpusBitrate int
}

// SinkFactory builds the output sink for a session. The closer releases the output device.
type SinkFactory func(target SinkTarget) (FrameSink, io.Closer, error)
