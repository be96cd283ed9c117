package audio

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultChannelCount = 3

type engineOptions struct {
	channels      int
	frameDuration time.Duration
	starveTimeout time.Duration
	observer      TrackObserver
}

type EngineOption func(*engineOptions)

func WithChannels(n int) EngineOption {
	return func(o *engineOptions) { o.channels = n }
}

func WithFrameDuration(d time.Duration) EngineOption {
	return func(o *engineOptions) { o.frameDuration = d }
}

// WithStarveTimeout bounds how long a channel waits for its source each tick.
func WithStarveTimeout(d time.Duration) EngineOption {
	return func(o *engineOptions) { o.starveTimeout = d }
}

func WithObserver(observer TrackObserver) EngineOption {
	return func(o *engineOptions) { o.observer = observer }
}

type EngineStats struct {
	Frames        uint64
	SilentFrames  uint64
	StarvedPulls  uint64
	ActiveTracks  int
	ChannelsTotal int
}

// Engine mixes a fixed set of channels into one PCM stream. It is itself a Source.
type Engine struct {
	frameDuration time.Duration
	frameSize     int
	channels      []*channel
	registry      *Registry

	readMu  sync.Mutex
	pending []byte
	closed  atomic.Bool

	frames       atomic.Uint64
	silentFrames atomic.Uint64
	starvedPulls atomic.Uint64
}

func NewEngine(opts ...EngineOption) *Engine {
	o := engineOptions{
		channels:      DefaultChannelCount,
		frameDuration: FrameDuration,
		starveTimeout: DefaultStarveTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.channels < 1 {
		o.channels = 1
	}
	if o.frameDuration < time.Millisecond {
		o.frameDuration = FrameDuration
	}

	channels := make([]*channel, o.channels)
	for i := range channels {
		channels[i] = newChannel(i, o.starveTimeout)
	}
	return &Engine{
		frameDuration: o.frameDuration,
		frameSize:     FrameBytes(o.frameDuration),
		channels:      channels,
		registry:      newRegistry(channels, o.observer),
	}
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) FrameSize() int {
	return e.frameSize
}

func (e *Engine) FrameDuration() time.Duration {
	return e.frameDuration
}

// ProduceFrame pulls one frame from every channel and returns the clamped sum.
// The result always has FrameSize bytes.
func (e *Engine) ProduceFrame(ctx context.Context) []byte {
	e.frames.Add(1)
	if e.closed.Load() {
		e.silentFrames.Add(1)
		return make([]byte, e.frameSize)
	}

	pulled := make([][]int32, len(e.channels))
	statuses := make([]FrameStatus, len(e.channels))
	var wg sync.WaitGroup
	for i, ch := range e.channels {
		wg.Go(func() {
			pulled[i], statuses[i] = ch.produceFrame(ctx, e.frameSize)
		})
	}
	wg.Wait()

	audible := false
	for _, st := range statuses {
		switch st {
		case FramePlayed, FrameEnded:
			audible = true
		case FrameStarved:
			e.starvedPulls.Add(1)
		}
	}
	if !audible {
		e.silentFrames.Add(1)
	}
	return mixFrames(pulled, e.frameSize)
}

func mixFrames(frames [][]int32, size int) []byte {
	out := make([]byte, size)
	for i := 0; i < size/BytesPerSample; i++ {
		var sum int32
		for _, f := range frames {
			sum += f[i]
		}
		putSample(out, i, clampPCM(sum))
	}
	return out
}

// ReadFrame fills p with mixed audio, producing as many frames as needed.
func (e *Engine) ReadFrame(ctx context.Context, p []byte) (int, error) {
	e.readMu.Lock()
	defer e.readMu.Unlock()
	if e.closed.Load() {
		return 0, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for n < len(p) {
		if len(e.pending) == 0 {
			e.pending = e.ProduceFrame(ctx)
		}
		c := copy(p[n:], e.pending)
		e.pending = e.pending[c:]
		n += c
	}
	return n, nil
}

// Close stops every track. Subsequent frames are silent.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.registry.close()
	return nil
}

func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Frames:        e.frames.Load(),
		SilentFrames:  e.silentFrames.Load(),
		StarvedPulls:  e.starvedPulls.Load(),
		ActiveTracks:  e.registry.Active(),
		ChannelsTotal: len(e.channels),
	}
}
