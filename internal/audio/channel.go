package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

const (
	DefaultStarveTimeout = 15 * time.Millisecond
	MaxGain              = 16.0
)

var ErrInvalidVolume = fmt.Errorf("audio: volume must be a finite value between 0 and %v", MaxGain)

type EndReason string

const (
	EndStopped  EndReason = "stopped"
	EndReplaced EndReason = "replaced"
	EndFinished EndReason = "finished"
	EndFailed   EndReason = "failed"
)

type FrameStatus int

const (
	FrameIdle FrameStatus = iota
	FramePaused
	FramePlayed
	FrameStarved
	FrameEnded
)

// channel is one fixed mixing slot. It owns at most one source at a time.
// Only the Registry mutates it; callers see a ChannelState snapshot.
type channel struct {
	index         int
	starveTimeout time.Duration

	mu       sync.Mutex
	source   Source
	gen      uint64
	trackCtx context.Context
	cancel   context.CancelFunc
	paused   bool
	gain     float64

	onEnd func(gen uint64, reason EndReason, err error)
}

func newChannel(index int, starveTimeout time.Duration) *channel {
	return &channel{
		index:         index,
		starveTimeout: starveTimeout,
		gain:          1,
	}
}

// play installs src as the current source and returns its generation. Any previous
// source is cancelled and closed immediately. Pause state and gain are left as they are
// unless startPaused is set.
func (c *channel) play(src Source, startPaused bool) uint64 {
	c.mu.Lock()
	prev := c.detachLocked()
	c.source = src
	c.trackCtx, c.cancel = context.WithCancel(context.Background())
	if startPaused {
		c.paused = true
	}
	gen := c.gen
	c.mu.Unlock()

	closeSource(prev)
	return gen
}

func (c *channel) stop() {
	c.mu.Lock()
	prev := c.detachLocked()
	c.mu.Unlock()
	closeSource(prev)
}

func (c *channel) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *channel) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *channel) setVolume(gain float64) error {
	if !validGain(gain) {
		return ErrInvalidVolume
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gain = gain
	return nil
}

// ChannelState is a read-only view of a channel at one instant.
type ChannelState struct {
	Index  int
	Paused bool
	Volume float64
}

func (c *channel) state() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChannelState{Index: c.index, Paused: c.paused, Volume: c.gain}
}

func (c *channel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.gain = 1
}

// detachLocked clears the current source and bumps the generation so that
// an in-flight read for the old source is discarded.
func (c *channel) detachLocked() Source {
	if c.cancel != nil {
		c.cancel()
	}
	prev := c.source
	c.source = nil
	c.trackCtx = nil
	c.cancel = nil
	c.gen++
	return prev
}

// produceFrame returns size/2 gain-scaled samples. The samples are not clamped.
func (c *channel) produceFrame(ctx context.Context, size int) ([]int32, FrameStatus) {
	out := make([]int32, size/BytesPerSample)

	c.mu.Lock()
	src, gen, trackCtx, paused := c.source, c.gen, c.trackCtx, c.paused
	c.mu.Unlock()
	if src == nil {
		return out, FrameIdle
	}
	if paused {
		return out, FramePaused
	}

	buf := make([]byte, size)
	readCtx, cancel := context.WithTimeout(trackCtx, c.starveTimeout)
	stop := context.AfterFunc(ctx, cancel)
	n, err := src.ReadFrame(readCtx, buf)
	stop()
	cancel()
	if trackCtx.Err() != nil {
		// stopped or replaced while reading
		return out, FrameIdle
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		slog.Debug("mixer channel starved", "channel", c.index, "error", err)
		return out, FrameStarved
	}

	c.mu.Lock()
	if c.gen != gen || c.source == nil {
		c.mu.Unlock()
		return out, FrameIdle
	}
	gain := c.gain
	var prev Source
	if err != nil {
		prev = c.detachLocked()
	}
	c.mu.Unlock()

	applyGain(out, buf[:n], gain)
	if err == nil {
		return out, FramePlayed
	}

	closeSource(prev)
	reason := EndFinished
	if !errors.Is(err, io.EOF) {
		reason = EndFailed
		slog.Warn("track source read failed; treating as end of stream", "channel", c.index, "error", err)
	}
	if c.onEnd != nil {
		c.onEnd(gen, reason, err)
	}
	return out, FrameEnded
}

func applyGain(out []int32, pcm []byte, gain float64) {
	n := len(pcm) / BytesPerSample
	if gain == 1 {
		for i := 0; i < n; i++ {
			out[i] = int32(sampleAt(pcm, i))
		}
		return
	}
	for i := 0; i < n; i++ {
		out[i] = int32(float64(sampleAt(pcm, i)) * gain)
	}
}

func validGain(gain float64) bool {
	return !math.IsNaN(gain) && gain >= 0 && gain <= MaxGain
}

func closeSource(src Source) {
	c, ok := src.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("failed to close track source", "error", err)
	}
}
