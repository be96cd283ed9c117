package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCapacityExceeded = errors.New("audio: too many concurrent tracks")
	ErrNilSource        = errors.New("audio: source is nil")
	ErrMixerClosed      = errors.New("audio: mixer is closed")
)

// Handle identifies a live track-to-channel assignment.
type Handle uuid.UUID

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

func (h Handle) IsZero() bool {
	return h == Handle{}
}

func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Handle{}, fmt.Errorf("invalid track handle %q: %w", s, err)
	}
	return Handle(id), nil
}

type TrackEventKind string

const (
	TrackStarted TrackEventKind = "started"
	TrackEnded   TrackEventKind = "ended"
)

type TrackEvent struct {
	Kind    TrackEventKind
	Handle  Handle
	Channel int
	Label   string
	Reason  EndReason
	Err     error
	At      time.Time
}

// TrackObserver is notified of track lifecycle changes. It is called with the
// registry lock held, possibly from the tick goroutine, so it must not block
// or call back into the registry.
type TrackObserver interface {
	OnTrackEvent(event TrackEvent)
}

type binding struct {
	channel int
	gen     uint64
	label   string
}

// Registry maps live handles to channels.
type Registry struct {
	mu       sync.Mutex
	channels []*channel
	owners   []Handle
	bindings map[Handle]binding
	observer TrackObserver
	closed   bool
}

func newRegistry(channels []*channel, observer TrackObserver) *Registry {
	r := &Registry{
		channels: channels,
		owners:   make([]Handle, len(channels)),
		bindings: make(map[Handle]binding, len(channels)),
		observer: observer,
	}
	for i, ch := range channels {
		ch.onEnd = func(gen uint64, reason EndReason, err error) {
			r.release(i, gen, reason, err)
		}
	}
	return r
}

func (r *Registry) Capacity() int {
	return len(r.channels)
}

func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

// Allocate binds src to the first free channel.
func (r *Registry) Allocate(src Source, startPaused bool) (Handle, error) {
	if src == nil {
		return Handle{}, ErrNilSource
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Handle{}, ErrMixerClosed
	}

	idx := -1
	for i, h := range r.owners {
		if h.IsZero() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Handle{}, ErrCapacityExceeded
	}

	h := r.newHandleLocked()
	gen := r.channels[idx].play(src, startPaused)
	b := binding{channel: idx, gen: gen, label: describeSource(src)}
	r.owners[idx] = h
	r.bindings[h] = b
	r.emitLocked(TrackEvent{Kind: TrackStarted, Handle: h, Channel: idx, Label: b.label})
	return h, nil
}

func (r *Registry) newHandleLocked() Handle {
	for {
		h := Handle(uuid.New())
		if _, exists := r.bindings[h]; !exists && !h.IsZero() {
			return h
		}
	}
}

// Lookup reports the state of the channel bound to h.
func (r *Registry) Lookup(h Handle) (ChannelState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[h]
	if !ok {
		return ChannelState{}, false
	}
	return r.channels[b.channel].state(), true
}

// Free stops the track and releases its channel. Unknown handles are ignored.
func (r *Registry) Free(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[h]
	if !ok {
		return
	}
	r.channels[b.channel].stop()
	r.unbindLocked(h, b)
	r.emitLocked(TrackEvent{Kind: TrackEnded, Handle: h, Channel: b.channel, Label: b.label, Reason: EndStopped})
}

func (r *Registry) Stop(h Handle) {
	r.Free(h)
}

// ChangeTrack replaces the source behind h, keeping the handle, pause state and volume.
func (r *Registry) ChangeTrack(h Handle, src Source) error {
	if src == nil {
		return ErrNilSource
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[h]
	if !ok {
		closeSource(src)
		return nil
	}
	r.emitLocked(TrackEvent{Kind: TrackEnded, Handle: h, Channel: b.channel, Label: b.label, Reason: EndReplaced})
	b.gen = r.channels[b.channel].play(src, false)
	b.label = describeSource(src)
	r.bindings[h] = b
	r.emitLocked(TrackEvent{Kind: TrackStarted, Handle: h, Channel: b.channel, Label: b.label})
	return nil
}

func (r *Registry) Pause(h Handle) {
	r.withChannel(h, (*channel).pause)
}

func (r *Registry) Resume(h Handle) {
	r.withChannel(h, (*channel).resume)
}

func (r *Registry) SetVolume(h Handle, gain float64) error {
	if !validGain(gain) {
		return ErrInvalidVolume
	}
	var err error
	r.withChannel(h, func(ch *channel) {
		err = ch.setVolume(gain)
	})
	return err
}

func (r *Registry) withChannel(h Handle, fn func(*channel)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[h]
	if !ok {
		return
	}
	fn(r.channels[b.channel])
}

// Handles returns the live handles ordered by channel index.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handle, 0, len(r.bindings))
	for _, h := range r.owners {
		if !h.IsZero() {
			out = append(out, h)
		}
	}
	return out
}

func (r *Registry) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	for _, h := range r.Handles() {
		r.Free(h)
	}
}

// release is called by a channel whose source ended on its own.
func (r *Registry) release(idx int, gen uint64, reason EndReason, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.owners[idx]
	if h.IsZero() {
		return
	}
	b := r.bindings[h]
	if b.gen != gen {
		return
	}
	r.unbindLocked(h, b)
	r.emitLocked(TrackEvent{Kind: TrackEnded, Handle: h, Channel: idx, Label: b.label, Reason: reason, Err: err})
}

func (r *Registry) unbindLocked(h Handle, b binding) {
	delete(r.bindings, h)
	r.owners[b.channel] = Handle{}
	r.channels[b.channel].reset()
}

func (r *Registry) emitLocked(event TrackEvent) {
	if r.observer == nil {
		return
	}
	event.At = time.Now()
	r.observer.OnTrackEvent(event)
}

func describeSource(src Source) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}
