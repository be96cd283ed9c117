package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/config"
	"github.com/foxseedlab/otomaze/internal/discord"
	"github.com/foxseedlab/otomaze/internal/repository"
	"github.com/foxseedlab/otomaze/internal/webhook"
)

const (
	eventQueueSize     = 256
	eventRecordTimeout = 10 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotStarted     = errors.New("session not started")
)

type Manager struct {
	cfg     *config.Config
	discord discord.Client
	opener  audio.Opener
	newSink audio.SinkFactory
	repo    repository.PlaybackRepository
	webhook webhook.Sender

	mu  sync.Mutex
	run *runningSession
}

type runningSession struct {
	engine  *audio.Engine
	voice   discord.VoiceConnection
	sink    io.Closer
	queue   *eventQueue
	cancel  context.CancelFunc
	mixing  sync.WaitGroup
	workers sync.WaitGroup
}

func NewManager(cfg *config.Config, dc discord.Client, opener audio.Opener, newSink audio.SinkFactory, repo repository.PlaybackRepository, wh webhook.Sender) *Manager {
	return &Manager{
		cfg:     cfg,
		discord: dc,
		opener:  opener,
		newSink: newSink,
		repo:    repo,
		webhook: wh,
	}
}

// Start builds the mixer, connects the output and begins the 20ms tick loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run != nil {
		return ErrAlreadyStarted
	}

	queue := &eventQueue{ch: make(chan audio.TrackEvent, eventQueueSize)}
	engine := audio.NewEngine(
		audio.WithChannels(m.cfg.MixerChannels),
		audio.WithFrameDuration(m.cfg.FrameDuration()),
		audio.WithStarveTimeout(m.cfg.StarveTimeout()),
		audio.WithObserver(queue),
	)

	var voice discord.VoiceConnection
	var sender audio.OpusPacketSender
	if m.cfg.Output == config.OutputDiscord {
		v, err := m.discord.JoinVoiceChannel(ctx, m.cfg.DiscordGuildID, m.cfg.DiscordVoiceChannelID)
		if err != nil {
			_ = engine.Close()
			return fmt.Errorf("failed to join voice channel: %w", err)
		}
		slog.Info("joined voice channel", "guild_id", m.cfg.DiscordGuildID, "channel_id", m.cfg.DiscordVoiceChannelID)
		voice, sender = v, v
	}

	sink, closer, err := m.newSink(audio.SinkTarget{
		Output:      m.cfg.Output,
		Voice:       sender,
		OpusBitrate: m.cfg.OpusBitrate,
	})
	if err != nil {
		_ = engine.Close()
		if voice != nil {
			_ = voice.Disconnect()
		}
		return fmt.Errorf("failed to create %s sink: %w", m.cfg.Output, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rs := &runningSession{
		engine: engine,
		voice:  voice,
		sink:   closer,
		queue:  queue,
		cancel: cancel,
	}
	rs.workers.Go(func() { m.recordEvents(queue.ch) })
	scheduler := audio.NewScheduler(engine, sink, engine.FrameDuration())
	rs.mixing.Go(func() {
		if err := scheduler.Run(runCtx); err != nil {
			slog.Error("mixer loop stopped", "error", err)
		}
	})
	m.run = rs
	slog.Info("session started",
		"output", m.cfg.Output,
		"channels", engine.Registry().Capacity(),
		"frame_ms", m.cfg.MixerFrameMs)

	for _, track := range m.cfg.StartupTracks {
		h, err := m.playLocked(ctx, rs, track, m.cfg.StartupTracksPaused)
		if err != nil {
			slog.Error("failed to play startup track", "track", track, "error", err)
			continue
		}
		slog.Info("startup track playing", "track", track, "handle", h.String(), "paused", m.cfg.StartupTracksPaused)
	}
	return nil
}

// Stop ends the tick loop, frees every track and releases the output.
func (m *Manager) Stop() error {
	m.mu.Lock()
	rs := m.run
	m.run = nil
	m.mu.Unlock()
	if rs == nil {
		return nil
	}

	rs.cancel()
	rs.mixing.Wait()
	stats := rs.engine.Stats()
	_ = rs.engine.Close()
	// the registry emits nothing after Close
	close(rs.queue.ch)
	rs.workers.Wait()

	var errs []error
	if err := rs.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sink: %w", err))
	}
	if rs.voice != nil {
		_ = rs.voice.Speaking(false)
		if err := rs.voice.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect voice: %w", err))
		}
	}
	slog.Info("session stopped",
		"frames", stats.Frames,
		"starved_pulls", stats.StarvedPulls,
		"dropped_events", rs.queue.dropped.Load())
	return errors.Join(errs...)
}

// Play opens pathOrURL and binds it to a free channel.
func (m *Manager) Play(ctx context.Context, pathOrURL string, startPaused bool) (audio.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run == nil {
		return audio.Handle{}, ErrNotStarted
	}
	return m.playLocked(ctx, m.run, pathOrURL, startPaused)
}

func (m *Manager) playLocked(ctx context.Context, rs *runningSession, pathOrURL string, startPaused bool) (audio.Handle, error) {
	registry := rs.engine.Registry()
	if registry.Active() >= registry.Capacity() {
		return audio.Handle{}, audio.ErrCapacityExceeded
	}
	src, err := m.opener.Open(ctx, pathOrURL)
	if err != nil {
		return audio.Handle{}, fmt.Errorf("failed to open %s: %w", pathOrURL, err)
	}
	h, err := registry.Allocate(src, startPaused)
	if err != nil {
		closeSource(src)
		return audio.Handle{}, err
	}
	return h, nil
}

// ChangeTrack replaces the source playing on h. Unknown handles are ignored.
func (m *Manager) ChangeTrack(ctx context.Context, h audio.Handle, pathOrURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run == nil {
		return nil
	}
	registry := m.run.engine.Registry()
	if _, ok := registry.Lookup(h); !ok {
		return nil
	}
	src, err := m.opener.Open(ctx, pathOrURL)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", pathOrURL, err)
	}
	return registry.ChangeTrack(h, src)
}

func (m *Manager) Pause(h audio.Handle) {
	m.withRegistry(func(r *audio.Registry) { r.Pause(h) })
}

func (m *Manager) Resume(h audio.Handle) {
	m.withRegistry(func(r *audio.Registry) { r.Resume(h) })
}

func (m *Manager) StopTrack(h audio.Handle) {
	m.withRegistry(func(r *audio.Registry) { r.Stop(h) })
}

func (m *Manager) SetVolume(h audio.Handle, gain float64) error {
	var err error
	m.withRegistry(func(r *audio.Registry) { err = r.SetVolume(h, gain) })
	return err
}

// Handles lists the tracks currently bound to a channel.
func (m *Manager) Handles() []audio.Handle {
	var hs []audio.Handle
	m.withRegistry(func(r *audio.Registry) { hs = r.Handles() })
	return hs
}

func (m *Manager) RecentPlays(ctx context.Context, limit int) ([]repository.PlaybackRecord, error) {
	return m.repo.ListRecentPlays(ctx, limit)
}

func (m *Manager) withRegistry(fn func(*audio.Registry)) {
	m.mu.Lock()
	rs := m.run
	m.mu.Unlock()
	if rs == nil {
		return
	}
	fn(rs.engine.Registry())
}

func (m *Manager) recordEvents(events <-chan audio.TrackEvent) {
	for ev := range events {
		m.recordEvent(ev)
	}
}

func (m *Manager) recordEvent(ev audio.TrackEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), eventRecordTimeout)
	defer cancel()

	handle := ev.Handle.String()
	var errText string
	if ev.Err != nil {
		errText = ev.Err.Error()
	}
	switch ev.Kind {
	case audio.TrackStarted:
		slog.Info("track started", "handle", handle, "channel", ev.Channel, "source", ev.Label)
		if err := m.repo.RecordTrackStarted(ctx, repository.RecordTrackStartedInput{
			Handle:    handle,
			Channel:   ev.Channel,
			Source:    ev.Label,
			StartedAt: ev.At,
		}); err != nil {
			slog.Error("failed to record track start", "handle", handle, "error", err)
		}
	case audio.TrackEnded:
		slog.Info("track ended", "handle", handle, "channel", ev.Channel, "reason", ev.Reason)
		if err := m.repo.RecordTrackEnded(ctx, repository.RecordTrackEndedInput{
			Handle:    handle,
			EndReason: string(ev.Reason),
			Error:     errText,
			EndedAt:   ev.At,
		}); err != nil {
			slog.Error("failed to record track end", "handle", handle, "error", err)
		}
	}

	if err := m.webhook.SendPlaybackEvent(ctx, webhook.PlaybackEvent{
		Event:      string(ev.Kind),
		Handle:     handle,
		Channel:    ev.Channel,
		Source:     ev.Label,
		EndReason:  string(ev.Reason),
		Error:      errText,
		OccurredAt: ev.At,
	}); err != nil {
		slog.Error("failed to send playback webhook", "handle", handle, "error", err)
	}
}

// eventQueue hands registry events to the recording worker without blocking the tick loop.
type eventQueue struct {
	ch      chan audio.TrackEvent
	dropped atomic.Int64
}

func (q *eventQueue) OnTrackEvent(ev audio.TrackEvent) {
	select {
	case q.ch <- ev:
	default:
		if q.dropped.Add(1) == 1 {
			slog.Warn("track event queue full; dropping events")
		}
	}
}

func closeSource(src audio.Source) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}
