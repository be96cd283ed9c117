//go:build oto

package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/foxseedlab/otomaze/internal/audio"
)

// SpeakerSink plays mixed frames on the local audio device. oto pulls from a pipe
// that the scheduler writes into, so a slow device applies backpressure to the mixer.
type SpeakerSink struct {
	closeOnce sync.Once
	otoCtx    *oto.Context
	player    *oto.Player
	pr        *io.PipeReader
	pw        *io.PipeWriter
}

func NewSpeakerSink() (*SpeakerSink, error) {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   audio.SampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	pr, pw := io.Pipe()
	player := otoCtx.NewPlayer(pr)
	player.Play()
	slog.Info("speaker output initialized", "sample_rate", audio.SampleRate, "channels", audio.Channels)
	return &SpeakerSink{otoCtx: otoCtx, player: player, pr: pr, pw: pw}, nil
}

func (s *SpeakerSink) WriteFrame(_ context.Context, frame []byte) error {
	if _, err := s.pw.Write(frame); err != nil {
		return fmt.Errorf("speaker pipe write failed: %w", err)
	}
	return nil
}

// Close unblocks a pending WriteFrame and releases the device.
func (s *SpeakerSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.pw.Close()
		err = s.player.Close()
		_ = s.pr.Close()
		if suspendErr := s.otoCtx.Suspend(); suspendErr != nil && err == nil {
			err = suspendErr
		}
	})
	return err
}
