//go:build opus

package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/hraban/opus"
)

const maxOpusPacketBytes = 4000

// OpusSink encodes mixed PCM frames and sends them on a Discord voice connection.
type OpusSink struct {
	mu       sync.Mutex
	voice    audio.OpusPacketSender
	encoder  *opus.Encoder
	speaking bool
}

func NewOpusSink(voice audio.OpusPacketSender, bitrate int) (audio.FrameSink, error) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
	}
	return &OpusSink{voice: voice, encoder: enc}, nil
}

func (s *OpusSink) WriteFrame(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.speaking {
		if err := s.voice.Speaking(true); err != nil {
			return fmt.Errorf("failed to set speaking state: %w", err)
		}
		s.speaking = true
	}

	packet := make([]byte, maxOpusPacketBytes)
	size, err := s.encoder.Encode(audio.DecodeSamples(frame), packet)
	if err != nil {
		return fmt.Errorf("failed to encode opus frame: %w", err)
	}
	return s.voice.SendOpus(ctx, packet[:size])
}
