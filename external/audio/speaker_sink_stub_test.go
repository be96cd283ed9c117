//go:build !oto

package audio

import (
	"errors"
	"testing"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/config"
)

func TestNewSink_SpeakerWithoutOto(t *testing.T) {
	_, _, err := newSink(audio.SinkTarget{Output: config.OutputSpeaker})
	if !errors.Is(err, ErrSpeakerUnavailable) {
		t.Fatalf("expected ErrSpeakerUnavailable, got %v", err)
	}
}
