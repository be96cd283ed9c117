package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newSink(target audio.SinkTarget) (audio.FrameSink, io.Closer, error) {
	switch target.Output {
	case config.OutputDiscord:
		if target.Voice == nil {
			return nil, nil, fmt.Errorf("discord output requires a voice connection")
		}
		sink, err := NewOpusSink(target.Voice, target.OpusBitrate)
		if err != nil {
			return nil, nil, err
		}
		return sink, nopCloser{}, nil
	case config.OutputSpeaker:
		sink, err := NewSpeakerSink()
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil
	case config.OutputStdout:
		return audio.NewWriterSink(os.Stdout), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown output %q", target.Output)
	}
}
