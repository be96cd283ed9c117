//go:build !oto

package audio

import (
	"context"
	"errors"
)

var ErrSpeakerUnavailable = errors.New("speaker output is not compiled in; build with -tags oto")

type SpeakerSink struct{}

func NewSpeakerSink() (*SpeakerSink, error) {
	return nil, ErrSpeakerUnavailable
}

func (s *SpeakerSink) WriteFrame(_ context.Context, _ []byte) error {
	return ErrSpeakerUnavailable
}

func (s *SpeakerSink) Close() error {
	return nil
}
