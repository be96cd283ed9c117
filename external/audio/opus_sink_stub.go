//go:build !opus

package audio

import (
	"errors"

	"github.com/foxseedlab/otomaze/internal/audio"
)

var ErrOpusUnavailable = errors.New("opus support is not compiled in; build with -tags opus")

func NewOpusSink(_ audio.OpusPacketSender, _ int) (audio.FrameSink, error) {
	return nil, ErrOpusUnavailable
}
