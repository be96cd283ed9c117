package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// ToneSource generates a finite sine tone on both channels.
type ToneSource struct {
	mu        sync.Mutex
	frequency float64
	amplitude float64
	total     int
	emitted   int
}

// NewToneSource returns a tone of the given frequency, amplitude (0..1) and duration.
func NewToneSource(frequency, amplitude float64, duration time.Duration) *ToneSource {
	return &ToneSource{
		frequency: frequency,
		amplitude: math.Max(0, math.Min(1, amplitude)),
		total:     int(duration.Seconds() * SampleRate),
	}
}

func (s *ToneSource) ReadFrame(_ context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / (Channels * BytesPerSample)
	remaining := s.total - s.emitted
	if frames > remaining {
		frames = remaining
	}
	for i := 0; i < frames; i++ {
		t := float64(s.emitted+i) / SampleRate
		v := int16(math.Sin(2*math.Pi*s.frequency*t) * s.amplitude * maxSample)
		for ch := 0; ch < Channels; ch++ {
			putSample(p, i*Channels+ch, v)
		}
	}
	s.emitted += frames
	n := frames * Channels * BytesPerSample
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *ToneSource) String() string {
	return fmt.Sprintf("tone:%gHz", s.frequency)
}
