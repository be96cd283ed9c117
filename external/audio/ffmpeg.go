package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/foxseedlab/otomaze/internal/audio"
)

// openFFmpeg transcodes any input ffmpeg understands into 48kHz s16le stereo on stdout.
func (o *Opener) openFFmpeg(_ context.Context, input string) (*decodeStream, error) {
	if _, err := exec.LookPath(o.ffmpegPath); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found: %v", ErrUnsupportedFormat, err)
	}
	// The process outlives the request context; it is stopped when the track is closed.
	cmd := exec.Command(o.ffmpegPath, ffmpegArgs(input)...)
	stderr := &stderrBuffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return &decodeStream{
		Reader: stdout,
		interrupt: func() {
			_ = cmd.Process.Kill()
		},
		// a kill on stop also yields an exit error; pump ignores release errors once stopped
		release: func() error {
			if err := cmd.Wait(); err != nil {
				if msg := strings.TrimSpace(stderr.String()); msg != "" {
					return fmt.Errorf("ffmpeg: %w: %s", err, msg)
				}
				return fmt.Errorf("ffmpeg: %w", err)
			}
			return nil
		},
	}, nil
}

func ffmpegArgs(input string) []string {
	return []string{
		"-loglevel", "error",
		"-i", input,
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-",
	}
}

const maxStderrBytes = 4096

// stderrBuffer keeps the first few KB of ffmpeg's error output.
type stderrBuffer struct {
	buf bytes.Buffer
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	if room := maxStderrBytes - b.buf.Len(); room > 0 {
		b.buf.Write(p[:min(len(p), room)])
	}
	return len(p), nil
}

func (b *stderrBuffer) String() string {
	return b.buf.String()
}
