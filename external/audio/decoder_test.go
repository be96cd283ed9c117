package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/foxseedlab/otomaze/internal/audio"
)

func writeTempFile(t *testing.T, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func pcmFrames(values ...int16) []byte {
	frameSize := audio.FrameBytes(audio.FrameDuration)
	var out []byte
	for _, v := range values {
		samples := make([]int16, frameSize/audio.BytesPerSample)
		for i := range samples {
			samples[i] = v
		}
		out = append(out, audio.EncodeSamples(samples)...)
	}
	return out
}

func TestOpen_RawPCM(t *testing.T) {
	path := writeTempFile(t, "jingle.pcm", pcmFrames(10, 20))
	src, err := NewOpener("ffmpeg").Open(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = src.(io.Closer).Close() }()

	if label := src.(interface{ String() string }).String(); label != "jingle.pcm" {
		t.Fatalf("unexpected label %q", label)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	frame := make([]byte, audio.FrameBytes(audio.FrameDuration))
	for _, want := range []int16{10, 20} {
		n, err := src.ReadFrame(ctx, frame)
		if err != nil || n != len(frame) {
			t.Fatalf("expected full frame, got n=%d err=%v", n, err)
		}
		if got := audio.DecodeSamples(frame)[0]; got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	if _, err := src.ReadFrame(ctx, frame); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := NewOpener("ffmpeg").Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOpen_InvalidMP3(t *testing.T) {
	path := writeTempFile(t, "broken.mp3", []byte("definitely not an mp3"))
	if _, err := NewOpener("ffmpeg").Open(context.Background(), path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestOpen_InvalidFLAC(t *testing.T) {
	path := writeTempFile(t, "broken.flac", []byte("fLaX"))
	if _, err := NewOpener("ffmpeg").Open(context.Background(), path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestOpen_OtherFormatsNeedFFmpeg(t *testing.T) {
	path := writeTempFile(t, "voice.ogg", []byte("OggS"))
	_, err := NewOpener("otomaze-ffmpeg-does-not-exist").Open(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("https://example.com/a.m3u8")
	want := []string{"-loglevel", "error", "-i", "https://example.com/a.m3u8", "-f", "s16le", "-ar", "48000", "-ac", "2", "-"}
	if len(args) != len(want) {
		t.Fatalf("unexpected args: %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: expected %q, got %q", i, want[i], args[i])
		}
	}
}

func TestSourceLabel(t *testing.T) {
	if got := sourceLabel("/srv/sounds/bell.mp3"); got != "bell.mp3" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := sourceLabel("https://example.com/a.mp3"); got != "https://example.com/a.mp3" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestPump_StopsWhenBufferClosed(t *testing.T) {
	pr, pw := io.Pipe()
	released := make(chan struct{})
	stream := &decodeStream{
		Reader:    pr,
		interrupt: func() { _ = pw.CloseWithError(errors.New("interrupted")) },
		release: func() error {
			close(released)
			return nil
		},
	}
	buf := audio.NewBuffer()
	pump("pipe", stream, buf)
	_ = buf.Close()

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not release the decoder after close")
	}
}

func readAll(t *testing.T, src audio.Source) (int, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	frame := make([]byte, audio.FrameBytes(audio.FrameDuration))
	frames := 0
	for {
		n, err := src.ReadFrame(ctx, frame)
		if err != nil {
			return frames, err
		}
		if n == len(frame) {
			frames++
		}
	}
}

func TestPump_ReleaseFailureEndsWithError(t *testing.T) {
	exitErr := errors.New("exit status 1")
	stream := &decodeStream{
		Reader:    bytes.NewReader(pcmFrames(1)),
		interrupt: func() {},
		release:   func() error { return exitErr },
	}
	buf := audio.NewBuffer()
	pump("broken", stream, buf)

	frames, err := readAll(t, buf)
	if frames != 1 {
		t.Fatalf("expected the decoded frame before the failure, got %d", frames)
	}
	if !errors.Is(err, exitErr) {
		t.Fatalf("expected release error, got %v", err)
	}
}

func TestPump_CleanReleaseEndsWithEOF(t *testing.T) {
	stream := &decodeStream{
		Reader:    bytes.NewReader(pcmFrames(1, 2)),
		interrupt: func() {},
		release:   func() error { return nil },
	}
	buf := audio.NewBuffer()
	pump("clean", stream, buf)

	frames, err := readAll(t, buf)
	if frames != 2 || !errors.Is(err, io.EOF) {
		t.Fatalf("expected 2 frames then EOF, got %d frames and %v", frames, err)
	}
}

func TestOpen_FFmpegFailureIsNotEOF(t *testing.T) {
	failing, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false binary not available")
	}
	src, err := NewOpener(failing).Open(context.Background(), "https://example.invalid/missing.ogg")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer func() { _ = src.(io.Closer).Close() }()

	_, err = readAll(t, src)
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected ffmpeg failure, got %v", err)
	}
}
