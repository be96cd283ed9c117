package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

const (
	pumpChunkBytes = 16 * 1024
	// decoders stay at most this far ahead of playback
	maxAheadBytes = audio.SampleRate * audio.Channels * audio.BytesPerSample * 2
	pumpBackoff   = 20 * time.Millisecond
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// decodeStream yields 48kHz s16le stereo PCM.
type decodeStream struct {
	io.Reader
	// interrupt unblocks a pending Read. release frees resources once reading has stopped
	// and reports a decoder failure that Read could not see.
	interrupt func()
	release   func() error
}

type trackSource struct {
	*audio.Buffer
	label string
}

func (s *trackSource) String() string {
	return s.label
}

type Opener struct {
	ffmpegPath string
}

func NewOpener(ffmpegPath string) *Opener {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Opener{ffmpegPath: ffmpegPath}
}

func (o *Opener) Open(ctx context.Context, pathOrURL string) (audio.Source, error) {
	stream, err := o.openStream(ctx, pathOrURL)
	if err != nil {
		return nil, err
	}
	src := &trackSource{Buffer: audio.NewBuffer(), label: sourceLabel(pathOrURL)}
	pump(src.label, stream, src.Buffer)
	return src, nil
}

func (o *Opener) openStream(ctx context.Context, pathOrURL string) (*decodeStream, error) {
	if isURL(pathOrURL) {
		return o.openFFmpeg(ctx, pathOrURL)
	}
	if _, err := os.Stat(pathOrURL); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	switch strings.ToLower(filepath.Ext(pathOrURL)) {
	case ".pcm", ".raw", ".s16le":
		return openRawPCM(pathOrURL)
	case ".mp3":
		stream, err := openMP3(pathOrURL)
		if errors.Is(err, ErrUnsupportedFormat) {
			slog.Info("mp3 is not 48kHz; decoding via ffmpeg", "path", pathOrURL)
			return o.openFFmpeg(ctx, pathOrURL)
		}
		return stream, err
	case ".flac":
		stream, err := openFLAC(pathOrURL)
		if errors.Is(err, ErrUnsupportedFormat) {
			slog.Info("flac is not 48kHz/16-bit/stereo; decoding via ffmpeg", "path", pathOrURL)
			return o.openFFmpeg(ctx, pathOrURL)
		}
		return stream, err
	default:
		return o.openFFmpeg(ctx, pathOrURL)
	}
}

func openRawPCM(path string) (*decodeStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcm file: %w", err)
	}
	return fileStream(f, f), nil
}

func openMP3(path string) (*decodeStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mp3 file: %w", err)
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}
	if dec.SampleRate() != audio.SampleRate {
		_ = f.Close()
		return nil, fmt.Errorf("%w: mp3 sample rate %d", ErrUnsupportedFormat, dec.SampleRate())
	}
	// go-mp3 always outputs 16-bit little-endian stereo.
	return fileStream(dec, f), nil
}

func openFLAC(path string) (*decodeStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flac file: %w", err)
	}
	stream, err := flac.New(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to decode flac: %w", err)
	}
	info := stream.Info
	if info.SampleRate != audio.SampleRate || info.NChannels != audio.Channels || info.BitsPerSample != 16 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: flac %dHz %dch %d-bit", ErrUnsupportedFormat, info.SampleRate, info.NChannels, info.BitsPerSample)
	}
	return fileStream(&flacReader{stream: stream}, f), nil
}

func fileStream(r io.Reader, f *os.File) *decodeStream {
	return &decodeStream{
		Reader:    r,
		interrupt: func() { _ = f.Close() },
		release: func() error {
			if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				return err
			}
			return nil
		},
	}
}

// flacReader interleaves decoded FLAC frames into s16le bytes.
type flacReader struct {
	stream  *flac.Stream
	pending []byte
}

func (r *flacReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		frame, err := r.stream.ParseNext()
		if err != nil {
			return 0, err
		}
		blockSize := int(frame.BlockSize)
		samples := make([]int16, 0, blockSize*audio.Channels)
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < audio.Channels; ch++ {
				samples = append(samples, int16(frame.Subframes[ch].Samples[i]))
			}
		}
		r.pending = audio.EncodeSamples(samples)
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// pump copies decoded PCM into buf until the stream ends or the buffer is closed.
// A decoder that fails, including one that only reports failure on release, ends the
// buffer with an error instead of a clean EOF.
func pump(label string, stream *decodeStream, buf *audio.Buffer) {
	stopped := make(chan struct{})
	var stopOnce sync.Once
	buf.OnClose(func() {
		stopOnce.Do(func() {
			close(stopped)
			stream.interrupt()
		})
	})

	go func() {
		err := copyDecoded(stream, buf, stopped)
		releaseErr := stream.release()
		select {
		case <-stopped:
			return
		default:
		}
		if err == nil {
			err = releaseErr
		}
		if err != nil {
			slog.Warn("decoder failed", "source", label, "error", err)
			buf.CloseWrite(fmt.Errorf("decode %s: %w", label, err))
			return
		}
		buf.CloseWrite(nil)
	}()
}

// copyDecoded returns nil at end of stream or when stopped.
func copyDecoded(stream *decodeStream, buf *audio.Buffer, stopped <-chan struct{}) error {
	chunk := make([]byte, pumpChunkBytes)
	for {
		if !waitForRoom(buf, stopped) {
			return nil
		}
		n, err := stream.Read(chunk)
		if n > 0 {
			if _, werr := buf.Write(chunk[:n]); werr != nil {
				return nil
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}

func waitForRoom(buf *audio.Buffer, stopped <-chan struct{}) bool {
	for {
		select {
		case <-stopped:
			return false
		default:
		}
		if buf.Buffered() < maxAheadBytes {
			return true
		}
		select {
		case <-stopped:
			return false
		case <-time.After(pumpBackoff):
		}
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func sourceLabel(pathOrURL string) string {
	if isURL(pathOrURL) {
		return pathOrURL
	}
	return filepath.Base(pathOrURL)
}
