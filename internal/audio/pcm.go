package audio

import (
	"encoding/binary"
	"time"
)

const (
	SampleRate     = 48000
	Channels       = 2
	BytesPerSample = 2
	FrameDuration  = 20 * time.Millisecond

	minSample = -32768
	maxSample = 32767
)

// FrameBytes returns the byte length of one interleaved s16le stereo frame of duration d.
func FrameBytes(d time.Duration) int {
	return int(d/time.Millisecond) * (SampleRate / 1000) * Channels * BytesPerSample
}

func clampPCM(v int32) int16 {
	if v > maxSample {
		return maxSample
	}
	if v < minSample {
		return minSample
	}
	return int16(v)
}

func sampleAt(buf []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(buf[i*2:]))
}

func putSample(buf []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
}

// EncodeSamples writes int16 samples as little-endian PCM bytes.
func EncodeSamples(samples []int16) []byte {
	buf := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		putSample(buf, i, s)
	}
	return buf
}

// DecodeSamples reads little-endian PCM bytes into int16 samples. A trailing odd byte is ignored.
func DecodeSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/BytesPerSample)
	for i := range samples {
		samples[i] = sampleAt(buf, i)
	}
	return samples
}
