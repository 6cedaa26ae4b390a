package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeWAVFixture(t *testing.T, samples []int16, sampleRate, channels int) string {
	t.Helper()

	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	path := filepath.Join(t.TempDir(), "fixture.wav")
	require.NoError(t, os.WriteFile(path, out, 0o644))
	return path
}

func TestReadWAVDecodesMonoPCM16(t *testing.T) {
	t.Parallel()

	path := writeWAVFixture(t, []int16{0, 16384, -16384, 32767}, 16000, 1)

	samples, rate, err := ReadWAV(path)
	require.NoError(t, err)
	require.Equal(t, 16000, rate)
	require.Len(t, samples, 4)
	require.InDelta(t, 0.0, samples[0], 1e-6)
	require.InDelta(t, 0.5, samples[1], 1e-4)
	require.InDelta(t, -0.5, samples[2], 1e-4)
	require.InDelta(t, 1.0, samples[3], 1e-3)
}

func TestReadWAVDownmixesStereo(t *testing.T) {
	t.Parallel()

	// Left at half scale, right silent; the mono mix lands at a quarter.
	path := writeWAVFixture(t, []int16{16384, 0, 16384, 0}, 44100, 2)

	samples, rate, err := ReadWAV(path)
	require.NoError(t, err)
	require.Equal(t, 44100, rate)
	require.Len(t, samples, 2)
	require.InDelta(t, 0.25, samples[0], 1e-4)
	require.InDelta(t, 0.25, samples[1], 1e-4)
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff file"), 0o644))

	_, _, err := ReadWAV(path)
	require.ErrorIs(t, err, ErrInvalidWAV)
}

func TestWritePCM16WAVRoundTrips(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 8)
	for i, s := range []int16{100, -100, 32767, -32768} {
		binary.LittleEndian.PutUint16(pcm[2*i:2*i+2], uint16(s))
	}

	var buf bytes.Buffer
	require.NoError(t, WritePCM16WAV(&buf, pcm, 8000))

	path := filepath.Join(t.TempDir(), "round.wav")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	samples, rate, err := ReadWAV(path)
	require.NoError(t, err)
	require.Equal(t, 8000, rate)
	require.Len(t, samples, 4)
	require.InDelta(t, 100.0/32768.0, samples[0], 1e-6)
	require.InDelta(t, -100.0/32768.0, samples[1], 1e-6)
}

func TestWritePCM16WAVDropsTrailingOddByte(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WritePCM16WAV(&buf, []byte{1, 2, 3}, 16000))

	dataSize := binary.LittleEndian.Uint32(buf.Bytes()[40:44])
	require.Equal(t, uint32(2), dataSize)
}

func TestWritePCM16WAVRejectsBadSampleRate(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.Error(t, WritePCM16WAV(&buf, []byte{0, 0}, 0))
}

func TestResample(t *testing.T) {
	t.Parallel()

	samples := make([]float32, 32000) // 1s at 32kHz
	out := Resample(samples, 32000, 16000)
	require.Len(t, out, 16000)

	same := Resample(samples, 16000, 16000)
	require.Len(t, same, len(samples))
}
