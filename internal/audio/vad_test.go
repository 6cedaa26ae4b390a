package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sineBurst(seconds float64, rate int, amplitude float64) []float32 {
	n := int(seconds * float64(rate))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func TestSuppressSilenceShortensLongSilentSpan(t *testing.T) {
	t.Parallel()

	rate := WhisperSampleRate
	speech := sineBurst(0.5, rate, 0.5)
	silence := make([]float32, 5*rate) // 5s of digital silence

	input := append(append(append([]float32{}, speech...), silence...), speech...)
	out := SuppressSilence(input, rate)

	require.Less(t, len(out), len(input))
	// Both speech bursts survive, so at least their combined length remains.
	require.GreaterOrEqual(t, len(out), 2*len(speech))
}

func TestSuppressSilenceKeepsShortPause(t *testing.T) {
	t.Parallel()

	rate := WhisperSampleRate
	speech := sineBurst(0.2, rate, 0.5)
	pause := make([]float32, rate/4) // 250ms, below the collapse threshold

	input := append(append(append([]float32{}, speech...), pause...), speech...)
	out := SuppressSilence(input, rate)

	// Frame rounding may trim a partial tail frame but nothing more.
	require.InDelta(t, len(input), len(out), float64(rate*vadFrameMillis/1000))
}

func TestSuppressSilencePassesThroughTinyInput(t *testing.T) {
	t.Parallel()

	input := []float32{0.1, 0.2}
	require.Equal(t, input, SuppressSilence(input, WhisperSampleRate))
}
