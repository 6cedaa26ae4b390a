package audio

import "math"

// Voice activity filtering collapses long silent spans before inference so
// the model never decodes minutes of room tone. Short pauses survive intact,
// only the middle of a long silent run is cut.
const (
	vadFrameMillis  = 30
	vadSilenceDBFS  = -55.0
	vadMaxRunMillis = 600
)

// SuppressSilence returns samples with silent runs longer than the allowed
// span shortened to that span. The input slice is returned unchanged when
// nothing qualifies.
func SuppressSilence(samples []float32, sampleRate int) []float32 {
	frameLen := sampleRate * vadFrameMillis / 1000
	if frameLen <= 0 || len(samples) < frameLen {
		return samples
	}

	maxRunFrames := vadMaxRunMillis / vadFrameMillis
	keep := maxRunFrames / 2

	frames := len(samples) / frameLen
	silent := make([]bool, frames)
	for i := 0; i < frames; i++ {
		frame := samples[i*frameLen : (i+1)*frameLen]
		silent[i] = frameRMSdBFS(frame) <= vadSilenceDBFS
	}

	out := make([]float32, 0, len(samples))
	for i := 0; i < frames; {
		if !silent[i] {
			out = append(out, samples[i*frameLen:(i+1)*frameLen]...)
			i++
			continue
		}

		runStart := i
		for i < frames && silent[i] {
			i++
		}
		runLen := i - runStart

		if runLen <= maxRunFrames {
			out = append(out, samples[runStart*frameLen:i*frameLen]...)
			continue
		}

		// Keep the edges of the run so word boundaries stay natural.
		out = append(out, samples[runStart*frameLen:(runStart+keep)*frameLen]...)
		out = append(out, samples[(i-keep)*frameLen:i*frameLen]...)
	}

	// Tail shorter than one frame passes through untouched.
	out = append(out, samples[frames*frameLen:]...)
	return out
}

func frameRMSdBFS(frame []float32) float64 {
	if len(frame) == 0 {
		return math.Inf(-1)
	}

	var sumSquares float64
	for _, s := range frame {
		sumSquares += float64(s) * float64(s)
	}

	rms := math.Sqrt(sumSquares / float64(len(frame)))
	return amplitudeToDBFS(rms)
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
