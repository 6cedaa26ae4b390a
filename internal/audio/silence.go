package audio

import "math"

// SilenceMetrics summarize the signal level of a decoded file.
type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// IsSilentWAV reports whether the WAV file at path carries no audible signal
// above thresholdDBFS. Used by the CLI to skip transcription of empty
// recordings without loading a model.
func IsSilentWAV(path string, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	samples, _, err := ReadWAV(path)
	if err != nil {
		return false, SilenceMetrics{}, err
	}

	metrics := MeasureSilence(samples)
	if metrics.Samples == 0 {
		return true, metrics, nil
	}
	if math.IsInf(metrics.RMSdBFS, -1) && math.IsInf(metrics.PeakdBFS, -1) {
		return true, metrics, nil
	}

	peakGate := thresholdDBFS + 6
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= peakGate, metrics, nil
}

// MeasureSilence computes RMS and peak levels over mono samples.
func MeasureSilence(samples []float32) SilenceMetrics {
	if len(samples) == 0 {
		return SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	}

	var peak float64
	var sumSquares float64
	for _, s := range samples {
		value := float64(s)
		abs := math.Abs(value)
		if abs > peak {
			peak = abs
		}
		sumSquares += value * value
	}

	rms := math.Sqrt(sumSquares / float64(len(samples)))
	return SilenceMetrics{
		RMSdBFS:  amplitudeToDBFS(rms),
		PeakdBFS: amplitudeToDBFS(peak),
		Samples:  int64(len(samples)),
	}
}
