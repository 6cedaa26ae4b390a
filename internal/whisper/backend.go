package whisper

import (
	"context"
	"time"
)

// Params are the normalized inference parameters handed to a backend. An
// empty Language means the model should detect the spoken language itself.
type Params struct {
	Language  string
	BeamSize  int
	VADFilter bool
}

// Segment is one chunk of recognized speech in emission order.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Output is the raw inference output before result shaping.
type Output struct {
	Segments []Segment
	// Language carries the detected language when detection ran; it stays
	// empty when the caller pinned the language up front.
	Language            string
	LanguageProbability float64
}

// Handle is a loaded model ready to run inference. Handles are created once
// per engine and shared by all concurrent callers.
type Handle interface {
	Transcribe(ctx context.Context, audioPath string, params Params) (Output, error)
}

// Backend turns a weight file into a Handle. Loading is expensive and is
// expected to happen at most once per model.
type Backend interface {
	Load(ctx context.Context, modelPath string) (Handle, error)
}
