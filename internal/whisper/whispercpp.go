//go:build !nowhispercpp

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	whispercpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"go.uber.org/zap"

	"github.com/sermohq/sermo/internal/audio"
)

// CPPBackend runs inference through the whisper.cpp Go bindings. One loaded
// model is shared by all callers; each call gets its own decoding context.
type CPPBackend struct {
	Threads int
	Logger  *zap.Logger
}

// NewCPPBackend returns a backend using up to 4 CPU threads, whisper.cpp's
// own sweet spot for most machines.
func NewCPPBackend(logger *zap.Logger) *CPPBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	threads := runtime.NumCPU()
	if threads > 4 {
		threads = 4
	}
	return &CPPBackend{Threads: threads, Logger: logger}
}

// Load reads the ggml weight file into memory.
func (b *CPPBackend) Load(_ context.Context, modelPath string) (Handle, error) {
	model, err := whispercpp.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", modelPath, err)
	}
	return &cppHandle{model: model, threads: b.Threads, logger: b.Logger}, nil
}

type cppHandle struct {
	model   whispercpp.Model
	threads int
	logger  *zap.Logger
}

func (h *cppHandle) Transcribe(ctx context.Context, audioPath string, params Params) (Output, error) {
	samples, err := audio.ReadWAVMono16k(audioPath)
	if err != nil {
		return Output{}, fmt.Errorf("decode audio: %w", err)
	}
	if params.VADFilter {
		before := len(samples)
		samples = audio.SuppressSilence(samples, audio.WhisperSampleRate)
		if len(samples) < before {
			h.logger.Debug("voice activity filter dropped samples",
				zap.Int("before", before), zap.Int("after", len(samples)))
		}
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	wctx, err := h.model.NewContext()
	if err != nil {
		return Output{}, fmt.Errorf("create whisper context: %w", err)
	}

	language := params.Language
	if language == "" {
		language = "auto"
	}
	if err := wctx.SetLanguage(language); err != nil {
		return Output{}, fmt.Errorf("set language %q: %w", language, err)
	}
	wctx.SetTranslate(false)
	wctx.SetBeamSize(params.BeamSize)
	if h.threads > 0 {
		wctx.SetThreads(uint(h.threads))
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Output{}, fmt.Errorf("whisper process: %w", err)
	}

	var out Output
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Output{}, fmt.Errorf("read segment: %w", err)
		}
		out.Segments = append(out.Segments, Segment{
			Text:  segment.Text,
			Start: segment.Start,
			End:   segment.End,
		})
	}

	// The bindings expose the detected language but no probability; the
	// probability stays absent for this backend.
	if params.Language == "" {
		out.Language = wctx.DetectedLanguage()
	}

	return out, nil
}
