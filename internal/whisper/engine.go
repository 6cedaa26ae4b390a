package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sermohq/sermo/internal/audio"
)

// Beam size bounds accepted by Transcribe.
const (
	MinBeamSize     = 1
	MaxBeamSize     = 10
	DefaultBeamSize = 5
)

// ErrBeamSize is returned when Options.BeamSize falls outside [MinBeamSize, MaxBeamSize].
var ErrBeamSize = errors.New("beam size must be between 1 and 10")

// Options control a single transcription call.
type Options struct {
	// Language pins the spoken language; empty, whitespace or "auto" lets
	// the model detect it.
	Language  string
	BeamSize  int
	VADFilter bool
}

// DefaultOptions mirror the defaults of the HTTP API.
func DefaultOptions() Options {
	return Options{Language: "auto", BeamSize: DefaultBeamSize, VADFilter: true}
}

// Result is the stable transcription contract shared by every front-end.
//
// An empty Text together with Seconds == 0 means the input was missing or
// empty; a genuine zero-length transcription still reports the inference
// duration. Callers that care have to inspect both fields.
type Result struct {
	Text string
	// DetectedLanguage is empty when the model emitted no confidence
	// signal, e.g. when the language was pinned by the caller.
	DetectedLanguage    string
	LanguageProbability float64
	Seconds             float64
}

// LoadFunc produces the inference handle for an engine. It runs at most once.
type LoadFunc func(ctx context.Context) (Handle, error)

// Engine wraps one lazily initialized inference handle for a single model.
// The zero state is Uninitialized; the first transcribe call with usable
// input loads the weights, guarded so concurrent first use initializes
// exactly once. A failed load is sticky for the process lifetime.
type Engine struct {
	model  string
	load   LoadFunc
	logger *zap.Logger

	once    sync.Once
	handle  Handle
	loadErr error
}

// NewEngine returns an Uninitialized engine for the given model identifier.
func NewEngine(model string, load LoadFunc, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{model: model, load: load, logger: logger}
}

// Model returns the model identifier this engine serves.
func (e *Engine) Model() string {
	return e.model
}

func (e *Engine) ensureReady(ctx context.Context) (Handle, error) {
	e.once.Do(func() {
		started := time.Now()
		e.handle, e.loadErr = e.load(ctx)
		if e.loadErr != nil {
			e.logger.Error("model initialization failed", zap.String("model", e.model), zap.Error(e.loadErr))
			return
		}
		e.logger.Info("model initialized", zap.String("model", e.model), zap.Duration("elapsed", time.Since(started)))
	})
	return e.handle, e.loadErr
}

// Transcribe runs inference on the audio file at audioPath.
//
// A blank or missing path yields the zero Result without touching the model,
// so probing calls never pay the weight-loading cost. Beam size is validated
// after the existence check but before any inference work.
func (e *Engine) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	if strings.TrimSpace(audioPath) == "" {
		return Result{}, nil
	}
	if _, err := os.Stat(audioPath); err != nil {
		return Result{}, nil
	}
	if opts.BeamSize < MinBeamSize || opts.BeamSize > MaxBeamSize {
		return Result{}, fmt.Errorf("%w, got %d", ErrBeamSize, opts.BeamSize)
	}

	handle, err := e.ensureReady(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("initialize model %q: %w", e.model, err)
	}

	params := Params{
		Language:  normalizeLanguage(opts.Language),
		BeamSize:  opts.BeamSize,
		VADFilter: opts.VADFilter,
	}

	started := time.Now()
	out, err := handle.Transcribe(ctx, audioPath, params)
	elapsed := time.Since(started)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe %s: %w", filepath.Base(audioPath), err)
	}

	var text strings.Builder
	for _, segment := range out.Segments {
		text.WriteString(segment.Text)
	}

	return Result{
		Text:                strings.TrimSpace(text.String()),
		DetectedLanguage:    out.Language,
		LanguageProbability: out.LanguageProbability,
		Seconds:             elapsed.Seconds(),
	}, nil
}

// TranscribePCM wraps raw little-endian mono 16-bit PCM into a WAV file at a
// temporary location and delegates to Transcribe. The temporary file is
// removed on every exit path. Empty input yields the zero Result without
// creating a file.
func (e *Engine) TranscribePCM(ctx context.Context, pcm []byte, sampleRate int, opts Options) (Result, error) {
	if len(pcm) == 0 {
		return Result{}, nil
	}
	if sampleRate <= 0 {
		sampleRate = audio.WhisperSampleRate
	}

	tmp, err := os.CreateTemp("", "sermo-pcm-*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("create temp wav: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("failed to remove temp wav", zap.String("path", tmpPath), zap.Error(err))
		}
	}()

	if err := audio.WritePCM16WAV(tmp, pcm, sampleRate); err != nil {
		_ = tmp.Close()
		return Result{}, fmt.Errorf("encode wav: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("close temp wav: %w", err)
	}

	return e.Transcribe(ctx, tmpPath, opts)
}

func normalizeLanguage(input string) string {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "auto" {
		return ""
	}
	return trimmed
}
