package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sermohq/sermo/internal/audio"
	"github.com/sermohq/sermo/internal/client"
	"github.com/sermohq/sermo/internal/whisper"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file locally or through a remote server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcribeFn := app.transcribeFn
			if transcribeFn == nil {
				if strings.TrimSpace(app.serverURL) != "" {
					transcribeFn = app.transcribeRemote
				} else {
					transcribeFn = app.transcribeLocal
				}
			}

			result, err := transcribeFn(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			if isBlankTranscript(result.Text) {
				app.log().Warn(noSpeechHint())
				return nil
			}

			if result.DetectedLanguage != "" {
				app.log().Info("language detected",
					zap.String("language", result.DetectedLanguage),
					zap.Float64("probability", result.LanguageProbability))
			}
			return nil
		},
	}

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindInferenceFlags(cmd, app)
	bindSilenceFlags(cmd, app)
	cmd.Flags().StringVar(&app.serverURL, "server", app.serverURL, "Base URL of a remote sermo server; empty runs inference locally")
	return cmd
}

func (a *appState) transcribeLocal(ctx context.Context, audioPath string) (whisper.Result, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return whisper.Result{}, fmt.Errorf("audio file not found: %w", err)
	}

	if transcript, skipped := a.silenceGateTranscript(audioPath); skipped {
		return whisper.Result{Text: transcript}, nil
	}

	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.Result{}, err
	}

	cache := whisper.NewCache(whisper.CacheOptions{
		ModelDir:     modelDir,
		Backend:      whisper.NewCPPBackend(a.log()),
		AutoDownload: a.autoDownload,
		NoProgress:   a.noProgress,
		Logger:       a.log(),
	})

	engine, err := cache.Get(a.model)
	if err != nil {
		return whisper.Result{}, err
	}

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("model", a.model), zap.String("language", a.language))
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	result, err := engine.Transcribe(ctx, audioPath, a.options())
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Error(err))
		return whisper.Result{}, err
	}
	a.log().Info("transcription finished", zap.Float64("seconds", result.Seconds))

	return result, nil
}

func (a *appState) transcribeRemote(ctx context.Context, audioPath string) (whisper.Result, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return whisper.Result{}, fmt.Errorf("audio file not found: %w", err)
	}

	remote := client.New(a.serverURL)
	a.log().Info("uploading to remote server", zap.String("server", a.serverURL), zap.String("audio", audioPath))
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing (remote)")
	result, err := remote.Transcribe(ctx, audioPath, a.model, a.options())
	stopSpinner()
	if err != nil {
		return whisper.Result{}, err
	}

	return result, nil
}

// silenceGateTranscript skips transcription of near-silent WAV input so a
// worthless recording never pays the model load cost.
func (a *appState) silenceGateTranscript(audioPath string) (string, bool) {
	if !a.silenceGate {
		return "", false
	}

	if !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		return "", false
	}

	silent, metrics, err := audio.IsSilentWAV(audioPath, a.silenceDBFS)
	if err != nil {
		a.log().Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", audioPath))
		return "", false
	}

	if !silent {
		return "", false
	}

	a.log().Info(
		"audio considered silent; skipping transcription",
		zap.String("audio", audioPath),
		zap.Float64("rms_dbfs", metrics.RMSdBFS),
		zap.Float64("peak_dbfs", metrics.PeakdBFS),
		zap.Float64("threshold_dbfs", a.silenceDBFS),
	)

	return blankAudioToken, true
}
