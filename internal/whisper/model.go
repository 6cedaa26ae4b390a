package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultModel is used when the caller does not pick a model size.
const DefaultModel = "small"

// ErrUnknownModel is returned when a model identifier is not part of the registry.
var ErrUnknownModel = errors.New("unknown model")

// Model describes one downloadable ggml weight file.
type Model struct {
	Name     string
	FileName string
	URL      string
	SHA256   string
}

// ResolvedModel is a registry entry resolved against a local model directory.
type ResolvedModel struct {
	Name          string
	Path          string
	URL           string
	SHA256        string
	NeedsDownload bool
}

// modelOrder lists the supported sizes smallest to largest; the order is what
// front-ends present to users.
var modelOrder = []string{"tiny", "base", "small", "medium", "large"}

var registry = map[string]Model{
	"tiny": {
		Name:     "tiny",
		FileName: "ggml-tiny.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SHA256:   "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21",
	},
	"base": {
		Name:     "base",
		FileName: "ggml-base.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SHA256:   "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe",
	},
	"small": {
		Name:     "small",
		FileName: "ggml-small.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SHA256:   "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b",
	},
	"medium": {
		Name:     "medium",
		FileName: "ggml-medium.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SHA256:   "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208",
	},
	"large": {
		Name:     "large",
		FileName: "ggml-large-v3.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SHA256:   "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2",
	},
}

// ModelNames returns all supported model identifiers, smallest first.
func ModelNames() []string {
	names := make([]string, len(modelOrder))
	copy(names, modelOrder)
	return names
}

// LookupModel finds a registry entry by name.
func LookupModel(name string) (Model, bool) {
	model, ok := registry[name]
	return model, ok
}

// ValidateModel checks that name is a supported identifier, applying the
// default when name is blank, and returns the canonical identifier.
func ValidateModel(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		trimmed = DefaultModel
	}
	if _, ok := registry[trimmed]; !ok {
		return "", fmt.Errorf("%w: %q (known models: %s)", ErrUnknownModel, trimmed, strings.Join(ModelNames(), ", "))
	}
	return trimmed, nil
}

// ResolveModel maps a model identifier onto its weight file below modelDir and
// reports whether the file still needs to be downloaded.
func ResolveModel(name, modelDir string) (ResolvedModel, error) {
	canonical, err := ValidateModel(name)
	if err != nil {
		return ResolvedModel{}, err
	}
	if strings.TrimSpace(modelDir) == "" {
		return ResolvedModel{}, errors.New("model directory must not be empty")
	}

	model := registry[canonical]
	modelPath := filepath.Join(modelDir, model.FileName)
	_, statErr := os.Stat(modelPath)
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return ResolvedModel{}, fmt.Errorf("stat model path: %w", statErr)
	}

	return ResolvedModel{
		Name:          model.Name,
		Path:          modelPath,
		URL:           model.URL,
		SHA256:        model.SHA256,
		NeedsDownload: errors.Is(statErr, os.ErrNotExist),
	}, nil
}
