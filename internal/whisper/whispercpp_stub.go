//go:build nowhispercpp

package whisper

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CPPBackend is a stub for builds without the whisper.cpp libraries.
type CPPBackend struct {
	Threads int
	Logger  *zap.Logger
}

func NewCPPBackend(logger *zap.Logger) *CPPBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CPPBackend{Logger: logger}
}

func (b *CPPBackend) Load(_ context.Context, _ string) (Handle, error) {
	return nil, fmt.Errorf("whisper.cpp support is disabled in this build")
}
