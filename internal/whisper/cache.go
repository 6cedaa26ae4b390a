package whisper

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sermohq/sermo/internal/download"
)

// CacheOptions configure how cached engines locate and load their weights.
type CacheOptions struct {
	ModelDir     string
	Backend      Backend
	AutoDownload bool
	NoProgress   bool
	Logger       *zap.Logger
}

// Cache hands out one engine per model identifier. Engines are created
// Uninitialized on first request, reused afterwards and never evicted; they
// live until the process exits. Only the map insert is serialized here, each
// engine guards its own initialization.
type Cache struct {
	opts CacheOptions

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewCache returns an empty engine cache.
func NewCache(opts CacheOptions) *Cache {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{opts: opts, engines: make(map[string]*Engine)}
}

// Get returns the engine for the given model identifier, creating an
// Uninitialized one on first use. Unknown identifiers fail with
// ErrUnknownModel.
func (c *Cache) Get(model string) (*Engine, error) {
	name, err := ValidateModel(model)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if engine, ok := c.engines[name]; ok {
		return engine, nil
	}

	engine := NewEngine(name, c.loadFunc(name), c.opts.Logger)
	c.engines[name] = engine
	return engine, nil
}

// loadFunc resolves the weight file for name, downloading it when allowed,
// and loads it through the configured backend. It runs inside the engine's
// single-flight guard.
func (c *Cache) loadFunc(name string) LoadFunc {
	return func(ctx context.Context) (Handle, error) {
		resolved, err := ResolveModel(name, c.opts.ModelDir)
		if err != nil {
			return nil, err
		}

		if resolved.NeedsDownload {
			if !c.opts.AutoDownload {
				return nil, fmt.Errorf("model %q is missing at %s; run `sermo pull --model %s` or enable auto-download", resolved.Name, resolved.Path, resolved.Name)
			}

			c.opts.Logger.Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
			if err := download.Fetch(ctx, download.Options{
				URL:            resolved.URL,
				Destination:    resolved.Path,
				ExpectedSHA256: resolved.SHA256,
				NoProgress:     c.opts.NoProgress,
				Logger:         c.opts.Logger,
			}); err != nil {
				return nil, fmt.Errorf("download model %q: %w", resolved.Name, err)
			}
		}

		return c.opts.Backend.Load(ctx, resolved.Path)
	}
}
