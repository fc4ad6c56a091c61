package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/acir-runtime/errors"
)

// Engine hosts native library builds on a wazero runtime
type Engine struct {
	runtime      wazero.Runtime
	log          *zap.Logger
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages
	// (64KB each). 0 means the wazero default (65536 pages = 4GB).
	// Proving key generation for large circuits needs most of it.
	MemoryLimitPages uint32

	// Logger receives advisory native diagnostics and lifecycle events.
	// Defaults to a no-op logger.
	Logger *zap.Logger
}

// New creates a new engine with default configuration
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a new engine with custom configuration
func NewWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	log := zap.NewNop()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.Logger != nil {
			log = cfg.Logger
		}
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &Engine{runtime: runtime, log: log}, nil
}

// Close releases the runtime and every instance created from it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger {
	return e.log
}

// initWASI instantiates the WASI host module for this engine's runtime.
// The real library build imports wasi_snapshot_preview1 for clocks and
// randomness. Safe for concurrent calls from multiple libraries sharing
// the same engine.
func (e *Engine) initWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(wasi_snapshot_preview1.ModuleName) != nil {
		e.wasiInitDone.Store(true)
		return nil
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		if e.runtime.Module(wasi_snapshot_preview1.ModuleName) == nil {
			return errors.Load("instantiate WASI", err)
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// Load compiles a native library build. The returned Library can be
// instantiated many times; each instance is an independent copy of the
// library with its own memory.
func (e *Engine) Load(ctx context.Context, wasmBytes []byte) (*Library, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile native library", err)
	}

	return &Library{engine: e, compiled: compiled}, nil
}
