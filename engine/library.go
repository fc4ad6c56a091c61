package engine

import (
	"context"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/wippyai/acir-runtime/errors"
)

// Library is a compiled native library build, ready to instantiate.
type Library struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// InstanceConfig holds configuration for library instantiation
type InstanceConfig struct {
	// Name registers the instance under a name in the runtime. Empty means
	// anonymous, which allows any number of concurrent instances.
	Name string

	// Stdout and Stderr receive the native library's console output; the
	// library prints proving progress to stderr. Nil discards.
	Stdout io.Writer
	Stderr io.Writer
}

// Instantiate creates an independent instance of the library.
func (l *Library) Instantiate(ctx context.Context) (*Module, error) {
	return l.InstantiateWithConfig(ctx, &InstanceConfig{})
}

// InstantiateWithConfig creates an instance with custom configuration.
func (l *Library) InstantiateWithConfig(ctx context.Context, cfg *InstanceConfig) (*Module, error) {
	if l.importsWASI() {
		if err := l.engine.initWASI(ctx); err != nil {
			return nil, err
		}
	}

	// The library is a reactor build: its initializer runs via
	// _initialize, not _start.
	modCfg := wazero.NewModuleConfig().
		WithName(cfg.Name).
		WithStartFunctions("_initialize")
	if cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(cfg.Stderr)
	}

	mod, err := l.engine.runtime.InstantiateModule(ctx, l.compiled, modCfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	mem := mod.ExportedMemory("memory")
	if mem == nil {
		mod.Close(ctx)
		return nil, errors.MissingExport("memory")
	}
	malloc := mod.ExportedFunction("bbmalloc")
	if malloc == nil {
		mod.Close(ctx)
		return nil, errors.MissingExport("bbmalloc")
	}
	free := mod.ExportedFunction("bbfree")
	if free == nil {
		mod.Close(ctx)
		return nil, errors.MissingExport("bbfree")
	}

	return &Module{
		mod:    mod,
		mem:    &memoryView{mem: mem},
		malloc: malloc,
		free:   free,
		log:    l.engine.log,
	}, nil
}

func (l *Library) importsWASI() bool {
	for _, def := range l.compiled.ImportedFunctions() {
		module, _, ok := def.Import()
		if ok && module == wasi_snapshot_preview1.ModuleName {
			return true
		}
	}
	return false
}
