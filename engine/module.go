package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	acirruntime "github.com/wippyai/acir-runtime"
	"github.com/wippyai/acir-runtime/errors"
)

// Module is one live instance of the native library. It exposes the raw
// calling surface the acir package builds on: entry point invocation,
// the instance's linear memory, and the library's own allocator.
//
// A Module makes no attempt to serialize calls; that is the composer
// wrapper's job, since the unit of native state is the composer handle.
type Module struct {
	mod     api.Module
	mem     *memoryView
	malloc  api.Function
	free    api.Function
	log     *zap.Logger
	funcs   map[string]api.Function
	funcsMu sync.RWMutex
	closed  atomic.Bool
}

// Call invokes a native entry point. Arguments are 32-bit pointers into
// the instance's memory (or pointer cells for out-parameters). The
// returned word is the entry point's diagnostic string pointer, 0 when
// the native side reported nothing. A wasm trap surfaces as an error, not
// a diagnostic.
func (m *Module) Call(ctx context.Context, entry string, args ...uint32) (uint32, error) {
	if m.closed.Load() {
		return 0, errors.Closed("native library instance")
	}

	fn, err := m.exported(entry)
	if err != nil {
		return 0, err
	}

	raw := make([]uint64, len(args))
	for i, a := range args {
		raw[i] = uint64(a)
	}

	results, err := fn.Call(ctx, raw...)
	if err != nil {
		return 0, errors.Call(entry, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return uint32(results[0]), nil
}

// Memory returns a view of the instance's linear memory.
func (m *Module) Memory() acirruntime.Memory {
	return m.mem
}

// Alloc reserves size bytes in the instance's memory through bbmalloc.
func (m *Module) Alloc(ctx context.Context, size uint32) (uint32, error) {
	if m.closed.Load() {
		return 0, errors.Closed("native library instance")
	}

	results, err := m.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, errors.Call("bbmalloc", err)
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, errors.AllocationFailed(size)
	}
	return uint32(results[0]), nil
}

// Free releases a buffer previously obtained from Alloc or handed over
// by the native side through an out-pointer. Freeing the null pointer is
// a no-op, matching the native allocator.
func (m *Module) Free(ctx context.Context, ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	if m.closed.Load() {
		return errors.Closed("native library instance")
	}

	if _, err := m.free.Call(ctx, uint64(ptr)); err != nil {
		return errors.Call("bbfree", err)
	}
	return nil
}

// Close tears down the instance. Safe to call more than once; only the
// first call releases anything.
func (m *Module) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.log.Debug("closing native library instance")
	return m.mod.Close(ctx)
}

func (m *Module) exported(entry string) (api.Function, error) {
	m.funcsMu.RLock()
	fn, ok := m.funcs[entry]
	m.funcsMu.RUnlock()
	if ok {
		return fn, nil
	}

	fn = m.mod.ExportedFunction(entry)
	if fn == nil {
		return nil, errors.MissingExport(entry)
	}

	m.funcsMu.Lock()
	if m.funcs == nil {
		m.funcs = make(map[string]api.Function)
	}
	m.funcs[entry] = fn
	m.funcsMu.Unlock()

	return fn, nil
}
