// Package acirruntime provides a Go binding to the ACIR composer, the
// stateful proving object exposed by the barretenberg proving library's
// C binding surface. The native library is consumed as a WebAssembly
// build of that surface and hosted in-process with wazero; all proving,
// key generation, and verification mathematics stay inside the library.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	acirruntime/        Root package with Memory and Allocator interfaces
//	├── acir/           Safe composer wrapper: lifecycle and proof operations
//	├── codec/          Buffer framing across the native boundary
//	├── engine/         wazero integration: load and instantiate the library
//	├── errors/         Structured error types for debugging
//	└── cmd/acir/       CLI driver with an interactive shell mode
//
// # Quick Start
//
// Load the native library and create a proof:
//
//	eng, err := engine.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	lib, err := eng.Load(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	native, err := lib.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer native.Close(ctx)
//
//	composer, err := acir.New(ctx, native, &acir.Config{SizeHint: 0})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer composer.Close(ctx)
//
//	if err := composer.InitProvingKey(ctx, constraintSystem); err != nil {
//	    log.Fatal(err)
//	}
//	proof, err := composer.CreateProof(ctx, constraintSystem, witness, false)
//
// # Error Model
//
// Native entry points signal through two channels: a diagnostic string
// pointer and the null-ness of their primary output. Both are always
// checked. A null output is authoritative failure and the diagnostic, when
// present, rides along on the returned error; a diagnostic next to a
// non-null output is advisory and goes to the logger instead.
//
// # Thread Safety
//
// Engine and Library are safe for concurrent use. A Composer serializes
// its native calls behind one mutex per handle: the native library's
// thread-safety is unproven, so a single handle never sees concurrent
// calls. Callers that want parallel proving create independent composers
// on independent instances.
//
// # Memory Model
//
// Buffers handed to the native side are allocated in its linear memory
// through its own bbmalloc entry point and released with bbfree by the
// binding, on both directions of the boundary. Output buffers are copied
// into Go-owned slices before release, so results never alias native
// memory.
package acirruntime
