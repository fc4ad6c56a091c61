// Package engine hosts the native proving library inside the process
// using wazero. It knows nothing about the ACIR operations themselves:
// it compiles the library's WebAssembly build, instantiates independent
// instances of it, and exposes the raw calling surface (entry point
// invocation, linear memory, the library's bbmalloc/bbfree allocator)
// that the acir package drives.
//
// An Engine owns one wazero runtime and may host many libraries and
// instances. Closing the engine tears down every instance created from
// it, so a leaked instance is still reclaimed at engine shutdown.
package engine
