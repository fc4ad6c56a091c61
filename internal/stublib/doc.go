// Package stublib synthesizes a miniature WebAssembly stand-in for the
// native proving library. It exports the same calling surface (memory,
// bbmalloc/bbfree, the acir_* entry points) with canned outputs and the
// real library's error conventions, so the engine and the end-to-end
// tests can run without the multi-megabyte production build.
//
// The stub is stateful the way the real composer is: proving-key and
// verification-key readiness gates are tracked in module globals, and
// operations invoked out of order report the corresponding diagnostic
// with a null primary output.
package stublib
