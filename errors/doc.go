// Package errors provides structured error types for the acir-runtime
// binding.
//
// Errors are categorized by Phase (where the error occurred) and Kind
// (error category). The Error type carries the native entry point that
// raised it and, when the native side reported one, its diagnostic
// message, so callers can react to failures programmatically instead of
// scraping log output.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindNative).
//		Entry("acir_create_proof").
//		Diagnostic(msg).
//		Detail("proving key not initialized").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NullPointer(errors.PhaseCall, "acir_get_verification_key", diag)
//	err := errors.OutOfBounds(errors.PhaseDecode, offset, length)
//
// All errors implement the standard error interface and support
// errors.Is/As.
package errors
