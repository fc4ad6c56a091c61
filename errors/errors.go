package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad      Phase = "load"      // library loading and instantiation
	PhaseCall      Phase = "call"      // native entry point invocation
	PhaseEncode    Phase = "encode"    // Go to native memory
	PhaseDecode    Phase = "decode"    // native memory to Go
	PhaseLifecycle Phase = "lifecycle" // handle creation and destruction
)

// Kind categorizes the error
type Kind string

const (
	KindNullPointer   Kind = "null_pointer"
	KindNative        Kind = "native"
	KindAllocation    Kind = "allocation"
	KindOutOfBounds   Kind = "out_of_bounds"
	KindInvalidUTF8   Kind = "invalid_utf8"
	KindInvalidInput  Kind = "invalid_input"
	KindClosed        Kind = "closed"
	KindMissingExport Kind = "missing_export"
	KindInstantiation Kind = "instantiation"
	KindInvalidData   Kind = "invalid_data"
)

// Error is the structured error type used throughout the binding
type Error struct {
	Cause      error
	Phase      Phase
	Kind       Kind
	Entry      string // native entry point, e.g. "acir_create_proof"
	Diagnostic string // message reported by the native side, if any
	Detail     string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Entry != "" {
		b.WriteString(" in ")
		b.WriteString(e.Entry)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Diagnostic != "" {
		b.WriteString(" (native: ")
		b.WriteString(e.Diagnostic)
		b.WriteByte(')')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Entry sets the native entry point name
func (b *Builder) Entry(entry string) *Builder {
	b.err.Entry = entry
	return b
}

// Diagnostic sets the message reported by the native side
func (b *Builder) Diagnostic(msg string) *Builder {
	b.err.Diagnostic = msg
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NullPointer creates an error for a null primary output or handle.
// diagnostic carries the native side's explanation when one was reported.
func NullPointer(phase Phase, entry, diagnostic string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindNullPointer,
		Entry:      entry,
		Diagnostic: diagnostic,
		Detail:     "native call produced a null output",
	}
}

// Native creates an error from a native diagnostic message
func Native(phase Phase, entry, diagnostic string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindNative,
		Entry:      entry,
		Diagnostic: diagnostic,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size uint32) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes in native memory", size),
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access of %d bytes at offset %d exceeds native memory", length, offset),
	}
}

// InvalidUTF8 creates an invalid UTF-8 error for native text output
func InvalidUTF8(entry string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidUTF8,
		Entry:  entry,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Closed creates an error for an operation on a destroyed handle
func Closed(what string) *Error {
	return &Error{
		Phase:  PhaseLifecycle,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// MissingExport is returned when the native library lacks a required entry point
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingExport,
		Entry:  name,
		Detail: fmt.Sprintf("native library does not export %q", name),
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: "instantiate native library",
		Cause:  cause,
	}
}

// Load creates a library loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Call wraps a fault raised while executing a native entry point
func Call(entry string, cause error) *Error {
	return &Error{
		Phase: PhaseCall,
		Kind:  KindNative,
		Entry: entry,
		Cause: cause,
	}
}
