package acirruntime

import "context"

// Memory is a view of the native library's linear memory. Offsets are
// 32-bit pointers in the native address space; offset 0 is the null
// pointer and is never readable. Multi-byte accessors use the machine
// byte order of the native module (little-endian).
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
	Size() uint32
}

// Allocator allocates buffers inside the native library's memory through
// its own allocation entry points, so the native side can read and free
// them with its usual conventions.
type Allocator interface {
	Alloc(ctx context.Context, size uint32) (uint32, error)
	Free(ctx context.Context, ptr uint32) error
}
