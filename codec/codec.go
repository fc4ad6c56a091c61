package codec

import (
	"context"
	"encoding/binary"
	"unicode/utf8"

	acirruntime "github.com/wippyai/acir-runtime"
	"github.com/wippyai/acir-runtime/errors"
)

type Memory = acirruntime.Memory
type Allocator = acirruntime.Allocator

// WordSize is the width of a native pointer or scalar cell.
const WordSize = 4

// maxCStringLen bounds the NUL scan so a missing terminator cannot walk
// the whole linear memory.
const maxCStringLen = 1 << 20

// WriteBytes copies data into native memory framed the way the library's
// deserializer expects: a big-endian u32 length prefix followed by the
// payload. Returns the pointer to the prefix.
func WriteBytes(ctx context.Context, mem Memory, alloc Allocator, data []byte) (uint32, error) {
	if uint64(len(data)) > 0xffffffff-WordSize {
		return 0, errors.InvalidInput(errors.PhaseEncode, "buffer exceeds native address space")
	}

	framed := make([]byte, WordSize+len(data))
	binary.BigEndian.PutUint32(framed, uint32(len(data)))
	copy(framed[WordSize:], data)

	ptr, err := alloc.Alloc(ctx, uint32(len(framed)))
	if err != nil {
		return 0, err
	}
	if err := mem.Write(ptr, framed); err != nil {
		alloc.Free(ctx, ptr)
		return 0, err
	}
	return ptr, nil
}

// ReadFramed decodes a native output buffer: big-endian u32 length prefix
// followed by that many payload bytes. The result is a Go-owned copy; the
// native allocation is untouched and remains the caller's to release.
func ReadFramed(mem Memory, ptr uint32) ([]byte, error) {
	if ptr == 0 {
		return nil, errors.NullPointer(errors.PhaseDecode, "", "")
	}

	prefix, err := mem.Read(ptr, WordSize)
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(prefix)
	if length == 0 {
		return []byte{}, nil
	}

	payload, err := mem.Read(ptr+WordSize, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, payload)
	return out, nil
}

// WriteWord allocates a machine-word cell holding value. Used both for
// scalar in-parameters and, with value 0, for out-pointer cells that the
// native side fills; out cells must always start null so a stale value
// can never read as success.
func WriteWord(ctx context.Context, mem Memory, alloc Allocator, value uint32) (uint32, error) {
	ptr, err := alloc.Alloc(ctx, WordSize)
	if err != nil {
		return 0, err
	}
	if err := mem.WriteU32(ptr, value); err != nil {
		alloc.Free(ctx, ptr)
		return 0, err
	}
	return ptr, nil
}

// ReadWord reads a machine-word cell.
func ReadWord(mem Memory, ptr uint32) (uint32, error) {
	if ptr == 0 {
		return 0, errors.NullPointer(errors.PhaseDecode, "", "")
	}
	return mem.ReadU32(ptr)
}

// WriteBool allocates a one-byte cell holding v.
func WriteBool(ctx context.Context, mem Memory, alloc Allocator, v bool) (uint32, error) {
	ptr, err := alloc.Alloc(ctx, 1)
	if err != nil {
		return 0, err
	}
	var b uint8
	if v {
		b = 1
	}
	if err := mem.WriteU8(ptr, b); err != nil {
		alloc.Free(ctx, ptr)
		return 0, err
	}
	return ptr, nil
}

// ReadBool reads a one-byte cell. Any non-zero value is true.
func ReadBool(mem Memory, ptr uint32) (bool, error) {
	if ptr == 0 {
		return false, errors.NullPointer(errors.PhaseDecode, "", "")
	}
	b, err := mem.ReadU8(ptr)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadBE32 reads a count written by the native serializer, which emits
// big-endian regardless of the machine order.
func ReadBE32(mem Memory, ptr uint32) (uint32, error) {
	if ptr == 0 {
		return 0, errors.NullPointer(errors.PhaseDecode, "", "")
	}
	raw, err := mem.Read(ptr, WordSize)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw), nil
}

// ReadCString decodes a NUL-terminated native string as UTF-8 text.
// A missing terminator within maxCStringLen or an invalid encoding is a
// reported error, not a silent truncation.
func ReadCString(mem Memory, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", errors.NullPointer(errors.PhaseDecode, "", "")
	}

	// Scan in chunks; native strings are usually short but the contract
	// only promises a terminator somewhere.
	const chunk = 256
	var buf []byte
	for off := ptr; off-ptr < maxCStringLen; {
		size := mem.Size()
		if off >= size {
			return "", errors.OutOfBounds(errors.PhaseDecode, off, 1)
		}
		n := uint32(chunk)
		if n > size-off {
			n = size - off
		}
		data, err := mem.Read(off, n)
		if err != nil {
			return "", err
		}
		for i, b := range data {
			if b == 0 {
				buf = append(buf, data[:i]...)
				if !utf8.Valid(buf) {
					return "", errors.InvalidUTF8("", buf)
				}
				return string(buf), nil
			}
		}
		buf = append(buf, data...)
		off += n
	}
	return "", errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Detail("native string not terminated within %d bytes", maxCStringLen).
		Build()
}
