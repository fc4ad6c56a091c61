// Package codec bridges Go byte slices and the native library's
// raw-pointer buffer representation. Every assumption about the native
// framing lives here, so an ABI revision on the native side is a change
// to one package.
//
// Two byte orders cross the boundary and must not be confused:
//
//   - Machine words (handles, out-pointer cells, booleans, scalar
//     in-parameters) are little-endian, the wasm memory model's order.
//   - Serialized values (the u32 length prefix framing every
//     variable-length buffer, and counts written by the native
//     serializer) are big-endian, the library's serialization order.
//
// A null pointer (offset 0) is always a failure signal, never an empty
// buffer; decoders reject it before touching memory.
package codec
