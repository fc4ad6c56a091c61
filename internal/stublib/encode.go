package stublib

// Minimal wasm binary writer, enough to emit the stub module. Section and
// value encodings follow the core binary format; there is no validation
// here, the engine's compiler is the arbiter.

const (
	secType   = 1
	secFunc   = 3
	secMemory = 5
	secGlobal = 6
	secExport = 7
	secCode   = 10
	secData   = 11

	valI32 = 0x7f

	exportFunc = 0x00
	exportMem  = 0x02
)

// opcodes used by the stub bodies
const (
	opIf        = 0x04
	opElse      = 0x05
	opEnd       = 0x0b
	opReturn    = 0x0f
	opLocalGet  = 0x20
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Load8U = 0x2d
	opI32Store  = 0x36
	opI32Store8 = 0x3a
	opI32Const  = 0x41
	opI32Eqz    = 0x45
	opI32Eq     = 0x46
	opI32Ne     = 0x47
	opI32Add    = 0x6a

	blockI32 = 0x7f
)

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb128(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

// section frames contents with its id and byte length
func section(id byte, contents []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint32(len(contents)))...)
	return append(out, contents...)
}

// vec prefixes a concatenation with its element count
func vec(items [][]byte) []byte {
	out := uleb128(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb128(uint32(len(s))), s...)
}

// funcType encodes (params...) -> results...
func funcType(params, results int) []byte {
	out := []byte{0x60}
	out = append(out, uleb128(uint32(params))...)
	for i := 0; i < params; i++ {
		out = append(out, valI32)
	}
	out = append(out, uleb128(uint32(results))...)
	for i := 0; i < results; i++ {
		out = append(out, valI32)
	}
	return out
}

// mutGlobal encodes a mutable i32 global with a constant initializer
func mutGlobal(init int32) []byte {
	out := []byte{valI32, 0x01, opI32Const}
	out = append(out, sleb128(init)...)
	return append(out, opEnd)
}

func export(n string, kind byte, idx uint32) []byte {
	out := name(n)
	out = append(out, kind)
	return append(out, uleb128(idx)...)
}

// codeEntry frames a body (no locals) with its size
func codeEntry(body []byte) []byte {
	contents := append([]byte{0x00}, body...) // empty locals vector
	out := uleb128(uint32(len(contents)))
	return append(out, contents...)
}

// dataSegment encodes an active segment at a constant offset
func dataSegment(offset int32, payload []byte) []byte {
	out := []byte{0x00, opI32Const}
	out = append(out, sleb128(offset)...)
	out = append(out, opEnd)
	out = append(out, uleb128(uint32(len(payload)))...)
	return append(out, payload...)
}

// instruction helpers

func localGet(idx uint32) []byte {
	return append([]byte{opLocalGet}, uleb128(idx)...)
}

func globalGet(idx uint32) []byte {
	return append([]byte{opGlobalGet}, uleb128(idx)...)
}

func globalSet(idx uint32) []byte {
	return append([]byte{opGlobalSet}, uleb128(idx)...)
}

func i32Const(v int32) []byte {
	return append([]byte{opI32Const}, sleb128(v)...)
}

// i32Store assumes the address and value are on the stack
func i32Store() []byte {
	return []byte{opI32Store, 0x02, 0x00} // align 4, offset 0
}

func i32Store8() []byte {
	return []byte{opI32Store8, 0x00, 0x00}
}

func i32Load8U(offset uint32) []byte {
	out := []byte{opI32Load8U, 0x00}
	return append(out, uleb128(offset)...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
