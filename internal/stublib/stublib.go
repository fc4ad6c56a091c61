package stublib

import "encoding/binary"

// Canned payloads and the markers tests assert against.
var (
	// ProofPayload is the body the stub returns from acir_create_proof.
	ProofPayload = []byte("stub proof: 32 bytes of nothing.")

	// VKPayload is the serialized verification key.
	VKPayload = []byte("stub verification key")

	// FieldsPayload stands in for field-element serializations.
	FieldsPayload = []byte("stub field elements, 64 bytes padded to taste....")

	// KeyHashPayload is the verification key hash.
	KeyHashPayload = []byte("stub vk hash 32b")

	// Contract is the Solidity verifier text.
	Contract = "// stub verifier\ncontract StubVerifier {}\n"

	// DiagNoProvingKey and friends are the diagnostics the stub reports
	// when operations run out of order.
	DiagNoProvingKey      = "proving key not initialized"
	DiagNoVerificationKey = "verification key not initialized"
	DiagBadBuffer         = "failed to deserialize constraint system"
)

// The stub accepts a constraint system whose first payload byte is the
// format marker; anything else reports DiagBadBuffer.
const csMarker = 0xac

// Circuit sizes the stub reports for any accepted constraint system.
const (
	SizeExact    = 8
	SizeTotal    = 16
	SizeSubgroup = 16
)

// ValidCS returns a constraint system buffer the stub accepts.
func ValidCS() []byte {
	return []byte{csMarker, 'c', 'i', 'r', 'c', 'u', 'i', 't'}
}

// MalformedCS returns a buffer the stub rejects.
func MalformedCS() []byte {
	return []byte{0x01}
}

// InvalidProof returns a proof the stub's verifier turns down.
func InvalidProof() []byte {
	return []byte("not the canned proof")
}

// Data layout inside the stub's memory. Everything below heapBase is
// static data; bbmalloc bumps from heapBase up.
const (
	offDiagNoPK  = 1024
	offDiagNoVK  = 1088
	offDiagBadCS = 1152
	offProof     = 1216
	offVK        = 1536
	offContract  = 1792
	offFields    = 2048
	offKeyHash   = 2304
	heapBase     = 8192
)

// global indices
const (
	gHeap = 0
	gPK   = 1
	gVK   = 2
)

// bswap returns the constant whose little-endian store produces v in the
// native serializer's big-endian order.
func bswap(v uint32) int32 {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return int32(binary.LittleEndian.Uint32(b[:]))
}

func framed(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

func cstring(s string) []byte {
	return append([]byte(s), 0)
}

type fn struct {
	name   string
	params int
	body   []byte
}

// Build emits the stub library binary.
func Build() []byte {
	// gated wraps a body so it runs only when the readiness global is
	// set, reporting diag otherwise
	gated := func(gate uint32, diag int32, body []byte) []byte {
		return cat(
			globalGet(gate),
			[]byte{opI32Eqz},
			[]byte{opIf, blockI32},
			i32Const(diag),
			[]byte{opElse},
			body,
			[]byte{opEnd},
		)
	}
	// storeAt writes a constant word through the pointer in local idx
	storeAt := func(local uint32, value int32) []byte {
		return cat(localGet(local), i32Const(value), i32Store())
	}
	ok := i32Const(0)

	funcs := []fn{
		{"bbmalloc", 1, cat(
			globalGet(gHeap),
			globalGet(gHeap),
			localGet(0),
			[]byte{opI32Add},
			globalSet(gHeap),
			[]byte{opEnd},
		)},
		{"bbfree", 1, []byte{opEnd}},

		{"acir_new_acir_composer", 2, cat(
			storeAt(1, 42),
			ok,
			[]byte{opEnd},
		)},
		{"acir_delete_acir_composer", 1, cat(ok, []byte{opEnd})},

		{"acir_init_proving_key", 2, cat(
			i32Const(1), globalSet(gPK),
			ok,
			[]byte{opEnd},
		)},
		{"acir_init_verification_key", 1, cat(
			gated(gPK, offDiagNoPK, cat(
				i32Const(1), globalSet(gVK),
				ok,
			)),
			[]byte{opEnd},
		)},
		{"acir_load_verification_key", 2, cat(
			i32Const(1), globalSet(gVK),
			ok,
			[]byte{opEnd},
		)},
		{"acir_get_verification_key", 2, cat(
			gated(gPK, offDiagNoPK, cat(
				storeAt(1, offVK),
				ok,
			)),
			[]byte{opEnd},
		)},

		{"acir_create_proof", 5, cat(
			gated(gPK, offDiagNoPK, cat(
				storeAt(4, offProof),
				ok,
			)),
			[]byte{opEnd},
		)},
		// a proof verifies when its first payload byte matches the canned
		// proof's, so tests can produce both verdicts
		{"acir_verify_proof", 4, cat(
			gated(gVK, offDiagNoVK, cat(
				localGet(3),
				localGet(1),
				i32Load8U(4),
				i32Const(int32(ProofPayload[0])),
				[]byte{opI32Eq},
				i32Store8(),
				ok,
			)),
			[]byte{opEnd},
		)},

		{"acir_get_solidity_verifier", 2, cat(
			gated(gVK, offDiagNoVK, cat(
				storeAt(1, offContract),
				ok,
			)),
			[]byte{opEnd},
		)},
		{"acir_serialize_proof_into_fields", 4, cat(
			storeAt(3, offFields),
			ok,
			[]byte{opEnd},
		)},
		{"acir_serialize_verification_key_into_fields", 3, cat(
			gated(gVK, offDiagNoVK, cat(
				storeAt(1, offFields),
				storeAt(2, offKeyHash),
				ok,
			)),
			[]byte{opEnd},
		)},

		{"acir_get_circuit_sizes", 4, cat(
			localGet(0),
			i32Load8U(4), // first payload byte past the length prefix
			i32Const(csMarker),
			[]byte{opI32Ne},
			[]byte{opIf, blockI32},
			i32Const(offDiagBadCS),
			[]byte{opElse},
			storeAt(1, bswap(SizeExact)),
			storeAt(2, bswap(SizeTotal)),
			storeAt(3, bswap(SizeSubgroup)),
			ok,
			[]byte{opEnd, opEnd},
		)},
	}

	// type section: one entry per distinct (params, results) pair
	typeIdx := map[[2]int]uint32{}
	var types [][]byte
	indexOf := func(params, results int) uint32 {
		key := [2]int{params, results}
		if idx, seen := typeIdx[key]; seen {
			return idx
		}
		idx := uint32(len(types))
		typeIdx[key] = idx
		types = append(types, funcType(params, results))
		return idx
	}

	var funcSec, exports, code [][]byte
	exports = append(exports, export("memory", exportMem, 0))
	for i, f := range funcs {
		results := 1
		if f.name == "bbfree" {
			results = 0
		}
		funcSec = append(funcSec, uleb128(indexOf(f.params, results)))
		exports = append(exports, export(f.name, exportFunc, uint32(i)))
		code = append(code, codeEntry(f.body))
	}

	globals := [][]byte{
		mutGlobal(heapBase),
		mutGlobal(0), // proving key readiness
		mutGlobal(0), // verification key readiness
	}

	data := [][]byte{
		dataSegment(offDiagNoPK, cstring(DiagNoProvingKey)),
		dataSegment(offDiagNoVK, cstring(DiagNoVerificationKey)),
		dataSegment(offDiagBadCS, cstring(DiagBadBuffer)),
		dataSegment(offProof, framed(ProofPayload)),
		dataSegment(offVK, framed(VKPayload)),
		dataSegment(offContract, cstring(Contract)),
		dataSegment(offFields, framed(FieldsPayload)),
		dataSegment(offKeyHash, framed(KeyHashPayload)),
	}

	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, section(secType, vec(types))...)
	mod = append(mod, section(secFunc, vec(funcSec))...)
	mod = append(mod, section(secMemory, vec([][]byte{{0x00, 0x04}}))...) // min 4 pages
	mod = append(mod, section(secGlobal, vec(globals))...)
	mod = append(mod, section(secExport, vec(exports))...)
	mod = append(mod, section(secCode, vec(code))...)
	mod = append(mod, section(secData, vec(data))...)
	return mod
}
