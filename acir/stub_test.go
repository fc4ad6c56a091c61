package acir

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	acirruntime "github.com/wippyai/acir-runtime"
	bberr "github.com/wippyai/acir-runtime/errors"
)

// stubNative simulates the native library well enough to exercise every
// wrapper path: handles, the dual error channels, framed outputs, and the
// allocator. It counts allocations and handle lifecycle events so tests
// can assert exactly-once destruction and zero leaks.
type stubNative struct {
	data []byte
	next uint32

	live       int // outstanding allocations
	frees      int
	doubleFree bool
	freed      map[uint32]bool

	created int
	deleted int

	// composer state, keyed by handle value
	handles map[uint32]*stubComposer

	// failure injection
	failCreate     bool
	createDiag     string
	badContract    bool // emit invalid UTF-8 from get_solidity_verifier
	dropHashOutput bool // leave the key-hash out-pointer null
}

type stubComposer struct {
	pkReady  bool
	vkDigest [8]byte
	vkReady  bool
}

func newStubNative() *stubNative {
	return &stubNative{
		data:    make([]byte, 1<<20),
		next:    16,
		freed:   map[uint32]bool{},
		handles: map[uint32]*stubComposer{},
	}
}

// Memory interface

func (s *stubNative) Read(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(len(s.data)) {
		return nil, bberr.OutOfBounds(bberr.PhaseDecode, offset, length)
	}
	return s.data[offset : offset+length], nil
}

func (s *stubNative) Write(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > uint64(len(s.data)) {
		return bberr.OutOfBounds(bberr.PhaseEncode, offset, uint32(len(data)))
	}
	copy(s.data[offset:], data)
	return nil
}

func (s *stubNative) ReadU8(offset uint32) (uint8, error) {
	b, err := s.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *stubNative) ReadU32(offset uint32) (uint32, error) {
	b, err := s.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (s *stubNative) WriteU8(offset uint32, value uint8) error {
	return s.Write(offset, []byte{value})
}

func (s *stubNative) WriteU32(offset, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return s.Write(offset, b[:])
}

func (s *stubNative) Size() uint32 { return uint32(len(s.data)) }

// Allocator interface

func (s *stubNative) Alloc(_ context.Context, size uint32) (uint32, error) {
	if uint64(s.next)+uint64(size) > uint64(len(s.data)) {
		return 0, bberr.AllocationFailed(size)
	}
	ptr := s.next
	s.next += size
	if s.next%8 != 0 {
		s.next += 8 - s.next%8
	}
	s.live++
	return ptr, nil
}

func (s *stubNative) Free(_ context.Context, ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	if s.freed[ptr] {
		s.doubleFree = true
		return bberr.InvalidInput(bberr.PhaseEncode, "double free")
	}
	s.freed[ptr] = true
	s.frees++
	s.live--
	return nil
}

// Backend interface

func (s *stubNative) Memory() acirruntime.Memory {
	return s
}

// entryArity mirrors the native signatures; a call with the wrong number
// of arguments faults the way a wasm param-count mismatch would, instead
// of silently indexing whatever arrived.
var entryArity = map[string]int{
	entryNewComposer:         2,
	entryDeleteComposer:      1,
	entryInitProvingKey:      2,
	entryInitVerificationKey: 1,
	entryLoadVerificationKey: 2,
	entryGetVerificationKey:  2,
	entryCreateProof:         5,
	entryVerifyProof:         4,
	entryGetSolidityVerifier: 2,
	entryProofAsFields:       4,
	entryVkAsFields:          3,
	entryCircuitSizes:        4,
}

func (s *stubNative) Call(ctx context.Context, entry string, args ...uint32) (uint32, error) {
	if want, ok := entryArity[entry]; ok && len(args) != want {
		return 0, bberr.Call(entry, fmt.Errorf("expected %d params, got %d", want, len(args)))
	}
	switch entry {
	case entryNewComposer:
		return s.newComposer(ctx, args)
	case entryDeleteComposer:
		return s.deleteComposer(ctx, args)
	case entryInitProvingKey:
		return s.initProvingKey(ctx, args)
	case entryInitVerificationKey:
		return s.initVerificationKey(ctx, args)
	case entryLoadVerificationKey:
		return s.loadVerificationKey(ctx, args)
	case entryGetVerificationKey:
		return s.getVerificationKey(ctx, args)
	case entryCreateProof:
		return s.createProof(ctx, args)
	case entryVerifyProof:
		return s.verifyProof(ctx, args)
	case entryGetSolidityVerifier:
		return s.solidityVerifier(ctx, args)
	case entryProofAsFields:
		return s.proofAsFields(ctx, args)
	case entryVkAsFields:
		return s.vkAsFields(ctx, args)
	case entryCircuitSizes:
		return s.circuitSizes(ctx, args)
	default:
		return 0, bberr.MissingExport(entry)
	}
}

// helpers

func (s *stubNative) word(ptr uint32) uint32 {
	v, _ := s.ReadU32(ptr)
	return v
}

func (s *stubNative) framed(ptr uint32) []byte {
	length := binary.BigEndian.Uint32(s.data[ptr : ptr+4])
	out := make([]byte, length)
	copy(out, s.data[ptr+4:ptr+4+length])
	return out
}

func (s *stubNative) emitFramed(ctx context.Context, payload []byte) uint32 {
	ptr, err := s.Alloc(ctx, uint32(4+len(payload)))
	if err != nil {
		return 0
	}
	binary.BigEndian.PutUint32(s.data[ptr:], uint32(len(payload)))
	copy(s.data[ptr+4:], payload)
	return ptr
}

func (s *stubNative) emitCString(ctx context.Context, msg []byte) uint32 {
	ptr, err := s.Alloc(ctx, uint32(len(msg)+1))
	if err != nil {
		return 0
	}
	copy(s.data[ptr:], msg)
	s.data[ptr+uint32(len(msg))] = 0
	return ptr
}

func (s *stubNative) diag(ctx context.Context, msg string) uint32 {
	return s.emitCString(ctx, []byte(msg))
}

func (s *stubNative) composer(selfCell uint32) *stubComposer {
	return s.handles[s.word(selfCell)]
}

// Proofs carry the vk digest they were created against plus the recursion
// flag, so verification honors key round trips and flag mismatches.
func stubProof(csDigest [8]byte, witness []byte, recursive bool) []byte {
	h := sha256.New()
	h.Write(csDigest[:])
	h.Write(witness)
	if recursive {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	body := h.Sum(nil)
	proof := make([]byte, 0, 9+len(body))
	proof = append(proof, csDigest[:]...)
	if recursive {
		proof = append(proof, 1)
	} else {
		proof = append(proof, 0)
	}
	return append(proof, body...)
}

func csDigest(cs []byte) [8]byte {
	sum := sha256.Sum256(cs)
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// entry point simulations

func (s *stubNative) newComposer(ctx context.Context, args []uint32) (uint32, error) {
	outCell := args[1]
	if s.failCreate {
		// leave the out cell null
		if s.createDiag != "" {
			return s.diag(ctx, s.createDiag), nil
		}
		return 0, nil
	}
	s.created++
	handle := uint32(0x1000 + s.created)
	s.handles[handle] = &stubComposer{}
	s.WriteU32(outCell, handle)
	return 0, nil
}

func (s *stubNative) deleteComposer(ctx context.Context, args []uint32) (uint32, error) {
	handle := s.word(args[0])
	if _, ok := s.handles[handle]; !ok {
		return s.diag(ctx, "unknown composer handle"), nil
	}
	delete(s.handles, handle)
	s.deleted++
	return 0, nil
}

func (s *stubNative) initProvingKey(ctx context.Context, args []uint32) (uint32, error) {
	comp := s.composer(args[0])
	cs := s.framed(args[1])
	if len(cs) == 0 {
		return s.diag(ctx, "empty constraint system"), nil
	}
	comp.pkReady = true
	comp.vkDigest = csDigest(cs)
	return 0, nil
}

func (s *stubNative) initVerificationKey(ctx context.Context, args []uint32) (uint32, error) {
	comp := s.composer(args[0])
	if !comp.pkReady {
		return s.diag(ctx, "proving key not initialized"), nil
	}
	comp.vkReady = true
	return 0, nil
}

func (s *stubNative) loadVerificationKey(ctx context.Context, args []uint32) (uint32, error) {
	comp := s.composer(args[0])
	vk := s.framed(args[1])
	if len(vk) != 8 {
		return s.diag(ctx, "malformed verification key"), nil
	}
	copy(comp.vkDigest[:], vk)
	comp.vkReady = true
	return 0, nil
}

func (s *stubNative) getVerificationKey(ctx context.Context, args []uint32) (uint32, error) {
	comp := s.composer(args[0])
	if !comp.pkReady {
		return s.diag(ctx, "proving key not initialized"), nil
	}
	ptr := s.emitFramed(ctx, comp.vkDigest[:])
	s.WriteU32(args[1], ptr)
	return 0, nil
}

func (s *stubNative) createProof(ctx context.Context, args []uint32) (uint32, error) {
	comp := s.composer(args[0])
	if !comp.pkReady {
		// null output plus explanation
		return s.diag(ctx, "proving key not initialized"), nil
	}
	cs := s.framed(args[1])
	witness := s.framed(args[2])
	recursive := s.data[args[3]] != 0
	proof := stubProof(csDigest(cs), witness, recursive)
	ptr := s.emitFramed(ctx, proof)
	s.WriteU32(args[4], ptr)
	return 0, nil
}

func (s *stubNative) verifyProof(ctx context.Context, args []uint32) (uint32, error) {
	comp := s.composer(args[0])
	if !comp.vkReady {
		return s.diag(ctx, "verification key not initialized"), nil
	}
	proof := s.framed(args[1])
	recursive := s.data[args[2]] != 0

	// a proof is valid when it matches the loaded key and the requested
	// flag matches the one baked into the proof
	valid := false
	if len(proof) > 9 {
		var d [8]byte
		copy(d[:], proof[:8])
		flag := proof[8] != 0
		if d == comp.vkDigest && flag == recursive {
			valid = true
		}
	}
	if valid {
		s.data[args[3]] = 1
	} else {
		s.data[args[3]] = 0
	}
	return 0, nil
}

func (s *stubNative) solidityVerifier(ctx context.Context, args []uint32) (uint32, error) {
	comp := s.composer(args[0])
	if !comp.vkReady {
		return s.diag(ctx, "verification key not initialized"), nil
	}
	if s.badContract {
		ptr := s.emitCString(ctx, []byte{0xff, 0xfe, 'x'})
		s.WriteU32(args[1], ptr)
		return 0, nil
	}
	contract := fmt.Sprintf("// Verifier for key %x\ncontract UltraVerifier {}\n", comp.vkDigest)
	ptr := s.emitCString(ctx, []byte(contract))
	s.WriteU32(args[1], ptr)
	return 0, nil
}

func (s *stubNative) proofAsFields(ctx context.Context, args []uint32) (uint32, error) {
	proof := s.framed(args[1])
	count := s.word(args[2])
	if int(count) > len(proof) {
		return s.diag(ctx, "public input count exceeds proof length"), nil
	}
	// one 32-byte field element per proof byte, left-padded
	fields := make([]byte, 32*len(proof))
	for i, b := range proof {
		fields[32*i+31] = b
	}
	ptr := s.emitFramed(ctx, fields)
	s.WriteU32(args[3], ptr)
	return 0, nil
}

func (s *stubNative) vkAsFields(ctx context.Context, args []uint32) (uint32, error) {
	comp := s.composer(args[0])
	if !comp.vkReady {
		return s.diag(ctx, "verification key not initialized"), nil
	}
	fields := make([]byte, 32*len(comp.vkDigest))
	for i, b := range comp.vkDigest {
		fields[32*i+31] = b
	}
	s.WriteU32(args[1], s.emitFramed(ctx, fields))
	if !s.dropHashOutput {
		sum := sha256.Sum256(comp.vkDigest[:])
		s.WriteU32(args[2], s.emitFramed(ctx, sum[:]))
	}
	return 0, nil
}

func (s *stubNative) circuitSizes(ctx context.Context, args []uint32) (uint32, error) {
	cs := s.framed(args[0])
	if len(cs) < 4 {
		return s.diag(ctx, "failed to deserialize constraint system"), nil
	}
	writeBE := func(ptr, v uint32) {
		binary.BigEndian.PutUint32(s.data[ptr:], v)
	}
	exact := uint32(len(cs))
	subgroup := uint32(1)
	for subgroup < exact+1 {
		subgroup <<= 1
	}
	writeBE(args[1], exact)
	writeBE(args[2], exact+1)
	writeBE(args[3], subgroup)
	return 0, nil
}
