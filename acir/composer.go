package acir

import (
	"context"
	"sync"

	"go.uber.org/zap"

	acirruntime "github.com/wippyai/acir-runtime"
	"github.com/wippyai/acir-runtime/codec"
	"github.com/wippyai/acir-runtime/errors"
)

// Native entry points of the ACIR composer binding surface.
const (
	entryNewComposer         = "acir_new_acir_composer"
	entryDeleteComposer      = "acir_delete_acir_composer"
	entryInitProvingKey      = "acir_init_proving_key"
	entryInitVerificationKey = "acir_init_verification_key"
	entryLoadVerificationKey = "acir_load_verification_key"
	entryGetVerificationKey  = "acir_get_verification_key"
	entryCreateProof         = "acir_create_proof"
	entryVerifyProof         = "acir_verify_proof"
	entryGetSolidityVerifier = "acir_get_solidity_verifier"
	entryProofAsFields       = "acir_serialize_proof_into_fields"
	entryVkAsFields          = "acir_serialize_verification_key_into_fields"
	entryCircuitSizes        = "acir_get_circuit_sizes"
)

// Backend is the raw calling surface of one native library instance.
// engine.Module implements it; tests substitute instrumented stand-ins.
type Backend interface {
	acirruntime.Allocator

	// Call invokes a native entry point and returns its diagnostic string
	// pointer, 0 when the native side reported nothing.
	Call(ctx context.Context, entry string, args ...uint32) (uint32, error)

	// Memory is the instance's linear memory.
	Memory() acirruntime.Memory
}

// Config holds configuration for composer creation
type Config struct {
	// SizeHint pre-sizes the native structured reference string. 0 lets
	// the library pick.
	SizeHint uint32

	// Logger receives advisory native diagnostics. Defaults to a no-op
	// logger.
	Logger *zap.Logger
}

// Composer is a safe wrapper around one native ACIR composer handle.
type Composer struct {
	backend Backend
	log     *zap.Logger
	mu      sync.Mutex
	self    uint32 // pointer cell holding the native handle
	closed  bool
}

// New creates a composer. A null native handle is a failure even when no
// diagnostic accompanies it; when one does, it is attached to the error.
func New(ctx context.Context, backend Backend, cfg *Config) (*Composer, error) {
	var sizeHint uint32
	log := zap.NewNop()
	if cfg != nil {
		sizeHint = cfg.SizeHint
		if cfg.Logger != nil {
			log = cfg.Logger
		}
	}

	mem := backend.Memory()
	scratch := codec.NewScratch()
	defer scratch.FreeAndRelease(ctx, backend)

	hintCell, err := scratch.Word(ctx, mem, backend, sizeHint)
	if err != nil {
		return nil, err
	}

	// The handle cell doubles as the out-parameter now and the handle
	// reference for every later call, so it lives as long as the composer.
	selfCell, err := codec.WriteWord(ctx, mem, backend, 0)
	if err != nil {
		return nil, err
	}

	errPtr, callErr := backend.Call(ctx, entryNewComposer, hintCell, selfCell)
	if callErr != nil {
		backend.Free(ctx, selfCell)
		return nil, callErr
	}
	diag, diagErr := takeDiagnostic(ctx, backend, errPtr, entryNewComposer)
	if diagErr != nil {
		backend.Free(ctx, selfCell)
		return nil, diagErr
	}

	handle, err := codec.ReadWord(mem, selfCell)
	if err != nil {
		backend.Free(ctx, selfCell)
		return nil, err
	}
	if handle == 0 {
		backend.Free(ctx, selfCell)
		return nil, errors.NullPointer(errors.PhaseLifecycle, entryNewComposer, diag)
	}
	if diag != "" {
		log.Warn("native diagnostic", zap.String("entry", entryNewComposer), zap.String("diagnostic", diag))
	}

	log.Debug("composer created", zap.Uint32("size_hint", sizeHint))
	return &Composer{backend: backend, log: log, self: selfCell}, nil
}

// Close releases the native handle. The first call wins; later calls
// return nil. Every other operation fails once the composer is closed.
func (c *Composer) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	errPtr, callErr := c.backend.Call(ctx, entryDeleteComposer, c.self)
	freeErr := c.backend.Free(ctx, c.self)
	c.self = 0

	if callErr != nil {
		return callErr
	}
	diag, diagErr := takeDiagnostic(ctx, c.backend, errPtr, entryDeleteComposer)
	if diagErr != nil {
		return diagErr
	}
	if diag != "" {
		// nothing actionable at teardown
		c.log.Warn("native diagnostic", zap.String("entry", entryDeleteComposer), zap.String("diagnostic", diag))
	}
	return freeErr
}

// InitProvingKey compiles the constraint system into a proving key inside
// the native composer. A reported diagnostic is returned as an error; the
// handle itself stays valid either way.
func (c *Composer) InitProvingKey(ctx context.Context, constraintSystem []byte) error {
	return c.initCall(ctx, entryInitProvingKey, constraintSystem)
}

// InitVerificationKey derives the verification key from the proving key
// state. Requires InitProvingKey to have succeeded. The entry point takes
// only the handle.
func (c *Composer) InitVerificationKey(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.Closed("composer")
	}
	return c.statusCall(ctx, entryInitVerificationKey, c.self)
}

// LoadVerificationKey installs a previously serialized verification key.
func (c *Composer) LoadVerificationKey(ctx context.Context, verificationKey []byte) error {
	return c.initCall(ctx, entryLoadVerificationKey, verificationKey)
}

// initCall invokes an entry point taking the handle and one framed input
// buffer. A nil input still marshals, as an empty framed buffer: the
// native deserializer owns the verdict on it, and dropping the argument
// would change the entry point's arity.
func (c *Composer) initCall(ctx context.Context, entry string, input []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.Closed("composer")
	}

	scratch := codec.NewScratch()
	defer scratch.FreeAndRelease(ctx, c.backend)

	ptr, err := scratch.Bytes(ctx, c.backend.Memory(), c.backend, input)
	if err != nil {
		return err
	}
	return c.statusCall(ctx, entry, c.self, ptr)
}

// statusCall runs an entry point whose only output is the diagnostic
// channel. Caller holds the mutex.
func (c *Composer) statusCall(ctx context.Context, entry string, args ...uint32) error {
	errPtr, callErr := c.backend.Call(ctx, entry, args...)
	if callErr != nil {
		return callErr
	}
	diag, diagErr := takeDiagnostic(ctx, c.backend, errPtr, entry)
	if diagErr != nil {
		return diagErr
	}
	if diag != "" {
		return errors.Native(errors.PhaseCall, entry, diag)
	}
	return nil
}

// CreateProof proves the witness against the constraint system. The
// recursive flag selects the proof encoding that can itself be verified
// inside another circuit; it must match at verification time.
func (c *Composer) CreateProof(ctx context.Context, constraintSystem, witness []byte, recursive bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.Closed("composer")
	}

	mem := c.backend.Memory()
	scratch := codec.NewScratch()
	defer scratch.FreeAndRelease(ctx, c.backend)

	csPtr, err := scratch.Bytes(ctx, mem, c.backend, constraintSystem)
	if err != nil {
		return nil, err
	}
	witPtr, err := scratch.Bytes(ctx, mem, c.backend, witness)
	if err != nil {
		return nil, err
	}
	recPtr, err := scratch.Bool(ctx, mem, c.backend, recursive)
	if err != nil {
		return nil, err
	}
	outCell, err := scratch.Word(ctx, mem, c.backend, 0)
	if err != nil {
		return nil, err
	}

	errPtr, callErr := c.backend.Call(ctx, entryCreateProof, c.self, csPtr, witPtr, recPtr, outCell)
	if callErr != nil {
		return nil, callErr
	}
	diag, diagErr := takeDiagnostic(ctx, c.backend, errPtr, entryCreateProof)
	if diagErr != nil {
		return nil, diagErr
	}

	return c.takeFramed(ctx, outCell, entryCreateProof, diag)
}

// VerifyProof checks a proof. An invalid proof is (false, nil): structural
// rejection is a result, not an error. A native fault, such as a missing
// verification key, is an error.
func (c *Composer) VerifyProof(ctx context.Context, proof []byte, recursive bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, errors.Closed("composer")
	}

	mem := c.backend.Memory()
	scratch := codec.NewScratch()
	defer scratch.FreeAndRelease(ctx, c.backend)

	proofPtr, err := scratch.Bytes(ctx, mem, c.backend, proof)
	if err != nil {
		return false, err
	}
	recPtr, err := scratch.Bool(ctx, mem, c.backend, recursive)
	if err != nil {
		return false, err
	}
	resultCell, err := scratch.Bool(ctx, mem, c.backend, false)
	if err != nil {
		return false, err
	}

	errPtr, callErr := c.backend.Call(ctx, entryVerifyProof, c.self, proofPtr, recPtr, resultCell)
	if callErr != nil {
		return false, callErr
	}
	diag, diagErr := takeDiagnostic(ctx, c.backend, errPtr, entryVerifyProof)
	if diagErr != nil {
		return false, diagErr
	}
	if diag != "" {
		return false, errors.Native(errors.PhaseCall, entryVerifyProof, diag)
	}

	return codec.ReadBool(mem, resultCell)
}

// VerificationKey serializes the composer's verification key as an opaque
// buffer, suitable for LoadVerificationKey on another composer.
func (c *Composer) VerificationKey(ctx context.Context) ([]byte, error) {
	return c.bufferCall(ctx, entryGetVerificationKey)
}

func (c *Composer) bufferCall(ctx context.Context, entry string, extra ...uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.Closed("composer")
	}

	mem := c.backend.Memory()
	scratch := codec.NewScratch()
	defer scratch.FreeAndRelease(ctx, c.backend)

	outCell, err := scratch.Word(ctx, mem, c.backend, 0)
	if err != nil {
		return nil, err
	}

	args := append([]uint32{c.self}, extra...)
	args = append(args, outCell)
	errPtr, callErr := c.backend.Call(ctx, entry, args...)
	if callErr != nil {
		return nil, callErr
	}
	diag, diagErr := takeDiagnostic(ctx, c.backend, errPtr, entry)
	if diagErr != nil {
		return nil, diagErr
	}

	return c.takeFramed(ctx, outCell, entry, diag)
}

// SolidityVerifier renders a verifier contract for the current
// verification key. The native output must be valid UTF-8; anything else
// is reported, not passed through.
func (c *Composer) SolidityVerifier(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", errors.Closed("composer")
	}

	mem := c.backend.Memory()
	scratch := codec.NewScratch()
	defer scratch.FreeAndRelease(ctx, c.backend)

	outCell, err := scratch.Word(ctx, mem, c.backend, 0)
	if err != nil {
		return "", err
	}

	errPtr, callErr := c.backend.Call(ctx, entryGetSolidityVerifier, c.self, outCell)
	if callErr != nil {
		return "", callErr
	}
	diag, diagErr := takeDiagnostic(ctx, c.backend, errPtr, entryGetSolidityVerifier)
	if diagErr != nil {
		return "", diagErr
	}

	outPtr, err := codec.ReadWord(mem, outCell)
	if err != nil {
		return "", err
	}
	if outPtr == 0 {
		return "", errors.NullPointer(errors.PhaseCall, entryGetSolidityVerifier, diag)
	}
	if diag != "" {
		c.log.Warn("native diagnostic", zap.String("entry", entryGetSolidityVerifier), zap.String("diagnostic", diag))
	}

	text, readErr := codec.ReadCString(mem, outPtr)
	freeErr := c.backend.Free(ctx, outPtr)
	if readErr != nil {
		if e, ok := readErr.(*errors.Error); ok && e.Entry == "" {
			e.Entry = entryGetSolidityVerifier
		}
		return "", readErr
	}
	if freeErr != nil {
		return "", freeErr
	}
	return text, nil
}

// ProofAsFields re-encodes a proof as field elements for on-chain or
// in-circuit verification. numPublicInputs tells the native encoder how
// many leading elements are public inputs; it must match the proof.
func (c *Composer) ProofAsFields(ctx context.Context, proof []byte, numPublicInputs uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.Closed("composer")
	}

	mem := c.backend.Memory()
	scratch := codec.NewScratch()
	defer scratch.FreeAndRelease(ctx, c.backend)

	proofPtr, err := scratch.Bytes(ctx, mem, c.backend, proof)
	if err != nil {
		return nil, err
	}
	countCell, err := scratch.Word(ctx, mem, c.backend, numPublicInputs)
	if err != nil {
		return nil, err
	}
	outCell, err := scratch.Word(ctx, mem, c.backend, 0)
	if err != nil {
		return nil, err
	}

	errPtr, callErr := c.backend.Call(ctx, entryProofAsFields, c.self, proofPtr, countCell, outCell)
	if callErr != nil {
		return nil, callErr
	}
	diag, diagErr := takeDiagnostic(ctx, c.backend, errPtr, entryProofAsFields)
	if diagErr != nil {
		return nil, diagErr
	}

	return c.takeFramed(ctx, outCell, entryProofAsFields, diag)
}

// VerificationKeyAsFields serializes the verification key as field
// elements together with its hash. Both out-pointers start null and both
// are validated; a single missing output fails the whole operation.
func (c *Composer) VerificationKeyAsFields(ctx context.Context) (vk []byte, keyHash []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, errors.Closed("composer")
	}

	mem := c.backend.Memory()
	scratch := codec.NewScratch()
	defer scratch.FreeAndRelease(ctx, c.backend)

	vkCell, err := scratch.Word(ctx, mem, c.backend, 0)
	if err != nil {
		return nil, nil, err
	}
	hashCell, err := scratch.Word(ctx, mem, c.backend, 0)
	if err != nil {
		return nil, nil, err
	}

	errPtr, callErr := c.backend.Call(ctx, entryVkAsFields, c.self, vkCell, hashCell)
	if callErr != nil {
		return nil, nil, callErr
	}
	diag, diagErr := takeDiagnostic(ctx, c.backend, errPtr, entryVkAsFields)
	if diagErr != nil {
		return nil, nil, diagErr
	}

	vkPtr, err := codec.ReadWord(mem, vkCell)
	if err != nil {
		return nil, nil, err
	}
	hashPtr, err := codec.ReadWord(mem, hashCell)
	if err != nil {
		return nil, nil, err
	}
	if vkPtr == 0 || hashPtr == 0 {
		c.backend.Free(ctx, vkPtr)
		c.backend.Free(ctx, hashPtr)
		return nil, nil, errors.NullPointer(errors.PhaseCall, entryVkAsFields, diag)
	}
	if diag != "" {
		c.log.Warn("native diagnostic", zap.String("entry", entryVkAsFields), zap.String("diagnostic", diag))
	}

	vk, vkErr := codec.ReadFramed(mem, vkPtr)
	keyHash, hashErr := codec.ReadFramed(mem, hashPtr)
	freeVkErr := c.backend.Free(ctx, vkPtr)
	freeHashErr := c.backend.Free(ctx, hashPtr)
	for _, e := range []error{vkErr, hashErr, freeVkErr, freeHashErr} {
		if e != nil {
			return nil, nil, e
		}
	}
	return vk, keyHash, nil
}

// takeFramed resolves a buffer-producing call's out-cell: null output is
// the authoritative failure (with the diagnostic attached), a diagnostic
// next to a real buffer is advisory, and the native allocation is
// released once its contents are copied out.
func (c *Composer) takeFramed(ctx context.Context, outCell uint32, entry, diag string) ([]byte, error) {
	mem := c.backend.Memory()

	outPtr, err := codec.ReadWord(mem, outCell)
	if err != nil {
		return nil, err
	}
	if outPtr == 0 {
		return nil, errors.NullPointer(errors.PhaseCall, entry, diag)
	}
	if diag != "" {
		c.log.Warn("native diagnostic", zap.String("entry", entry), zap.String("diagnostic", diag))
	}

	data, readErr := codec.ReadFramed(mem, outPtr)
	freeErr := c.backend.Free(ctx, outPtr)
	if readErr != nil {
		return nil, readErr
	}
	if freeErr != nil {
		return nil, freeErr
	}
	return data, nil
}

// takeDiagnostic copies and frees the native diagnostic string. A null
// pointer means the native side reported nothing. Failing to decode the
// string is itself an error; a diagnostic the host cannot read must not
// pass as success.
func takeDiagnostic(ctx context.Context, backend Backend, errPtr uint32, entry string) (string, error) {
	if errPtr == 0 {
		return "", nil
	}

	msg, readErr := codec.ReadCString(backend.Memory(), errPtr)
	freeErr := backend.Free(ctx, errPtr)
	if readErr != nil {
		if e, ok := readErr.(*errors.Error); ok && e.Entry == "" {
			e.Entry = entry
		}
		return "", readErr
	}
	if freeErr != nil {
		return "", freeErr
	}
	return msg, nil
}
