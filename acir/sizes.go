package acir

import (
	"context"

	"github.com/wippyai/acir-runtime/codec"
	"github.com/wippyai/acir-runtime/errors"
)

// CircuitSizes describes a compiled constraint system.
type CircuitSizes struct {
	// Exact is the number of gates the circuit actually uses.
	Exact uint32
	// Total includes padding gates.
	Total uint32
	// Subgroup is the evaluation domain size, the next power of two.
	Subgroup uint32
}

// GetCircuitSizes queries the sizes of a constraint system. It is a pure
// query: no composer state is touched and the input buffer is only read.
// The counts come back in the native serializer's byte order.
func GetCircuitSizes(ctx context.Context, backend Backend, constraintSystem []byte) (CircuitSizes, error) {
	mem := backend.Memory()
	scratch := codec.NewScratch()
	defer scratch.FreeAndRelease(ctx, backend)

	csPtr, err := scratch.Bytes(ctx, mem, backend, constraintSystem)
	if err != nil {
		return CircuitSizes{}, err
	}
	exactCell, err := scratch.Word(ctx, mem, backend, 0)
	if err != nil {
		return CircuitSizes{}, err
	}
	totalCell, err := scratch.Word(ctx, mem, backend, 0)
	if err != nil {
		return CircuitSizes{}, err
	}
	subgroupCell, err := scratch.Word(ctx, mem, backend, 0)
	if err != nil {
		return CircuitSizes{}, err
	}

	errPtr, callErr := backend.Call(ctx, entryCircuitSizes, csPtr, exactCell, totalCell, subgroupCell)
	if callErr != nil {
		// a malformed buffer traps inside the native deserializer
		return CircuitSizes{}, callErr
	}
	diag, diagErr := takeDiagnostic(ctx, backend, errPtr, entryCircuitSizes)
	if diagErr != nil {
		return CircuitSizes{}, diagErr
	}
	if diag != "" {
		return CircuitSizes{}, errors.Native(errors.PhaseCall, entryCircuitSizes, diag)
	}

	var sizes CircuitSizes
	if sizes.Exact, err = codec.ReadBE32(mem, exactCell); err != nil {
		return CircuitSizes{}, err
	}
	if sizes.Total, err = codec.ReadBE32(mem, totalCell); err != nil {
		return CircuitSizes{}, err
	}
	if sizes.Subgroup, err = codec.ReadBE32(mem, subgroupCell); err != nil {
		return CircuitSizes{}, err
	}
	return sizes, nil
}
