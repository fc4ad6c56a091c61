package engine

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/acir-runtime/errors"
)

// memoryView adapts wazero's api.Memory to the root Memory interface.
// Slices returned by Read alias the instance's memory and stay valid only
// until it grows; the codec copies anything it keeps.
type memoryView struct {
	mem api.Memory
}

func (v *memoryView) Read(offset, length uint32) ([]byte, error) {
	data, ok := v.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length)
	}
	return data, nil
}

func (v *memoryView) Write(offset uint32, data []byte) error {
	if !v.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, uint32(len(data)))
	}
	return nil
}

func (v *memoryView) ReadU8(offset uint32) (uint8, error) {
	b, ok := v.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, offset, 1)
	}
	return b, nil
}

func (v *memoryView) ReadU32(offset uint32) (uint32, error) {
	val, ok := v.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, offset, 4)
	}
	return val, nil
}

func (v *memoryView) WriteU8(offset uint32, value uint8) error {
	if !v.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, 1)
	}
	return nil
}

func (v *memoryView) WriteU32(offset, value uint32) error {
	if !v.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, 4)
	}
	return nil
}

func (v *memoryView) Size() uint32 {
	return v.mem.Size()
}
