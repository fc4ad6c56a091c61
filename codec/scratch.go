package codec

import (
	"context"
	"sync"
)

// Scratch tracks temporary native allocations made while marshaling one
// call, so an operation can release everything it wrote with a single
// deferred FreeAndRelease even when it bails out mid-way.
type Scratch struct {
	ptrs []uint32
}

var scratchPool = sync.Pool{
	New: func() any {
		return &Scratch{ptrs: make([]uint32, 0, 8)}
	},
}

func NewScratch() *Scratch {
	return scratchPool.Get().(*Scratch)
}

const maxPooledScratchCapacity = 64

// Release returns to pool. Must call after Free(); scratch invalid after
// Release.
func (s *Scratch) Release() {
	if cap(s.ptrs) > maxPooledScratchCapacity {
		return
	}
	s.ptrs = s.ptrs[:0]
	scratchPool.Put(s)
}

func (s *Scratch) Add(ptr uint32) {
	s.ptrs = append(s.ptrs, ptr)
}

// Word allocates a tracked machine-word cell.
func (s *Scratch) Word(ctx context.Context, mem Memory, alloc Allocator, value uint32) (uint32, error) {
	ptr, err := WriteWord(ctx, mem, alloc, value)
	if err != nil {
		return 0, err
	}
	s.Add(ptr)
	return ptr, nil
}

// Bool allocates a tracked one-byte cell.
func (s *Scratch) Bool(ctx context.Context, mem Memory, alloc Allocator, v bool) (uint32, error) {
	ptr, err := WriteBool(ctx, mem, alloc, v)
	if err != nil {
		return 0, err
	}
	s.Add(ptr)
	return ptr, nil
}

// Bytes allocates a tracked framed buffer.
func (s *Scratch) Bytes(ctx context.Context, mem Memory, alloc Allocator, data []byte) (uint32, error) {
	ptr, err := WriteBytes(ctx, mem, alloc, data)
	if err != nil {
		return 0, err
	}
	s.Add(ptr)
	return ptr, nil
}

func (s *Scratch) Free(ctx context.Context, alloc Allocator) {
	if alloc == nil {
		return
	}
	for _, p := range s.ptrs {
		if p != 0 {
			alloc.Free(ctx, p)
		}
	}
}

func (s *Scratch) FreeAndRelease(ctx context.Context, alloc Allocator) {
	s.Free(ctx, alloc)
	s.Release()
}

func (s *Scratch) Count() int {
	return len(s.ptrs)
}
