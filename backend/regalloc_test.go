package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssagen/arm64codegen/ir"
)

// stubSpiller lets regalloc tests drive Alloc-under-pressure without
// constructing a full Context, recording every spill request it receives.
type stubSpiller struct {
	spilled []ir.Index
}

func (s *stubSpiller) SpillInstruction(owner ir.Index, reg Reg) *Error {
	s.spilled = append(s.spilled, owner)
	return nil
}

func TestRegisterAllocatorTryAllocExhaustsPool(t *testing.T) {
	spiller := &stubSpiller{}
	ra := NewRegisterAllocator(spiller)

	for i := 0; i < len(allocatablePool); i++ {
		r, ok := ra.TryAlloc(ir.Index(i))
		require.True(t, ok)
		require.True(t, ra.IsAllocated(r))
	}
	_, ok := ra.TryAlloc(ir.Index(999))
	require.False(t, ok, "pool is exhausted, TryAlloc must report failure rather than spill")
}

func TestRegisterAllocatorAllocSpillsDeterministicVictim(t *testing.T) {
	spiller := &stubSpiller{}
	ra := NewRegisterAllocator(spiller)

	for i := 0; i < len(allocatablePool); i++ {
		_, ok := ra.TryAlloc(ir.Index(i))
		require.True(t, ok)
	}

	r, err := ra.Alloc(ir.Index(100), ir.Loc{})
	require.Nil(t, err)
	require.Equal(t, allocatablePool[0], r, "spill-victim selection must pick the first unfrozen pool register in fixed order")
	require.Equal(t, []ir.Index{ir.Index(0)}, spiller.spilled)

	owner, held := ra.OwnerOf(r)
	require.True(t, held)
	require.Equal(t, ir.Index(100), owner)
}

func TestRegisterAllocatorFreezeExcludesFromSpillVictimSelection(t *testing.T) {
	spiller := &stubSpiller{}
	ra := NewRegisterAllocator(spiller)

	for i := 0; i < len(allocatablePool); i++ {
		_, ok := ra.TryAlloc(ir.Index(i))
		require.True(t, ok)
	}
	ra.Freeze(allocatablePool[0])

	r, err := ra.Alloc(ir.Index(100), ir.Loc{})
	require.Nil(t, err)
	require.Equal(t, allocatablePool[1], r, "a frozen register must never be chosen as a spill victim")

	ra.Unfreeze(allocatablePool[0])
	require.False(t, ra.FrozenRegsExist())
}

func TestRegisterAllocatorOutOfRegistersWhenAllFrozen(t *testing.T) {
	spiller := &stubSpiller{}
	ra := NewRegisterAllocator(spiller)
	ra.Freeze(allocatablePool[:]...)

	_, err := ra.Alloc(ir.Index(0), ir.Loc{Line: 7})
	require.NotNil(t, err)
	require.Equal(t, ErrOutOfRegisters, err.Kind)
}

func TestRegisterAllocatorSnapshotRestore(t *testing.T) {
	spiller := &stubSpiller{}
	ra := NewRegisterAllocator(spiller)
	r0, _ := ra.TryAlloc(ir.Index(0))
	snap := ra.snapshot()

	r1, _ := ra.TryAlloc(ir.Index(1))
	require.True(t, ra.IsAllocated(r1))

	ra.restore(snap)
	require.True(t, ra.IsAllocated(r0))
	require.False(t, ra.IsAllocated(r1), "restore must roll back allocations made after the snapshot")
}

func TestRegisterAllocatorFreeMarksUnallocated(t *testing.T) {
	spiller := &stubSpiller{}
	ra := NewRegisterAllocator(spiller)
	r, _ := ra.TryAlloc(ir.Index(0))
	ra.Free(r)
	require.True(t, ra.IsFree(r))
	require.True(t, ra.EverAllocated(r), "EverAllocated must stay true after a later Free, for the epilogue save-mask computation")
}
