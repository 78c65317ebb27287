package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssagen/arm64codegen/ir"
)

func TestMVMutability(t *testing.T) {
	require.True(t, registerMV(X19).isMutable())
	require.True(t, stackOffsetMV(16).isMutable())
	require.False(t, immediateMV(5).isMutable())
	require.False(t, ptrStackOffsetMV(16).isMutable())
	require.False(t, compareFlagsMV(ir.CmpEq, true).isMutable())
	require.False(t, noneMV().isMutable())
}

func TestMVMemoryAndImmediate(t *testing.T) {
	require.True(t, stackOffsetMV(8).isMemory())
	require.True(t, memoryMV(0x1000).isMemory())
	require.False(t, registerMV(X19).isMemory())
	require.False(t, immediateMV(1).isMemory())

	require.True(t, immediateMV(1).isImmediate())
	require.False(t, registerMV(X19).isImmediate())
}

func TestInvertCompareFlagsRoundTrips(t *testing.T) {
	mv := compareFlagsMV(ir.CmpLt, true)
	inverted := mv.invertCompareFlags()
	require.Equal(t, ir.CmpGte, inverted.Cmp)
	require.Equal(t, mv.Kind, inverted.Kind)
	require.Equal(t, ir.CmpLt, inverted.invertCompareFlags().Cmp)
}

func TestInvertCompareFlagsPanicsOnNonFlagsMV(t *testing.T) {
	require.Panics(t, func() { registerMV(X19).invertCompareFlags() })
}

func TestMVIsLive(t *testing.T) {
	require.True(t, registerMV(X19).isLive())
	require.True(t, noneMV().isLive())
	require.False(t, deadMV().isLive())
	require.False(t, unreachMV().isLive())
}

func TestMVString(t *testing.T) {
	require.Equal(t, "reg(x19)", registerMV(X19).String())
	require.Equal(t, "imm(7)", immediateMV(7).String())
	require.Equal(t, "stack(16)", stackOffsetMV(16).String())
}
