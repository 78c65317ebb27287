package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegString(t *testing.T) {
	require.Equal(t, "x29", X29.String())
	require.Equal(t, "x30", X30.String())
	require.Equal(t, "sp", SP.String())
	require.Equal(t, "x3", X3.String())
}

func TestRegisterAlias(t *testing.T) {
	require.Equal(t, "sp", registerAlias(SP, 8))
	require.Equal(t, "w3", registerAlias(X3, 4))
	require.Equal(t, "x3", registerAlias(X3, 8))
	require.Equal(t, "w3", registerAlias(X3, 1))
	// FP/LR have no 32-bit alias in the forms this backend emits.
	require.Equal(t, "x29", registerAlias(X29, 4))
}

func TestAllocatablePoolDisjointFromArgAndScratch(t *testing.T) {
	seen := make(map[Reg]string)
	for _, r := range allocatablePool {
		seen[r] = "allocatable"
	}
	for _, r := range argRegs {
		require.NotContains(t, seen, r, "arg register %s must not be in the allocatable pool", r)
	}
	for _, r := range scratchRegs {
		require.NotContains(t, seen, r, "scratch register %s must not be in the allocatable pool", r)
	}
}
