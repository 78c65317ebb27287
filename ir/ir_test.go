package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCmpOpInvertIsInvolution(t *testing.T) {
	for _, op := range []CmpOp{CmpEq, CmpNe, CmpLt, CmpLte, CmpGt, CmpGte} {
		require.Equal(t, op, op.Invert().Invert())
		require.NotEqual(t, op, op.Invert())
	}
}

func TestCmpOpInvertPanicsOnInvalid(t *testing.T) {
	require.Panics(t, func() { CmpOp(255).Invert() })
}

func TestTagString(t *testing.T) {
	require.Equal(t, "add", OpAdd.String())
	require.Equal(t, "cond_br", OpCondBr.String())
	require.Equal(t, "invalid", Tag(255).String())
}

func TestRefConstructors(t *testing.T) {
	inst := InstRef(Index(3))
	require.False(t, inst.IsConst())
	require.True(t, inst.IsValid())
	require.Equal(t, Index(3), inst.Index())

	c := ConstRef(7)
	require.True(t, c.IsConst())
	require.True(t, c.IsValid())
	require.EqualValues(t, 7, c.ConstIndex())

	require.False(t, NoRef.IsValid())
}
