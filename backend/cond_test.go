package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssagen/arm64codegen/ir"
)

func TestCondFlagInvertIsInvolution(t *testing.T) {
	for _, c := range []condFlag{eq, ne, hs, lo, hi, ls, ge, lt, gt, le} {
		require.Equal(t, c, c.invert().invert(), "invert must be its own inverse for %s", c)
		require.NotEqual(t, c, c.invert())
	}
}

func TestToCondFlagSigned(t *testing.T) {
	cases := []struct {
		op   ir.CmpOp
		want condFlag
	}{
		{ir.CmpEq, eq}, {ir.CmpNe, ne}, {ir.CmpLt, lt},
		{ir.CmpLte, le}, {ir.CmpGt, gt}, {ir.CmpGte, ge},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, toCondFlag(tc.op, true))
	}
}

func TestToCondFlagUnsigned(t *testing.T) {
	cases := []struct {
		op   ir.CmpOp
		want condFlag
	}{
		{ir.CmpEq, eq}, {ir.CmpNe, ne}, {ir.CmpLt, lo},
		{ir.CmpLte, ls}, {ir.CmpGt, hi}, {ir.CmpGte, hs},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, toCondFlag(tc.op, false))
	}
}
