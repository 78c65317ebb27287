package backend

import "github.com/ssagen/arm64codegen/ir"

// ABIArgKind is the kind of one AAPCS64 argument/return location.
type ABIArgKind uint8

const (
	ABIArgKindReg ABIArgKind = iota
	ABIArgKindStack
)

// ABIArg is one classified parameter or return-value location.
type ABIArg struct {
	Index  int
	Kind   ABIArgKind
	Reg    Reg
	Offset int64
	Type   ir.Type
}

// ABI holds the classification result for one function's signature per the
// AArch64 Procedure Call Standard with the Apple variant for 16-byte
// alignment args (spec §4.7). Naked calling convention bypasses this
// entirely (spec: "no args, no return storage, no prologue, no epilogue
// framing").
type ABI struct {
	Apple bool

	Args []ABIArg
	Rets []ABIArg

	ArgStackSize int64
}

// NewABI classifies params/ret per AAPCS64 (spec §4.7). apple selects the
// Apple variant, which skips the even-NCRN rounding for 16-byte-aligned
// parameters and the rounding of NSAA up to a stack parameter's alignment.
func NewABI(params []ir.Type, ret ir.Type, apple bool, types abiLayout) *ABI {
	a := &ABI{Apple: apple}
	a.classifyArgs(params, types)
	a.classifyRet(ret, types)
	return a
}

// abiLayout narrows the layout.Queries surface this file actually needs, kept
// local so abi.go doesn't import the layout package directly for a single
// call site's sake; Context wires the real layout.Queries in.
type abiLayout interface {
	AbiSize(t ir.Type) uint32
	AbiAlignment(t ir.Type) uint32
}

func (a *ABI) classifyArgs(params []ir.Type, types abiLayout) {
	ncrn := 0 // next core register number
	nsaa := int64(0)

	for i, t := range params {
		size := int64(types.AbiSize(t))
		align := types.AbiAlignment(t)

		if align == 16 && !a.Apple {
			// Non-Apple: round NCRN up to even before assignment for a
			// 16-byte-aligned parameter.
			if ncrn%2 != 0 {
				ncrn++
			}
		}

		regsNeeded := (size + 7) / 8
		if regsNeeded <= 0 {
			regsNeeded = 1
		}

		if int64(ncrn)+regsNeeded <= 8 {
			if size <= 8 {
				a.Args = append(a.Args, ABIArg{Index: i, Kind: ABIArgKindReg, Reg: argRegs[ncrn], Type: t})
				ncrn++
				continue
			}
			// size > 8: multi-register argument. Not yet implemented.
			a.Args = append(a.Args, ABIArg{Index: i, Kind: ABIArgKindReg, Reg: noReg, Type: t})
			continue
		}

		if ncrn < 8 && nsaa == 0 {
			// A would-be split between registers and the stack. Not yet
			// implemented; falls through to a stack assignment below so
			// classification still produces a total size, but codegen
			// must reject actually lowering such a parameter.
		}
		ncrn = 8
		if !a.Apple && int64(align) == 8 {
			nsaa = alignUp64(nsaa, 8)
		} else if !a.Apple {
			nsaa = alignUp64(nsaa, int64(align))
		}
		a.Args = append(a.Args, ABIArg{Index: i, Kind: ABIArgKindStack, Offset: nsaa, Type: t})
		nsaa += size
	}
	a.ArgStackSize = nsaa
}

func (a *ABI) classifyRet(ret ir.Type, types abiLayout) {
	size := types.AbiSize(ret)
	if size == 0 {
		a.Rets = nil
		return
	}
	if size <= 8 {
		a.Rets = []ABIArg{{Kind: ABIArgKindReg, Reg: X0, Type: ret}}
		return
	}
	// size > 8: not yet implemented (multi-register / indirect return).
	a.Rets = []ABIArg{{Kind: ABIArgKindReg, Reg: noReg, Type: ret}}
}

func alignUp64(v, align int64) int64 {
	return (v + align - 1) &^ (align - 1)
}
