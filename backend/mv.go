package backend

import (
	"fmt"

	"github.com/ssagen/arm64codegen/ir"
	"github.com/ssagen/arm64codegen/linker"
)

// MVKind tags the variant of a Machine Value (spec §3 "Machine Value").
type MVKind uint8

const (
	MVNone MVKind = iota
	MVUnreach
	MVDead
	MVUndef
	MVImmediate
	MVRegister
	MVStackOffset
	MVPtrStackOffset
	MVMemory
	MVEmbeddedInCode
	MVPtrEmbeddedInCode
	MVGotLoad
	MVDirectLoad
	MVCompareFlagsSigned
	MVCompareFlagsUnsigned
)

// MV is the tagged description of where an IR value currently resides.
// Every new variant requires updating isMemory/isImmediate/isMutable below
// and the value-movers matrix in movers.go — the exhaustive switches there
// panic on an unhandled kind, so a missed case is caught at run time the
// first time that kind reaches the switch.
type MV struct {
	Kind MV_
	Imm  uint64
	Reg  Reg
	Sym  linker.SymRef
	Cmp  ir.CmpOp
}

// MV_ is an alias kept distinct from MVKind only to keep field alignment
// readable; both names refer to the same tag type.
type MV_ = MVKind

func noneMV() MV       { return MV{Kind: MVNone} }
func unreachMV() MV    { return MV{Kind: MVUnreach} }
func deadMV() MV       { return MV{Kind: MVDead} }
func undefMV() MV      { return MV{Kind: MVUndef} }
func immediateMV(v uint64) MV { return MV{Kind: MVImmediate, Imm: v} }
func registerMV(r Reg) MV     { return MV{Kind: MVRegister, Reg: r} }
func stackOffsetMV(off uint32) MV    { return MV{Kind: MVStackOffset, Imm: uint64(off)} }
func ptrStackOffsetMV(off uint32) MV { return MV{Kind: MVPtrStackOffset, Imm: uint64(off)} }
func memoryMV(addr uint64) MV        { return MV{Kind: MVMemory, Imm: addr} }
func embeddedInCodeMV(off uint32) MV    { return MV{Kind: MVEmbeddedInCode, Imm: uint64(off)} }
func ptrEmbeddedInCodeMV(off uint32) MV { return MV{Kind: MVPtrEmbeddedInCode, Imm: uint64(off)} }
func gotLoadMV(sym linker.SymRef) MV    { return MV{Kind: MVGotLoad, Sym: sym} }
func directLoadMV(sym linker.SymRef) MV { return MV{Kind: MVDirectLoad, Sym: sym} }

func compareFlagsMV(op ir.CmpOp, signed bool) MV {
	if signed {
		return MV{Kind: MVCompareFlagsSigned, Cmp: op}
	}
	return MV{Kind: MVCompareFlagsUnsigned, Cmp: op}
}

func (v MV) isCompareFlags() bool {
	return v.Kind == MVCompareFlagsSigned || v.Kind == MVCompareFlagsUnsigned
}

// invertCompareFlags inverts the operator of a compare-flags MV in place,
// with no code emitted (spec §4.5 "Boolean NOT").
func (v MV) invertCompareFlags() MV {
	if !v.isCompareFlags() {
		panic("BUG: invertCompareFlags on non-compare-flags MV")
	}
	v.Cmp = v.Cmp.Invert()
	return v
}

// isMemory reports whether v denotes a location the value mover must
// address through load/store rather than a direct register move.
func (v MV) isMemory() bool {
	switch v.Kind {
	case MVNone, MVUnreach, MVDead, MVUndef, MVImmediate, MVRegister,
		MVCompareFlagsSigned, MVCompareFlagsUnsigned:
		return false
	case MVStackOffset, MVPtrStackOffset, MVMemory, MVEmbeddedInCode,
		MVPtrEmbeddedInCode, MVGotLoad, MVDirectLoad:
		return true
	default:
		panic(fmt.Sprintf("BUG: unhandled MV kind %d in isMemory", v.Kind))
	}
}

// isImmediate reports whether v is a compile-time-known scalar that can be
// materialized without consulting the branch stack or memory.
func (v MV) isImmediate() bool {
	switch v.Kind {
	case MVImmediate:
		return true
	case MVNone, MVUnreach, MVDead, MVUndef, MVRegister, MVStackOffset,
		MVPtrStackOffset, MVMemory, MVEmbeddedInCode, MVPtrEmbeddedInCode,
		MVGotLoad, MVDirectLoad, MVCompareFlagsSigned, MVCompareFlagsUnsigned:
		return false
	default:
		panic(fmt.Sprintf("BUG: unhandled MV kind %d in isImmediate", v.Kind))
	}
}

// isMutable reports whether v can be relocated in place by reconciliation
// moves (spec §4.6 join reconciliation): registers and stack slots can be,
// everything else (constants, code-embedded, linker-resolved, flags) is
// immutable storage that must be recomputed instead of moved.
func (v MV) isMutable() bool {
	switch v.Kind {
	case MVRegister, MVStackOffset:
		return true
	case MVNone, MVUnreach, MVDead, MVUndef, MVImmediate, MVPtrStackOffset,
		MVMemory, MVEmbeddedInCode, MVPtrEmbeddedInCode, MVGotLoad,
		MVDirectLoad, MVCompareFlagsSigned, MVCompareFlagsUnsigned:
		return false
	default:
		panic(fmt.Sprintf("BUG: unhandled MV kind %d in isMutable", v.Kind))
	}
}

// isLive reports whether v denotes a value still observable (as opposed to
// MVDead/MVUnreach). Join reconciliation (reconcileArm) does not consult it.
func (v MV) isLive() bool {
	return v.Kind != MVDead && v.Kind != MVUnreach
}

func (v MV) String() string {
	switch v.Kind {
	case MVNone:
		return "none"
	case MVUnreach:
		return "unreach"
	case MVDead:
		return "dead"
	case MVUndef:
		return "undef"
	case MVImmediate:
		return fmt.Sprintf("imm(%d)", v.Imm)
	case MVRegister:
		return fmt.Sprintf("reg(%s)", v.Reg)
	case MVStackOffset:
		return fmt.Sprintf("stack(%d)", v.Imm)
	case MVPtrStackOffset:
		return fmt.Sprintf("&stack(%d)", v.Imm)
	case MVMemory:
		return fmt.Sprintf("mem(0x%x)", v.Imm)
	case MVEmbeddedInCode:
		return fmt.Sprintf("embedded(%d)", v.Imm)
	case MVPtrEmbeddedInCode:
		return fmt.Sprintf("&embedded(%d)", v.Imm)
	case MVGotLoad:
		return fmt.Sprintf("got(%v)", v.Sym)
	case MVDirectLoad:
		return fmt.Sprintf("direct(%v)", v.Sym)
	case MVCompareFlagsSigned:
		return fmt.Sprintf("flags_s(%s)", v.Cmp)
	case MVCompareFlagsUnsigned:
		return fmt.Sprintf("flags_u(%s)", v.Cmp)
	default:
		panic(fmt.Sprintf("BUG: unhandled MV kind %d in String", v.Kind))
	}
}
