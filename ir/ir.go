// Package ir describes the function-level, typed, SSA-like intermediate
// representation consumed by the backend. The IR's construction and its
// liveness analysis are external collaborators (see package ir/liveness
// equivalents in this package and package layout): this package only
// declares the query surface the backend needs, grounded on the same shape
// as github.com/tetratelabs/wazero/internal/engine/wazevo/ssa.
package ir

import "github.com/ssagen/arm64codegen/layout"

// Type is the ABI-shape view of a value's source type, resolved through the
// external layout.Queries service (spec §6 "Type layout API").
type Type = layout.Type

// Index identifies one instruction within a Function's dense instruction
// table. Indices are monotone and stable once assigned.
type Index int32

// NoIndex is the sentinel for "no instruction" (e.g. an anonymous register
// owner, or a condition branch with no else body).
const NoIndex Index = -1

// Tag names the opcode of an instruction.
type Tag uint16

const (
	OpInvalid Tag = iota
	OpArg
	OpConstant
	OpAdd
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
	OpBoolAnd
	OpBoolOr
	OpNot
	OpCmp
	OpPtrAdd
	OpPtrSub
	OpLoad
	OpStore
	OpAlloc
	OpBitcast
	OpIntCast
	OpIsErr
	OpCall
	OpRet
	OpCondBr
	OpBr
	OpBlock
	OpLoop
	OpUnreach

	// The remaining tags have no lowering path yet (spec §9 "Supplemented
	// from original_source"): the backend recognizes them only well enough
	// to report codegenFail's "not yet implemented: <op>" rather than
	// panicking or silently miscompiling.
	OpRetLoad
	OpSwitch
	OpFloatBinOp
	OpVectorBinOp
	OpAtomicRmw
	OpTagName
	OpErrorName
	OpAggregateInit
	OpUnionInit
)

func (t Tag) String() string {
	switch t {
	case OpArg:
		return "arg"
	case OpConstant:
		return "constant"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpBoolAnd:
		return "bool_and"
	case OpBoolOr:
		return "bool_or"
	case OpNot:
		return "not"
	case OpCmp:
		return "cmp"
	case OpPtrAdd:
		return "ptr_add"
	case OpPtrSub:
		return "ptr_sub"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpAlloc:
		return "alloc"
	case OpBitcast:
		return "bitcast"
	case OpIntCast:
		return "int_cast"
	case OpIsErr:
		return "is_err"
	case OpCall:
		return "call"
	case OpRet:
		return "ret"
	case OpCondBr:
		return "cond_br"
	case OpBr:
		return "br"
	case OpBlock:
		return "block"
	case OpLoop:
		return "loop"
	case OpUnreach:
		return "unreach"
	case OpRetLoad:
		return "ret_load"
	case OpSwitch:
		return "switch"
	case OpFloatBinOp:
		return "float_bin_op"
	case OpVectorBinOp:
		return "vector_bin_op"
	case OpAtomicRmw:
		return "atomic_rmw"
	case OpTagName:
		return "tag_name"
	case OpErrorName:
		return "error_name"
	case OpAggregateInit:
		return "aggregate_init"
	case OpUnionInit:
		return "union_init"
	default:
		return "invalid"
	}
}

// Ref is an operand reference: either another instruction (by Index) or an
// entry in the process-wide constant-value table.
type Ref struct {
	idx      Index
	constIdx int32
	isConst  bool
}

// InstRef builds a Ref pointing at another instruction.
func InstRef(idx Index) Ref { return Ref{idx: idx} }

// ConstRef builds a Ref pointing at the constant table.
func ConstRef(i int32) Ref { return Ref{constIdx: i, isConst: true} }

// NoRef is the sentinel for an absent operand slot (e.g. cond_br with no
// else body, or a ret with no operand).
var NoRef = Ref{idx: NoIndex}

func (r Ref) IsConst() bool      { return r.isConst }
func (r Ref) IsValid() bool      { return r.isConst || r.idx != NoIndex }
func (r Ref) Index() Index       { return r.idx }
func (r Ref) ConstIndex() int32  { return r.constIdx }

// Data is the generic per-instruction payload. Most opcodes use Op0/Op1/Op2
// (cond_br: Op0=cond, Op1=then-body index, Op2=else-body index, resolved to
// the bodies themselves through Function.BlockBody); opcodes with more operands than
// fit inline (e.g. call) store the rest in ExtraIndex, resolved through
// Function.ExtraArgs.
type Data struct {
	Op0, Op1, Op2 Ref
	ExtraIndex    int32
	Imm           uint64
	Cmp           CmpOp

	// Sym names the callee of a call instruction, resolved through the
	// linker collaborator. Unused by every other opcode.
	Sym string
}

// CmpOp is the comparison operator carried by a cmp_* instruction.
type CmpOp uint8

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLte
	CmpGt
	CmpGte
)

func (o CmpOp) String() string {
	switch o {
	case CmpEq:
		return "eq"
	case CmpNe:
		return "ne"
	case CmpLt:
		return "lt"
	case CmpLte:
		return "lte"
	case CmpGt:
		return "gt"
	case CmpGte:
		return "gte"
	default:
		return "invalid"
	}
}

// Invert returns the operator such that NEG(a op b) == (a invert(op) b).
func (o CmpOp) Invert() CmpOp {
	switch o {
	case CmpEq:
		return CmpNe
	case CmpNe:
		return CmpEq
	case CmpLt:
		return CmpGte
	case CmpLte:
		return CmpGt
	case CmpGt:
		return CmpLte
	case CmpGte:
		return CmpLt
	default:
		panic("BUG: invalid CmpOp")
	}
}

// ConstValue is a typed constant-table entry.
type ConstValue struct {
	Bits   uint64
	Type   Type
	IsUndef bool
}

// Loc is the source location a diagnostic is attached to.
type Loc struct {
	Line, Col uint32
}

// CallConv is a function's calling convention; Naked bypasses ABI/stack
// frame entirely (no args, no return storage, no prologue/epilogue).
type CallConv uint8

const (
	CallConvDefault CallConv = iota
	CallConvNaked
)

// Function is the read-only view of one function body the backend lowers.
// Implementations are owned by the IR-construction stage; this interface is
// the only thing the backend depends on.
type Function interface {
	Name() string
	CallConv() CallConv
	Params() []Type
	ReturnType() Type

	TagOf(idx Index) Tag
	DataOf(idx Index) Data
	LocOf(idx Index) Loc

	// TypeOfIndex is the result type of the instruction at idx.
	TypeOfIndex(idx Index) Type
	// TypeOf resolves the type of an operand Ref (instruction result or
	// constant-table entry).
	TypeOf(ref Ref) Type
	// ValueOf resolves a constant Ref to its value; ok is false for
	// instruction Refs.
	ValueOf(ref Ref) (ConstValue, bool)

	// MainBody returns the index of the function's top-level block; its
	// ordered instruction indices come from BlockBody.
	MainBody() Index

	// BlockBody returns the ordered instruction indices belonging to a
	// block/loop/cond_br arm whose first instruction is at idx.
	BlockBody(idx Index) []Index

	// ExtraArgs resolves operands beyond Data's inline Op0..Op2 (e.g. call
	// arguments), addressed by Data.ExtraIndex.
	ExtraArgs(extraIndex int32) []Ref
}
