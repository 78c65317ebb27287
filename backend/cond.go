package backend

import "github.com/ssagen/arm64codegen/ir"

// condFlag is an AArch64 condition-code. Its numeric values are a
// package-local enumeration, not the 4-bit hardware encoding. Grounded on
// github.com/tetratelabs/wazero/internal/engine/wazevo/backend/isa/arm64/cond.go.
type condFlag uint8

const (
	eq condFlag = iota // equal
	ne                 // not equal
	hs                 // higher or same (unsigned >=)
	lo                 // lower (unsigned <)
	hi                 // higher (unsigned >)
	ls                 // lower or same (unsigned <=)
	ge                 // greater or equal (signed >=)
	lt                 // less than (signed <)
	gt                 // greater than (signed >)
	le                 // less than or equal (signed <=)
	al                 // always
)

func (c condFlag) String() string {
	switch c {
	case eq:
		return "eq"
	case ne:
		return "ne"
	case hs:
		return "hs"
	case lo:
		return "lo"
	case hi:
		return "hi"
	case ls:
		return "ls"
	case ge:
		return "ge"
	case lt:
		return "lt"
	case gt:
		return "gt"
	case le:
		return "le"
	case al:
		return "al"
	default:
		panic("BUG: invalid condFlag")
	}
}

// invert returns the condition which is true exactly when c is false.
func (c condFlag) invert() condFlag {
	switch c {
	case eq:
		return ne
	case ne:
		return eq
	case hs:
		return lo
	case lo:
		return hs
	case hi:
		return ls
	case ls:
		return hi
	case ge:
		return lt
	case lt:
		return ge
	case gt:
		return le
	case le:
		return gt
	default:
		panic("BUG: invalid condFlag for invert")
	}
}

// toCondFlag resolves an ir.CmpOp under a given signedness to the AArch64
// condition flag that cset/b.cond would test to mean "op is true" after a
// preceding cmp a, b. Unsigned comparisons (including bool/enum per spec
// §4.5) use the hs/lo/hi/ls family; signed use ge/lt/gt/le.
func toCondFlag(op ir.CmpOp, signed bool) condFlag {
	if signed {
		switch op {
		case ir.CmpEq:
			return eq
		case ir.CmpNe:
			return ne
		case ir.CmpLt:
			return lt
		case ir.CmpLte:
			return le
		case ir.CmpGt:
			return gt
		case ir.CmpGte:
			return ge
		}
	} else {
		switch op {
		case ir.CmpEq:
			return eq
		case ir.CmpNe:
			return ne
		case ir.CmpLt:
			return lo
		case ir.CmpLte:
			return ls
		case ir.CmpGt:
			return hi
		case ir.CmpGte:
			return hs
		}
	}
	panic("BUG: invalid CmpOp")
}
