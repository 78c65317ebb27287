package backend

import "fmt"

// Reg identifies one AArch64 general-purpose register by its canonical
// 64-bit identity. Sub-word views (w-register aliases) are produced only at
// instruction-emission time via registerAlias, never tracked separately —
// mirrors the teacher's regalloc.VReg canonicalization in
// backend/isa/arm64/machine_regalloc.go, simplified here because this
// backend allocates real registers directly rather than virtual ones.
type Reg uint8

const (
	X0 Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8 // indirect-result register
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16 // IP0, intra-procedure-call scratch
	X17 // IP1, intra-procedure-call scratch
	X18 // platform register, reserved
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29 // frame pointer (FP)
	X30 // link register (LR)
	SP
	noReg = 0xff
)

func (r Reg) String() string {
	switch r {
	case X29:
		return "x29"
	case X30:
		return "x30"
	case SP:
		return "sp"
	case noReg:
		return "<none>"
	default:
		return fmt.Sprintf("x%d", r)
	}
}

// registerAlias renders the size-appropriate assembly mnemonic for r: the
// 32-bit "w" view for sizes up to 4 bytes, the 64-bit "x" view otherwise.
// Per spec §4.1 "Canonical form".
func registerAlias(r Reg, sizeBytes int) string {
	if r == SP {
		return "sp"
	}
	prefix := "x"
	if sizeBytes <= 4 {
		prefix = "w"
	}
	if r == X29 || r == X30 {
		// FP/LR have no 32-bit alias in the forms this backend emits.
		return r.String()
	}
	return fmt.Sprintf("%s%d", prefix, r)
}

// allocatablePool lists the callee-preserved general-purpose registers the
// RegisterAllocator hands out, in fixed scan order. This order also governs
// spill-victim selection (spec §4.1 "Spill policy": "scan the allocatable
// pool in fixed order").
var allocatablePool = [...]Reg{X19, X20, X21, X22, X23, X24, X25, X26, X27, X28}

// argRegs are the AAPCS64 integer argument/result registers, x0..x7.
var argRegs = [...]Reg{X0, X1, X2, X3, X4, X5, X6, X7}

// scratchRegs are caller-saved registers free for use as transient scratch
// (e.g. genSetStack's and homeParameters' staging register) without needing
// to go through the allocator or survive a call.
var scratchRegs = [...]Reg{X9, X10, X11, X12, X13, X14, X15}
