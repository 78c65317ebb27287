package backend

import (
	"fmt"
	"os"

	"github.com/ssagen/arm64codegen/codegenapi"
	"github.com/ssagen/arm64codegen/ir"
)

// branch is one layer of the value-location table: a mapping from IR index
// to its current MV (spec §3 "Branch"). Each layer's map is created with a
// capacity hint of ir.BPI; no capacity is reserved after that, so inserts
// into a layer that already holds entries may grow the map mid-instruction.
type branch struct {
	values map[ir.Index]MV
}

func newBranch() *branch {
	return &branch{values: make(map[ir.Index]MV, ir.BPI)}
}

// BranchStack is the stack of branches making up the value-location table
// (spec §4.3). resolve walks top-down for the first entry.
type BranchStack struct {
	layers []*branch
}

func NewBranchStack() *BranchStack {
	return &BranchStack{layers: []*branch{newBranch()}}
}

// Push starts a new layer, used when entering a conditional arm.
func (s *BranchStack) Push() *branch {
	b := newBranch()
	s.layers = append(s.layers, b)
	return b
}

// Pop removes and returns the topmost layer.
func (s *BranchStack) Pop() *branch {
	n := len(s.layers)
	b := s.layers[n-1]
	s.layers = s.layers[:n-1]
	return b
}

// Top returns the current (innermost) layer.
func (s *BranchStack) Top() *branch {
	return s.layers[len(s.layers)-1]
}

// topIndex returns the index of the current layer, for resolveBelow calls
// that must search strictly below a not-yet-popped arm layer (spec §4.6
// join reconciliation).
func (s *BranchStack) topIndex() int {
	return len(s.layers) - 1
}

// Resolve searches top-down for the first branch defining inst.
func (s *BranchStack) Resolve(inst ir.Index) (MV, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if mv, ok := s.layers[i].values[inst]; ok {
			return mv, true
		}
	}
	return MV{}, false
}

// resolveBelow searches strictly below the given layer index, used by join
// reconciliation to find a value's pre-branch MV (spec §4.6 "walk older
// branch layers").
func (s *BranchStack) resolveBelow(layerIdx int, inst ir.Index) (MV, bool) {
	for i := layerIdx - 1; i >= 0; i-- {
		if mv, ok := s.layers[i].values[inst]; ok {
			return mv, true
		}
	}
	return MV{}, false
}

func (b *branch) set(inst ir.Index, mv MV) {
	b.values[inst] = mv
}

// operandResolution is what reuseOperand / finish need to know about a
// single resolved operand: its MV, whether it dies here, and its slot index
// (for clearing the death bit on the liveness collaborator when reuse
// transfers ownership).
type operandResolution struct {
	ref   ir.Ref
	mv    MV
	dies  bool
	slot  int
}

// reuseOperand implements spec §4.3's pre-check: if op dies here and its MV
// is a register or stack slot, ownership transfers to inst and the
// operand's death bit is cleared so Finish's generic tomb-processing does
// not double-free it. Returns the MV to reuse as inst's result storage, and
// whether a transfer happened.
func (c *Context) reuseOperand(inst ir.Index, op operandResolution) (MV, bool) {
	if !op.dies {
		return MV{}, false
	}
	switch op.mv.Kind {
	case MVRegister:
		// Transfer ownership directly rather than free+realloc: the
		// specific register must stay op.mv.Reg, and nothing else could
		// have raced to take it within the same instruction.
		if e, ok := c.regs.entries[op.mv.Reg]; ok {
			e.owner = inst
		}
		c.liveness.ClearOperandDeath(inst, op.slot)
		if codegenapi.BranchStackLoggingEnabled {
			fmt.Fprintf(os.Stderr, "branchstack: reuse register %s from %d for %d\n", op.mv.Reg, op.ref.Index(), inst)
		}
		return registerMV(op.mv.Reg), true
	case MVStackOffset:
		c.liveness.ClearOperandDeath(inst, op.slot)
		return op.mv, true
	default:
		return MV{}, false
	}
}

// Finish processes each operand's tomb bit (freeing its register if it
// dies and was not already reused), inserts result under inst in the top
// branch, and asserts the no-frozen-registers invariant (spec §4.3,
// §3 invariant 3).
func (c *Context) Finish(inst ir.Index, result MV, operands []operandResolution) {
	for _, op := range operands {
		if !op.dies {
			continue
		}
		switch op.mv.Kind {
		case MVRegister:
			c.regs.Free(op.mv.Reg)
		default:
			// Non-register, non-reused dying operands (stack slots,
			// immediates, flags) need no release.
		}
	}
	c.branches.Top().set(inst, result)
	if codegenapi.BranchStackValidationEnabled && c.regs.FrozenRegsExist() {
		panic("BUG: frozen register outlives its instruction boundary")
	}
}
