package ir

// BPI (bits per instruction) bounds the number of operand "dies here" bits
// carried inline per instruction; BPI-1 operands get an inline tomb bit,
// anything beyond draws from the auxiliary bitmap via BigTomb.
const BPI = 4

// Liveness is the external per-function liveness-analysis collaborator
// (spec §1: "out of scope ... the construction of the IR itself and its
// liveness analysis"). It answers "dies here" questions the backend uses to
// free registers and reuse operand storage.
type Liveness interface {
	// TombBits returns, for up to BPI-1 operands of idx, one "dies here"
	// bit per slot (bit i set => operand slot i dies at idx).
	TombBits(idx Index) uint8

	// OperandDies reports whether operand slot `slot` of idx dies at idx.
	// For slot >= BPI-1 this consults the auxiliary bitmap rather than
	// TombBits.
	OperandDies(idx Index, slot int) bool

	// ClearOperandDeath is called by operand-reuse bookkeeping once it has
	// transferred the dying operand's storage to idx's result, so the
	// generic tomb-processing in the backend's Context.Finish does not
	// double-free it.
	ClearOperandDeath(idx Index, slot int)

	// IsUnused reports the per-instruction "unused" bit: when set, the
	// instruction's result is never read and lowering may skip straight to
	// producing MVDead.
	IsUnused(idx Index) bool

	// CondBrDeaths returns the operand indices that die on entry to the
	// then-body and else-body of the cond_br at idx, respectively.
	CondBrDeaths(idx Index) (thenDeaths, elseDeaths []Index)

	// ExtraTombBits returns the death bits for operands beyond the inline
	// BPI-1 budget, indexed the same way Function.ExtraArgs is.
	ExtraTombBits(idx Index) []bool
}
