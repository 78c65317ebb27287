// Package linker declares the external linker collaborator the backend
// defers symbol-address resolution to (spec §1: "the linker's relocation
// fulfillment" is out of scope). Four flavors exist because the addressing
// sequence for an external symbol differs by object format; the backend
// picks the pseudo-instruction shape to emit by asking which Flavor is
// active, the way the teacher's arm64 backend dispatches on
// wazevoapi.SharedFunctionIndex / the active ssa compilation target.
package linker

// Flavor names the active object-format/linker combination.
type Flavor uint8

const (
	FlavorELF Flavor = iota
	FlavorCOFF
	FlavorMachO
	FlavorPlan9
)

// SymRef names a linker-visible symbol: a static symbol-table index for
// ELF/COFF/Plan9, or an (atom, n_strx) pair for Mach-O externs.
type SymRef struct {
	SymIndex  int32
	AtomIndex int32
}

// Linker is the read-mostly symbol-table service; the one mutating
// operation (registering an extern-function entry) must be serialized by
// the caller (spec §5).
type Linker interface {
	Flavor() Flavor

	// ResolveAddress returns the SymRef used to address sym via a GOT
	// indirection (ELF/COFF/Plan9 GOT-absolute, Mach-O GOT-load pseudo
	// reloc).
	ResolveAddress(sym string) SymRef

	// RegisterExternFunction registers sym as an external function callable
	// from the current atom, returning the SymRef to thread through a
	// call_extern pseudo-instruction. Mach-O extern only.
	RegisterExternFunction(currentAtom int32, sym string) SymRef
}
