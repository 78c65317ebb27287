package backend

import (
	"fmt"

	"github.com/ssagen/arm64codegen/ir"
)

// ErrorKind classifies a compile error per spec §7.
type ErrorKind uint8

const (
	// ErrOutOfMemory bubbles unchanged to the caller.
	ErrOutOfMemory ErrorKind = iota
	// ErrOutOfRegisters is raised by the allocator when no spillable
	// victim exists; it is a compiler bug, not a user error.
	ErrOutOfRegisters
	// ErrCodegenFail covers every unrepresentable case and TODO path.
	ErrCodegenFail
)

// Error is the structured diagnostic returned from Generate.
type Error struct {
	Kind ErrorKind
	Loc  ir.Loc
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Loc.Line, e.Loc.Col, e.Msg)
}

// fail builds an ErrCodegenFail diagnostic. Mirrors the teacher's fail(...)
// helper used throughout lower_instr.go for every not-yet-implemented path.
func fail(loc ir.Loc, format string, args ...any) *Error {
	return &Error{Kind: ErrCodegenFail, Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

func outOfRegisters(loc ir.Loc) *Error {
	return &Error{Kind: ErrOutOfRegisters, Loc: loc, Msg: "CodeGen ran out of registers"}
}

// notYetImplemented is the shape every stubbed-out path in spec §9 returns:
// "airRetLoad, airSwitch, most floating-point and >64-bit integer paths,
// atomics, tag-name lookups, error-name lookups, and aggregate/union init
// are declared not-yet-implemented; they must return a structured error
// rather than panic."
func notYetImplemented(loc ir.Loc, op string) *Error {
	return fail(loc, "not yet implemented: %s", op)
}
