package backend

import "github.com/ssagen/arm64codegen/ir"

// emitDbgLine appends a dbg_line pseudo-op carrying loc's source position
// (spec §4.9), so every lowered instruction's position is recoverable
// directly from the MIR stream rather than a parallel side-table.
func (c *Context) emitDbgLine(loc ir.Loc) {
	c.code.emit(Instr{Op: opDbgLine, Line: loc.Line, Col: loc.Col})
}
