package backend

import (
	"github.com/ssagen/arm64codegen/ir"
	"github.com/ssagen/arm64codegen/layout"
	"github.com/ssagen/arm64codegen/linker"
)

// testFunction is a hand-built ir.Function fixture, grounded on the small,
// hand-constructed ssa.Builder setups the teacher's own *_test.go files use
// (e.g. backend/isa/arm64/abi_test.go, lower_instr_test.go) rather than a
// full parser/builder pipeline.
type testFunction struct {
	name      string
	callConv  ir.CallConv
	params    []ir.Type
	ret       ir.Type
	mainBody  []ir.Index
	blockBody map[ir.Index][]ir.Index
	extraArgs map[int32][]ir.Ref

	tags  map[ir.Index]ir.Tag
	datas map[ir.Index]ir.Data
	locs  map[ir.Index]ir.Loc
	types map[ir.Index]ir.Type

	consts []ir.ConstValue
}

func newTestFunction() *testFunction {
	return &testFunction{
		blockBody: make(map[ir.Index][]ir.Index),
		extraArgs: make(map[int32][]ir.Ref),
		tags:      make(map[ir.Index]ir.Tag),
		datas:     make(map[ir.Index]ir.Data),
		locs:      make(map[ir.Index]ir.Loc),
		types:     make(map[ir.Index]ir.Type),
	}
}

func (f *testFunction) add(idx ir.Index, tag ir.Tag, data ir.Data, typ ir.Type) {
	f.tags[idx] = tag
	f.datas[idx] = data
	f.locs[idx] = ir.Loc{Line: uint32(idx) + 1}
	f.types[idx] = typ
}

func (f *testFunction) Name() string           { return f.name }
func (f *testFunction) CallConv() ir.CallConv  { return f.callConv }
func (f *testFunction) Params() []ir.Type      { return f.params }
func (f *testFunction) ReturnType() ir.Type    { return f.ret }
func (f *testFunction) TagOf(idx ir.Index) ir.Tag   { return f.tags[idx] }
func (f *testFunction) DataOf(idx ir.Index) ir.Data { return f.datas[idx] }
func (f *testFunction) LocOf(idx ir.Index) ir.Loc   { return f.locs[idx] }
func (f *testFunction) TypeOfIndex(idx ir.Index) ir.Type { return f.types[idx] }

func (f *testFunction) TypeOf(ref ir.Ref) ir.Type {
	if ref.IsConst() {
		return f.consts[ref.ConstIndex()].Type
	}
	return f.types[ref.Index()]
}

func (f *testFunction) ValueOf(ref ir.Ref) (ir.ConstValue, bool) {
	if !ref.IsConst() {
		return ir.ConstValue{}, false
	}
	return f.consts[ref.ConstIndex()], true
}

func (f *testFunction) MainBody() ir.Index            { return ir.Index(0) }
func (f *testFunction) BlockBody(idx ir.Index) []ir.Index {
	if idx == ir.Index(0) {
		return f.mainBody
	}
	return f.blockBody[idx]
}
func (f *testFunction) ExtraArgs(extraIndex int32) []ir.Ref { return f.extraArgs[extraIndex] }

// testLiveness is a fully-permissive liveness fixture: nothing dies and
// nothing is unused unless a test explicitly configures it, mirroring how
// the teacher's regalloc tests hand-build a minimal fake liveness set
// rather than running real analysis.
type testLiveness struct {
	dies       map[ir.Index]map[int]bool
	unused     map[ir.Index]bool
	condDeaths map[ir.Index][2][]ir.Index
}

func newTestLiveness() *testLiveness {
	return &testLiveness{
		dies:       make(map[ir.Index]map[int]bool),
		unused:     make(map[ir.Index]bool),
		condDeaths: make(map[ir.Index][2][]ir.Index),
	}
}

// setCondBrDeaths configures the then-deaths/else-deaths CondBrDeaths
// returns for the cond_br instruction at idx.
func (l *testLiveness) setCondBrDeaths(idx ir.Index, thenDeaths, elseDeaths []ir.Index) {
	l.condDeaths[idx] = [2][]ir.Index{thenDeaths, elseDeaths}
}

func (l *testLiveness) setDies(idx ir.Index, slot int) {
	if l.dies[idx] == nil {
		l.dies[idx] = make(map[int]bool)
	}
	l.dies[idx][slot] = true
}

func (l *testLiveness) TombBits(idx ir.Index) uint8 { return 0 }
func (l *testLiveness) OperandDies(idx ir.Index, slot int) bool {
	return l.dies[idx] != nil && l.dies[idx][slot]
}
func (l *testLiveness) ClearOperandDeath(idx ir.Index, slot int) {
	if l.dies[idx] != nil {
		delete(l.dies[idx], slot)
	}
}
func (l *testLiveness) IsUnused(idx ir.Index) bool { return l.unused[idx] }
func (l *testLiveness) CondBrDeaths(idx ir.Index) (thenDeaths, elseDeaths []ir.Index) {
	d := l.condDeaths[idx]
	return d[0], d[1]
}
func (l *testLiveness) ExtraTombBits(idx ir.Index) []bool { return nil }

// testTypes is a pure passthrough layout.Queries: every layout.Type this
// fixture builds already carries its own ABI facts inline, so the query
// service just reads them back rather than computing anything.
type testTypes struct{}

func (testTypes) AbiSize(t layout.Type) uint32      { return t.AbiSize }
func (testTypes) AbiAlignment(t layout.Type) uint32 { return t.AbiAlign }
func (testTypes) HasRuntimeBits(t layout.Type) bool { return t.HasRuntimeBits }
func (testTypes) IntInfo(t layout.Type) layout.IntInfo {
	return layout.IntInfo{Bits: t.AbiSize * 8, Signed: t.Signed}
}
func (testTypes) ChildType(t layout.Type) layout.Type { return *t.Elem }
func (testTypes) ElemType(t layout.Type) layout.Type  { return *t.Elem }
func (testTypes) StructFieldOffset(t layout.Type, field int) uint32 {
	return t.Fields[field].Offset
}
func (testTypes) ErrorUnionPayload(t layout.Type) layout.Type { return *t.ErrorPayload }
func (testTypes) SlicePtrFieldType(t layout.Type) layout.Type { return t }
func (testTypes) PtrSize() uint32                             { return 8 }

var typeInt64 = layout.Type{Kind: layout.KindInt, AbiSize: 8, AbiAlign: 8, Signed: true, HasRuntimeBits: true}
var typeBool = layout.Type{Kind: layout.KindBool, AbiSize: 1, AbiAlign: 1, HasRuntimeBits: true}
var typePtrToByte = layout.Type{Kind: layout.KindPointer, AbiSize: 8, AbiAlign: 8, HasRuntimeBits: true, Elem: &layout.Type{Kind: layout.KindInt, AbiSize: 1, AbiAlign: 1, HasRuntimeBits: true}}
var typeVoid = layout.Type{Kind: layout.KindVoid}

// testLinker records every resolution request; ResolveAddress answers with a
// fixed symbol reference and RegisterExternFunction with the caller's atom
// index, grounded on how the teacher's own abi_test.go
// stubs a minimal linker-adjacent collaborator.
type testLinker struct {
	flavor    linker.Flavor
	resolved  []string
	registered []string
}

func (l *testLinker) Flavor() linker.Flavor { return l.flavor }
func (l *testLinker) ResolveAddress(sym string) linker.SymRef {
	l.resolved = append(l.resolved, sym)
	return linker.SymRef{SymIndex: 1}
}
func (l *testLinker) RegisterExternFunction(currentAtom int32, sym string) linker.SymRef {
	l.registered = append(l.registered, sym)
	return linker.SymRef{AtomIndex: currentAtom}
}
