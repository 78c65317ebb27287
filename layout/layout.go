// Package layout is the external type-layout collaborator: ABI size,
// alignment, and structural queries the backend needs but never computes
// itself (spec: "the type system's size/alignment/layout queries" are out
// of scope for codegen). Mirrors the query surface
// github.com/tetratelabs/wazero/internal/engine/wazevo/ssa.Type /
// internal/wasm type-section helpers expose to their own backends.
package layout

// Kind classifies a Type for the handful of shape-sensitive decisions
// codegen must make (int vs bool vs pointer vs aggregate vs error-union).
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindBool
	KindPointer
	KindFloat
	KindVector
	KindStruct
	KindSlice
	KindErrorUnion
	KindOptional
)

// Type is an opaque, value-typed description of a source type's ABI shape.
type Type struct {
	Kind Kind

	// AbiSize and AbiAlign are valid for every kind.
	AbiSize  uint32
	AbiAlign uint32

	// Signed is meaningful for KindInt only; booleans/enums are unsigned
	// per spec's comparison-signedness rule.
	Signed bool

	// HasRuntimeBits is false for zero-sized types (e.g. void, an empty
	// struct, a zero-payload optional's payload).
HasRuntimeBits bool

	// Elem is the pointee/element type for KindPointer/KindSlice.
	Elem *Type

	// Fields backs KindStruct's field layout query.
	Fields []FieldLayout

	// ErrorPayload backs KindErrorUnion's payload-type query.
	ErrorPayload *Type
}

// FieldLayout is one field of a struct-shaped Type.
type FieldLayout struct {
	Offset uint32
	Type   Type
}

// IntInfo describes an integer type's bit width and signedness.
type IntInfo struct {
	Bits   uint32
	Signed bool
}

// Queries is the read-only layout service a Function's types are resolved
// through during one compilation. Implementations are read-only during a
// function's codegen (spec §5).
type Queries interface {
	AbiSize(t Type) uint32
	AbiAlignment(t Type) uint32
	HasRuntimeBits(t Type) bool
	IntInfo(t Type) IntInfo
	ChildType(t Type) Type
	ElemType(t Type) Type
	StructFieldOffset(t Type, field int) uint32
	ErrorUnionPayload(t Type) Type
	SlicePtrFieldType(t Type) Type
	PtrSize() uint32
}
