// Package codegenapi collects the compile-time debug/validation switches
// used across the backend. Grounded on
// github.com/tetratelabs/wazero/internal/engine/wazevo/wazevoapi's
// debug_consts.go: instead of a logging framework or per-package logger
// object, call sites gate a plain fmt.Fprintf behind one of these consts,
// and safety-build invariant assertions are gated behind the Validation
// consts so a release build can strip them entirely.
package codegenapi

// ----- Debug logging -----
// These consts must be disabled by default. Enable them only when
// debugging this package itself.

const (
	RegAllocLoggingEnabled   = false
	BranchStackLoggingEnabled = false
	LowerLoggingEnabled      = false
)

// ----- Output prints -----

const (
	PrintFinalizedMIR = false
)

// ----- Validations -----
// These consts must be enabled by default until the implementation has
// enough fuzzing/testing mileage to disable them for a release build.

const (
	RegAllocValidationEnabled    = true
	BranchStackValidationEnabled = true
)
