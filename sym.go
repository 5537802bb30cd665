// Package sym implements the symbolic expression layer of a concolic test
// generator. Every expression node pairs the symbolic formula with the
// concrete value it evaluated to during the traced execution, along with the
// byte width of its C type. The package also provides the binary wire codec
// used to move expression trees between the instrumented process and the
// search driver, and an affine (linear) expression model used where a full
// symbolic tree is unnecessary. Lowering to an SMT solver lives in the z3
// subpackage.
package sym

import (
	"errors"
	"fmt"
)

// Var identifies a symbolic input variable.
type Var uint32

// Errors returned when a solver query terminates without an answer.
var (
	ErrSolverTimeout       = errors.New("solver timeout")
	ErrSolverCanceled      = errors.New("solver canceled")
	ErrSolverResourceLimit = errors.New("solver resource limit")
	ErrSolverUnknown       = errors.New("solver unknown error")
)

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
