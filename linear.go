package sym

import (
	"bytes"
	"fmt"
	"sort"
)

// LinearExpr represents an affine combination of variables:
// constant + sum of coeff*var terms. It is a lighter-weight constraint
// representation than a full expression tree and is mutated in place by the
// arithmetic methods. A variable absent from the coefficient map has
// coefficient zero; arithmetic never leaves explicit zero entries behind.
type LinearExpr struct {
	constant int64
	coeff    map[Var]int64
}

// NewLinearExpr returns the linear expression for the constant 0.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{coeff: make(map[Var]int64)}
}

// NewLinearConst returns the linear expression for the constant c.
func NewLinearConst(c int64) *LinearExpr {
	return &LinearExpr{constant: c, coeff: make(map[Var]int64)}
}

// NewLinearTerm returns the linear expression for the single term c*v.
func NewLinearTerm(c int64, v Var) *LinearExpr {
	le := NewLinearExpr()
	if c != 0 {
		le.coeff[v] = c
	}
	return le
}

// Clone returns an independent copy of the expression.
func (le *LinearExpr) Clone() *LinearExpr {
	other := NewLinearConst(le.constant)
	for v, c := range le.coeff {
		other.coeff[v] = c
	}
	return other
}

// ConstTerm returns the constant term.
func (le *LinearExpr) ConstTerm() int64 {
	return le.constant
}

// Coeff returns the coefficient of v, zero if absent.
func (le *LinearExpr) Coeff(v Var) int64 {
	return le.coeff[v]
}

// Len returns the number of terms, counting the constant.
func (le *LinearExpr) Len() int {
	return 1 + len(le.coeff)
}

// IsConcrete returns true if the expression has no variable terms.
func (le *LinearExpr) IsConcrete() bool {
	return len(le.coeff) == 0
}

// Negate flips the sign of the constant and every coefficient.
func (le *LinearExpr) Negate() {
	le.constant = -le.constant
	for v := range le.coeff {
		le.coeff[v] = -le.coeff[v]
	}
}

// AddExpr adds other term-wise, dropping coefficients that cancel to zero.
func (le *LinearExpr) AddExpr(other *LinearExpr) *LinearExpr {
	le.constant += other.constant
	for v, c := range other.coeff {
		le.addTerm(v, c)
	}
	return le
}

// SubExpr subtracts other term-wise, dropping coefficients that cancel to zero.
func (le *LinearExpr) SubExpr(other *LinearExpr) *LinearExpr {
	le.constant -= other.constant
	for v, c := range other.coeff {
		le.addTerm(v, -c)
	}
	return le
}

// AddConst adds c to the constant term.
func (le *LinearExpr) AddConst(c int64) *LinearExpr {
	le.constant += c
	return le
}

// SubConst subtracts c from the constant term.
func (le *LinearExpr) SubConst(c int64) *LinearExpr {
	le.constant -= c
	return le
}

// MulConst multiplies the constant and every coefficient by c. Multiplying
// by zero clears all variable terms.
func (le *LinearExpr) MulConst(c int64) *LinearExpr {
	le.constant *= c
	if c == 0 {
		le.coeff = make(map[Var]int64)
		return le
	}
	for v := range le.coeff {
		le.coeff[v] *= c
	}
	return le
}

func (le *LinearExpr) addTerm(v Var, c int64) {
	sum := le.coeff[v] + c
	if sum == 0 {
		delete(le.coeff, v)
		return
	}
	le.coeff[v] = sum
}

// Equal returns true if both expressions have the same constant term and
// coefficient map.
func (le *LinearExpr) Equal(other *LinearExpr) bool {
	if le.constant != other.constant || len(le.coeff) != len(other.coeff) {
		return false
	}
	for v, c := range le.coeff {
		if other.coeff[v] != c {
			return false
		}
	}
	return true
}

// AppendVars adds every variable with a non-zero coefficient to vars.
func (le *LinearExpr) AppendVars(vars map[Var]struct{}) {
	for v := range le.coeff {
		vars[v] = struct{}{}
	}
}

// DependsOn returns true if any variable term appears in vars.
func (le *LinearExpr) DependsOn(vars map[Var]Type) bool {
	for v := range le.coeff {
		if _, ok := vars[v]; ok {
			return true
		}
	}
	return false
}

// sortedVars returns the variables in ascending order for deterministic
// serialization and rendering.
func (le *LinearExpr) sortedVars() []Var {
	vars := make([]Var, 0, len(le.coeff))
	for v := range le.coeff {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	return vars
}

// String returns the string representation of the expression.
func (le *LinearExpr) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d", le.constant)
	for _, v := range le.sortedVars() {
		c := le.coeff[v]
		if c < 0 {
			fmt.Fprintf(&buf, " - %d*x%d", -c, v)
		} else {
			fmt.Fprintf(&buf, " + %d*x%d", c, v)
		}
	}
	return buf.String()
}
