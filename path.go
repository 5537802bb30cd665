package sym

import (
	"github.com/benbjohnson/immutable"
)

// Path records the constraints collected along one traced execution, along
// with the type environment of the symbolic input variables those
// constraints range over. The environment is persistent so clones taken at
// branch points share it structurally.
type Path struct {
	constraints []Expr
	vars        *immutable.SortedMap // Var -> Type
}

// NewPath returns an empty path record.
func NewPath() *Path {
	return &Path{
		vars: immutable.NewSortedMap(&varComparer{}),
	}
}

// DeclareVar records the C type of a symbolic input variable.
func (p *Path) DeclareVar(v Var, ty Type) {
	p.vars = p.vars.Set(v, ty)
}

// AddConstraint appends a collected constraint.
func (p *Path) AddConstraint(e Expr) {
	p.constraints = append(p.constraints, e)
}

// Constraints returns the constraints collected so far.
func (p *Path) Constraints() []Expr {
	return p.constraints
}

// VarType returns the declared type of v.
func (p *Path) VarType(v Var) (Type, bool) {
	value, ok := p.vars.Get(v)
	if !ok {
		return 0, false
	}
	return value.(Type), true
}

// Vars returns the declared variables in ascending order.
func (p *Path) Vars() []Var {
	vars := make([]Var, 0, p.vars.Len())
	for itr := p.vars.Iterator(); !itr.Done(); {
		k, _ := itr.Next()
		vars = append(vars, k.(Var))
	}
	return vars
}

// VarTypes materializes the variable environment as a plain map, suitable
// for the package-level DependsOn query.
func (p *Path) VarTypes() map[Var]Type {
	m := make(map[Var]Type, p.vars.Len())
	for itr := p.vars.Iterator(); !itr.Done(); {
		k, v := itr.Next()
		m[k.(Var)] = v.(Type)
	}
	return m
}

// DependsOn returns true if e references any variable declared on the path.
func (p *Path) DependsOn(e Expr) bool {
	vars := make(map[Var]struct{})
	AppendVars(e, vars)
	for v := range vars {
		if _, ok := p.vars.Get(v); ok {
			return true
		}
	}
	return false
}

// Clone returns a copy of the path. The constraint slice is copied; the
// variable environment is shared structurally.
func (p *Path) Clone() *Path {
	constraints := make([]Expr, len(p.constraints))
	copy(constraints, p.constraints)
	return &Path{constraints: constraints, vars: p.vars}
}

// varComparer compares two Vars. Implements immutable.Comparer.
type varComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b,
// and returns 0 if a is equal to b. Panic if a or b is not a Var.
func (c *varComparer) Compare(a, b interface{}) int {
	if i, j := a.(Var), b.(Var); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}
