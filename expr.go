package sym

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Expr represents a symbolic expression node. Every node carries the
// concrete value it evaluated to during the traced execution and the byte
// width of its C type; both are fixed at construction. The variant set is
// closed: consumers dispatch with an exhaustive type switch.
type Expr interface {
	expr()
	String() string
}

func (*ConstantExpr) expr() {}
func (*BasicExpr) expr()    {}
func (*UnaryExpr) expr()    {}
func (*BinaryExpr) expr()   {}
func (*CompareExpr) expr()  {}
func (*DerefExpr) expr()    {}

// MemoryReader reads bytes from the instrumented program's address space.
// Deref factories use it to snapshot the referenced object, so the package
// never touches raw memory itself.
type MemoryReader interface {
	ReadMemory(addr uint64, n int) ([]byte, error)
}

// ExprValue returns the concrete value the expression evaluated to.
func ExprValue(e Expr) int64 {
	switch e := e.(type) {
	case *ConstantExpr:
		return e.Value
	case *BasicExpr:
		return e.Value
	case *UnaryExpr:
		return e.Value
	case *BinaryExpr:
		return e.Value
	case *CompareExpr:
		return e.Value
	case *DerefExpr:
		return e.Value
	default:
		panic("unreachable")
	}
}

// ExprSize returns the byte width of the expression's type.
func ExprSize(e Expr) uint32 {
	switch e := e.(type) {
	case *ConstantExpr:
		return e.Size
	case *BasicExpr:
		return e.Size
	case *UnaryExpr:
		return e.Size
	case *BinaryExpr:
		return e.Size
	case *CompareExpr:
		return e.Size
	case *DerefExpr:
		return e.Size
	default:
		panic("unreachable")
	}
}

// ConstantExpr represents a literal.
type ConstantExpr struct {
	Value int64
	Size  uint32
}

// NewConstantExpr returns a constant of the width of ty.
func NewConstantExpr(ty Type, value int64) *ConstantExpr {
	return NewConstantExprSized(ty.ByteSize(), value)
}

// NewConstantExprSized returns a constant that is size bytes wide.
func NewConstantExprSized(size uint32, value int64) *ConstantExpr {
	assert(size > 0, "constant expr: invalid size %d", size)
	return &ConstantExpr{Value: value, Size: size}
}

// String returns the decimal concrete value.
func (e *ConstantExpr) String() string {
	return strconv.FormatInt(e.Value, 10)
}

// BasicExpr represents a read of a symbolic input variable.
type BasicExpr struct {
	Value int64
	Size  uint32
	Var   Var
}

// NewBasicExpr returns a variable reference of the width of ty.
func NewBasicExpr(ty Type, value int64, v Var) *BasicExpr {
	size := ty.ByteSize()
	assert(size > 0, "basic expr: invalid size %d", size)
	return &BasicExpr{Value: value, Size: size, Var: v}
}

// String returns the string representation of the expression.
func (e *BasicExpr) String() string {
	return fmt.Sprintf("x%d", e.Var)
}

// UnaryExpr represents an operation on a single expression.
type UnaryExpr struct {
	Value int64
	Size  uint32
	Op    UnaryOp
	Child Expr
}

// NewUnaryExpr returns a new instance of UnaryExpr. The caller supplies the
// concrete result of applying op during the traced execution; the node does
// not recompute it.
func NewUnaryExpr(ty Type, value int64, op UnaryOp, child Expr) *UnaryExpr {
	size := ty.ByteSize()
	assert(size > 0, "unary expr: invalid size %d", size)
	return &UnaryExpr{Value: value, Size: size, Op: op, Child: child}
}

// String returns the string representation of the expression.
func (e *UnaryExpr) String() string {
	return fmt.Sprintf("(%s %s)", e.Op, e.Child)
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Value int64
	Size  uint32
	Op    BinaryOp
	LHS   Expr
	RHS   Expr
}

// NewBinaryExpr returns a new instance of BinaryExpr carrying the concrete
// result computed by the caller.
func NewBinaryExpr(ty Type, value int64, op BinaryOp, lhs, rhs Expr) *BinaryExpr {
	size := ty.ByteSize()
	assert(size > 0, "binary expr: invalid size %d", size)
	return &BinaryExpr{Value: value, Size: size, Op: op, LHS: lhs, RHS: rhs}
}

// NewBinaryExprConst is a convenience for operations whose right operand
// stayed concrete; rhs is wrapped in a constant of the target type.
func NewBinaryExprConst(ty Type, value int64, op BinaryOp, lhs Expr, rhs int64) *BinaryExpr {
	return NewBinaryExpr(ty, value, op, lhs, NewConstantExpr(ty, rhs))
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// CompareExpr represents a comparison of two expressions. Its concrete
// value lies in the boolean domain (commonly 0 or 1).
type CompareExpr struct {
	Value int64
	Size  uint32
	Op    CompareOp
	LHS   Expr
	RHS   Expr
}

// NewCompareExpr returns a new instance of CompareExpr.
func NewCompareExpr(ty Type, value int64, op CompareOp, lhs, rhs Expr) *CompareExpr {
	size := ty.ByteSize()
	assert(size > 0, "compare expr: invalid size %d", size)
	return &CompareExpr{Value: value, Size: size, Op: op, LHS: lhs, RHS: rhs}
}

// String returns the string representation of the expression.
func (e *CompareExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// DerefExpr represents a memory read through a (possibly symbolic) address.
// Snapshot holds the concrete bytes of the referenced object captured when
// the node was built; its length always equals Object.Size.
type DerefExpr struct {
	Value    int64
	Size     uint32
	Addr     Expr
	Object   *Object
	Snapshot []byte
}

// NewDerefExpr returns a dereference of the address computed by addr,
// snapshotting the referenced object through mem. The object descriptor is
// deep-copied.
func NewDerefExpr(ty Type, value int64, obj *Object, addr Expr, mem MemoryReader) (*DerefExpr, error) {
	size := ty.ByteSize()
	assert(size > 0, "deref expr: invalid size %d", size)

	snapshot, err := mem.ReadMemory(uint64(ExprValue(addr)), int(obj.Size))
	if err != nil {
		return nil, errors.Wrap(err, "sym: deref snapshot")
	} else if uint32(len(snapshot)) != obj.Size {
		return nil, errors.Errorf("sym: deref snapshot: read %d bytes, object is %d", len(snapshot), obj.Size)
	}
	return &DerefExpr{
		Value:    value,
		Size:     size,
		Addr:     addr,
		Object:   obj.Clone(),
		Snapshot: snapshot,
	}, nil
}

// NewConstDerefExpr returns a dereference of a concrete address. The address
// is wrapped in a pointer-width constant expression.
func NewConstDerefExpr(ty Type, value int64, obj *Object, addr uint64, mem MemoryReader) (*DerefExpr, error) {
	return NewDerefExpr(ty, value, obj, NewConstantExpr(ULONG, int64(addr)), mem)
}

// String returns the string representation of the expression.
func (e *DerefExpr) String() string {
	return fmt.Sprintf("(deref %s %s)", e.Object, e.Addr)
}

// AppendVars adds every variable transitively referenced by e to vars.
func AppendVars(e Expr, vars map[Var]struct{}) {
	switch e := e.(type) {
	case *ConstantExpr:
		// nop
	case *BasicExpr:
		vars[e.Var] = struct{}{}
	case *UnaryExpr:
		AppendVars(e.Child, vars)
	case *BinaryExpr:
		AppendVars(e.LHS, vars)
		AppendVars(e.RHS, vars)
	case *CompareExpr:
		AppendVars(e.LHS, vars)
		AppendVars(e.RHS, vars)
	case *DerefExpr:
		AppendVars(e.Addr, vars)
	default:
		panic("unreachable")
	}
}

// DependsOn returns true if e transitively references any variable in vars.
func DependsOn(e Expr, vars map[Var]Type) bool {
	switch e := e.(type) {
	case *ConstantExpr:
		return false
	case *BasicExpr:
		_, ok := vars[e.Var]
		return ok
	case *UnaryExpr:
		return DependsOn(e.Child, vars)
	case *BinaryExpr:
		return DependsOn(e.LHS, vars) || DependsOn(e.RHS, vars)
	case *CompareExpr:
		return DependsOn(e.LHS, vars) || DependsOn(e.RHS, vars)
	case *DerefExpr:
		return DependsOn(e.Addr, vars)
	default:
		panic("unreachable")
	}
}

// IsConcrete returns true if e references no symbolic state. Used to
// short-circuit solver work. Dereferences always count as symbolic since
// the referenced object may hold symbolic bytes.
func IsConcrete(e Expr) bool {
	switch e := e.(type) {
	case *ConstantExpr:
		return true
	case *BasicExpr:
		return false
	case *UnaryExpr:
		return IsConcrete(e.Child)
	case *BinaryExpr:
		return IsConcrete(e.LHS) && IsConcrete(e.RHS)
	case *CompareExpr:
		return IsConcrete(e.LHS) && IsConcrete(e.RHS)
	case *DerefExpr:
		return false
	default:
		panic("unreachable")
	}
}

// CloneExpr returns a deep copy of e, recursively cloning children, the
// object descriptor, and the byte snapshot.
func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case *ConstantExpr:
		other := *e
		return &other
	case *BasicExpr:
		other := *e
		return &other
	case *UnaryExpr:
		return &UnaryExpr{Value: e.Value, Size: e.Size, Op: e.Op, Child: CloneExpr(e.Child)}
	case *BinaryExpr:
		return &BinaryExpr{Value: e.Value, Size: e.Size, Op: e.Op, LHS: CloneExpr(e.LHS), RHS: CloneExpr(e.RHS)}
	case *CompareExpr:
		return &CompareExpr{Value: e.Value, Size: e.Size, Op: e.Op, LHS: CloneExpr(e.LHS), RHS: CloneExpr(e.RHS)}
	case *DerefExpr:
		snapshot := make([]byte, len(e.Snapshot))
		copy(snapshot, e.Snapshot)
		return &DerefExpr{Value: e.Value, Size: e.Size, Addr: CloneExpr(e.Addr), Object: e.Object.Clone(), Snapshot: snapshot}
	default:
		panic("unreachable")
	}
}

// ExprEqual returns the structural equality of a and b. Two constants are
// equal iff their sizes and values match; a constant never equals a
// non-constant, on either side. Composite nodes must agree on variant,
// value, size, operator and children.
func ExprEqual(a, b Expr) bool {
	switch a := a.(type) {
	case *ConstantExpr:
		b, ok := b.(*ConstantExpr)
		return ok && a.Size == b.Size && a.Value == b.Value
	case *BasicExpr:
		b, ok := b.(*BasicExpr)
		return ok && a.Size == b.Size && a.Value == b.Value && a.Var == b.Var
	case *UnaryExpr:
		b, ok := b.(*UnaryExpr)
		return ok && a.Size == b.Size && a.Value == b.Value && a.Op == b.Op &&
			ExprEqual(a.Child, b.Child)
	case *BinaryExpr:
		b, ok := b.(*BinaryExpr)
		return ok && a.Size == b.Size && a.Value == b.Value && a.Op == b.Op &&
			ExprEqual(a.LHS, b.LHS) && ExprEqual(a.RHS, b.RHS)
	case *CompareExpr:
		b, ok := b.(*CompareExpr)
		return ok && a.Size == b.Size && a.Value == b.Value && a.Op == b.Op &&
			ExprEqual(a.LHS, b.LHS) && ExprEqual(a.RHS, b.RHS)
	case *DerefExpr:
		b, ok := b.(*DerefExpr)
		return ok && a.Size == b.Size && a.Value == b.Value &&
			a.Object.Equal(b.Object) && bytes.Equal(a.Snapshot, b.Snapshot) &&
			ExprEqual(a.Addr, b.Addr)
	default:
		panic("unreachable")
	}
}
