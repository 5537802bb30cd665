// Package z3 lowers symbolic expressions to Z3 bit-vector terms and wraps
// the Z3 solver for satisfiability queries over collected constraints.
package z3

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/concolic/sym"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
*/
import "C"

// MaxConstantSize is the widest node, in bytes, that lowering accepts.
// Wider nodes fail explicitly instead of silently truncating bits.
const MaxConstantSize = 8

// ErrDerefUnsupported is returned when lowering a dereference node; memory
// reads are resolved by the linearization layer before solving.
var ErrDerefUnsupported = errors.New("z3: deref expression lowering not supported")

// AST is an opaque handle to a Z3 term.
type AST struct {
	raw C.Z3_ast
}

// WidthError is returned when a node is too wide for the native machine
// word the solver constants are built from.
type WidthError struct {
	Size uint32
}

// Error returns the error as a string.
func (e *WidthError) Error() string {
	return fmt.Sprintf("z3: %d-byte node exceeds native word width (%d bytes)", e.Size, MaxConstantSize)
}

// Context represents a Z3 context object that is used for constructing
// terms. It carries the byte order the expressions were built with so that
// CONCAT children can be oriented, and caches one bit-vector constant per
// symbolic variable.
type Context struct {
	raw   C.Z3_context
	order sym.ByteOrder
	vars  map[sym.Var]varDecl
}

type varDecl struct {
	ast  C.Z3_ast
	size uint32
}

// NewContext returns a new instance of Context using the given byte order.
func NewContext(order sym.ByteOrder) *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{
		raw:   raw,
		order: order,
		vars:  make(map[sym.Var]varDecl),
	}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return ctx.err("Z3_del_context")
}

// Vars returns the variables encountered during lowering so far.
func (ctx *Context) Vars() []sym.Var {
	vars := make([]sym.Var, 0, len(ctx.vars))
	for v := range ctx.vars {
		vars = append(vars, v)
	}
	return vars
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// BitBlast lowers expr to a bit-vector term that is 8*ExprSize(expr) bits
// wide. A constant's concrete value is reinterpreted as an unsigned bit
// pattern of that width.
func (ctx *Context) BitBlast(expr sym.Expr) (AST, error) {
	ast, err := ctx.toAST(expr)
	if err != nil {
		return AST{}, err
	}
	return AST{raw: ast}, nil
}

func (ctx *Context) toAST(expr sym.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *sym.ConstantExpr:
		return ctx.toConstantAST(expr)
	case *sym.BasicExpr:
		return ctx.toBasicAST(expr)
	case *sym.UnaryExpr:
		return ctx.toUnaryAST(expr)
	case *sym.BinaryExpr:
		return ctx.toBinaryAST(expr)
	case *sym.CompareExpr:
		return ctx.toCompareBVAST(expr)
	case *sym.DerefExpr:
		return nil, ErrDerefUnsupported
	default:
		return nil, errors.Errorf("z3.Context.toAST: invalid expression type: %T", expr)
	}
}

func (ctx *Context) toConstantAST(expr *sym.ConstantExpr) (C.Z3_ast, error) {
	if expr.Size > MaxConstantSize {
		return nil, &WidthError{Size: expr.Size}
	}
	return ctx.makeUint64(8*uint(expr.Size), uint64(expr.Value)&widthMask(expr.Size))
}

func (ctx *Context) toBasicAST(expr *sym.BasicExpr) (C.Z3_ast, error) {
	if expr.Size > MaxConstantSize {
		return nil, &WidthError{Size: expr.Size}
	}
	if d, ok := ctx.vars[expr.Var]; ok {
		if d.size != expr.Size {
			return nil, errors.Errorf("z3: variable x%d used with widths %d and %d", expr.Var, d.size, expr.Size)
		}
		return d.ast, nil
	}

	t, err := ctx.makeBVSort(8 * uint(expr.Size))
	if err != nil {
		return nil, err
	}
	cname := C.CString(varName(expr.Var))
	defer C.free(unsafe.Pointer(cname))
	nameSymbol := C.Z3_mk_string_symbol(ctx.raw, cname)

	ast := C.Z3_mk_const(ctx.raw, nameSymbol, t)
	if err := ctx.err("Z3_mk_const"); err != nil {
		return nil, err
	}
	ctx.vars[expr.Var] = varDecl{ast: ast, size: expr.Size}
	return ast, nil
}

func (ctx *Context) toUnaryAST(expr *sym.UnaryExpr) (C.Z3_ast, error) {
	child, err := ctx.toAST(expr.Child)
	if err != nil {
		return nil, err
	}

	switch expr.Op {
	case sym.NEG:
		return C.Z3_mk_bvneg(ctx.raw, child), ctx.err("Z3_mk_bvneg")
	case sym.NOT:
		return C.Z3_mk_bvnot(ctx.raw, child), ctx.err("Z3_mk_bvnot")
	case sym.LNOT:
		return ctx.toLogicalNotAST(expr, child)
	case sym.ZEXT:
		return ctx.toCastAST(expr, child, false)
	case sym.SEXT:
		return ctx.toCastAST(expr, child, true)
	default:
		return nil, errors.Errorf("z3.Context.toUnaryAST: unexpected operation: %s", expr.Op)
	}
}

// toLogicalNotAST builds ite(child == 0, 1, 0) at the node's width.
func (ctx *Context) toLogicalNotAST(expr *sym.UnaryExpr, child C.Z3_ast) (C.Z3_ast, error) {
	zero, err := ctx.makeUint64(ctx.bvSize(child), 0)
	if err != nil {
		return nil, err
	}
	cond := C.Z3_mk_eq(ctx.raw, child, zero)
	if err := ctx.err("Z3_mk_eq"); err != nil {
		return nil, err
	}

	whenTrue, err := ctx.makeUint64(8*uint(expr.Size), 1)
	if err != nil {
		return nil, err
	}
	whenFalse, err := ctx.makeUint64(8*uint(expr.Size), 0)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, cond, whenTrue, whenFalse), ctx.err("Z3_mk_ite")
}

// toCastAST widens or truncates child to the node's width, preserving the
// sign semantics of the operator.
func (ctx *Context) toCastAST(expr *sym.UnaryExpr, child C.Z3_ast, signed bool) (C.Z3_ast, error) {
	w := 8 * uint(expr.Size)
	sw := ctx.bvSize(child)
	if w == sw { // nop
		return child, nil
	} else if w < sw { // truncate
		return C.Z3_mk_extract(ctx.raw, C.uint(w-1), 0, child), ctx.err("Z3_mk_extract")
	}
	if signed {
		return C.Z3_mk_sign_ext(ctx.raw, C.uint(w-sw), child), ctx.err("Z3_mk_sign_ext")
	}
	return C.Z3_mk_zero_ext(ctx.raw, C.uint(w-sw), child), ctx.err("Z3_mk_zero_ext")
}

func (ctx *Context) toBinaryAST(expr *sym.BinaryExpr) (C.Z3_ast, error) {
	switch expr.Op {
	case sym.CONCAT:
		return ctx.toConcatAST(expr)
	case sym.EXTRACT:
		return ctx.toExtractAST(expr)
	case sym.CONCRETE:
		return nil, errors.Errorf("z3.Context.toBinaryAST: unexpected operation: %s", expr.Op)
	}

	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}

	switch expr.Op {
	case sym.ADD:
		return C.Z3_mk_bvadd(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvadd")
	case sym.SUB:
		return C.Z3_mk_bvsub(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsub")
	case sym.MUL:
		return C.Z3_mk_bvmul(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvmul")
	case sym.UDIV:
		return C.Z3_mk_bvudiv(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvudiv")
	case sym.SDIV:
		return C.Z3_mk_bvsdiv(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsdiv")
	case sym.UREM:
		return C.Z3_mk_bvurem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvurem")
	case sym.SREM:
		return C.Z3_mk_bvsrem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsrem")
	case sym.SHL:
		return C.Z3_mk_bvshl(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvshl")
	case sym.LSHR:
		return C.Z3_mk_bvlshr(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvlshr")
	case sym.ASHR:
		return C.Z3_mk_bvashr(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvashr")
	case sym.AND:
		return C.Z3_mk_bvand(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvand")
	case sym.OR:
		return C.Z3_mk_bvor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvor")
	case sym.XOR:
		return C.Z3_mk_bvxor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvxor")
	default:
		return nil, errors.Errorf("z3.Context.toBinaryAST: unexpected operation: %s", expr.Op)
	}
}

// toConcatAST orients the physical children by the context's byte order:
// little-endian CONCAT nodes store (low, high), big-endian (high, low).
func (ctx *Context) toConcatAST(expr *sym.BinaryExpr) (C.Z3_ast, error) {
	high, low := expr.RHS, expr.LHS
	if ctx.order == sym.BigEndian {
		high, low = expr.LHS, expr.RHS
	}

	msb, err := ctx.toAST(high)
	if err != nil {
		return nil, err
	}
	lsb, err := ctx.toAST(low)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_concat(ctx.raw, msb, lsb), ctx.err("Z3_mk_concat")
}

// toExtractAST lowers an EXTRACT node. The right child holds the resolved
// least-significant-byte offset and must be concrete.
func (ctx *Context) toExtractAST(expr *sym.BinaryExpr) (C.Z3_ast, error) {
	offExpr, ok := expr.RHS.(*sym.ConstantExpr)
	if !ok {
		return nil, errors.Errorf("z3: extract with symbolic offset: %s", expr.RHS)
	}

	src, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	off := uint(offExpr.Value)
	return C.Z3_mk_extract(ctx.raw, C.uint(8*(off+uint(expr.Size))-1), C.uint(8*off), src), ctx.err("Z3_mk_extract")
}

// toCompareBVAST lowers a comparison used as a value: ite(cond, 1, 0) at
// the node's width.
func (ctx *Context) toCompareBVAST(expr *sym.CompareExpr) (C.Z3_ast, error) {
	cond, err := ctx.toCompareAST(expr)
	if err != nil {
		return nil, err
	}
	whenTrue, err := ctx.makeUint64(8*uint(expr.Size), 1)
	if err != nil {
		return nil, err
	}
	whenFalse, err := ctx.makeUint64(8*uint(expr.Size), 0)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, cond, whenTrue, whenFalse), ctx.err("Z3_mk_ite")
}

// toCompareAST lowers a comparison to a boolean term, preserving the
// signed/unsigned semantics of the operator.
func (ctx *Context) toCompareAST(expr *sym.CompareExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}

	switch expr.Op {
	case sym.EQ:
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case sym.NEQ:
		eq := C.Z3_mk_eq(ctx.raw, lhs, rhs)
		if err := ctx.err("Z3_mk_eq"); err != nil {
			return nil, err
		}
		return C.Z3_mk_not(ctx.raw, eq), ctx.err("Z3_mk_not")
	case sym.GT:
		return C.Z3_mk_bvugt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvugt")
	case sym.LE:
		return C.Z3_mk_bvule(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvule")
	case sym.LT:
		return C.Z3_mk_bvult(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvult")
	case sym.GE:
		return C.Z3_mk_bvuge(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvuge")
	case sym.SGT:
		return C.Z3_mk_bvsgt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsgt")
	case sym.SLE:
		return C.Z3_mk_bvsle(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsle")
	case sym.SLT:
		return C.Z3_mk_bvslt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvslt")
	case sym.SGE:
		return C.Z3_mk_bvsge(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsge")
	default:
		return nil, errors.Errorf("z3.Context.toCompareAST: unexpected operation: %s", expr.Op)
	}
}

// toBoolAST lowers a constraint for assertion. Comparisons lower directly
// to boolean terms; any other expression is asserted non-zero.
func (ctx *Context) toBoolAST(expr sym.Expr) (C.Z3_ast, error) {
	if expr, ok := expr.(*sym.CompareExpr); ok {
		return ctx.toCompareAST(expr)
	}

	ast, err := ctx.toAST(expr)
	if err != nil {
		return nil, err
	}
	zero, err := ctx.makeUint64(ctx.bvSize(ast), 0)
	if err != nil {
		return nil, err
	}
	eq := C.Z3_mk_eq(ctx.raw, ast, zero)
	if err := ctx.err("Z3_mk_eq"); err != nil {
		return nil, err
	}
	return C.Z3_mk_not(ctx.raw, eq), ctx.err("Z3_mk_not")
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

func (ctx *Context) bvSize(expr C.Z3_ast) uint {
	t := C.Z3_get_sort(ctx.raw, expr)
	if err := ctx.err("Z3_get_sort"); err != nil {
		panic(err)
	}
	sz := uint(C.Z3_get_bv_sort_size(ctx.raw, t))
	if err := ctx.err("Z3_get_bv_sort_size"); err != nil {
		panic(err)
	}
	return sz
}

// ASTString returns the SMT-LIB rendering of a term built by this context.
func (ctx *Context) ASTString(a AST) string {
	return ctx.astToString(a.raw)
}

func (ctx *Context) astToString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}

// widthMask returns the mask covering size bytes.
func widthMask(size uint32) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (8 * size)) - 1
}

func varName(v sym.Var) string {
	return fmt.Sprintf("x%d", v)
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}
