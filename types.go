package sym

import (
	"fmt"
	"math"
)

// CompareOp represents a comparison operator.
type CompareOp int

// Comparison operators. The values are fixed by the wire format.
const (
	EQ  = CompareOp(iota) // ==
	NEQ                   // !=
	GT                    // >  (unsigned)
	LE                    // <= (unsigned)
	LT                    // <  (unsigned)
	GE                    // >= (unsigned)
	SGT                   // >  (signed)
	SLE                   // <= (signed)
	SLT                   // <  (signed)
	SGE                   // >= (signed)
)

var compareOps = [...]string{
	EQ:  "eq",
	NEQ: "neq",
	GT:  "gt",
	LE:  "le",
	LT:  "lt",
	GE:  "ge",
	SGT: "sgt",
	SLE: "sle",
	SLT: "slt",
	SGE: "sge",
}

// String returns the string representation of the operator.
func (op CompareOp) String() string {
	if op >= 0 && op < CompareOp(len(compareOps)) && compareOps[op] != "" {
		return compareOps[op]
	}
	return fmt.Sprintf("CompareOp<%d>", op)
}

// Negate returns the operator accepting exactly the value pairs op rejects.
// Used when flipping a branch condition.
func (op CompareOp) Negate() CompareOp {
	switch op {
	case EQ:
		return NEQ
	case NEQ:
		return EQ
	case GT:
		return LE
	case LE:
		return GT
	case LT:
		return GE
	case GE:
		return LT
	case SGT:
		return SLE
	case SLE:
		return SGT
	case SLT:
		return SGE
	case SGE:
		return SLT
	default:
		panic("unreachable")
	}
}

// BinaryOp represents a binary expression operator.
type BinaryOp int

// Binary operators. The values are fixed by the wire format.
const (
	ADD  = BinaryOp(iota)
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	SHL
	LSHR
	ASHR
	AND
	OR
	XOR
	CONCAT
	EXTRACT
	CONCRETE
)

var binaryOps = [...]string{
	ADD:      "add",
	SUB:      "sub",
	MUL:      "mul",
	UDIV:     "udiv",
	SDIV:     "sdiv",
	UREM:     "urem",
	SREM:     "srem",
	SHL:      "shl",
	LSHR:     "lshr",
	ASHR:     "ashr",
	AND:      "and",
	OR:       "or",
	XOR:      "xor",
	CONCAT:   "concat",
	EXTRACT:  "extract",
	CONCRETE: "concrete",
}

// String returns the string representation of the operator.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// UnaryOp represents a unary expression operator.
type UnaryOp int

// Unary operators. The values are fixed by the wire format.
const (
	NEG  = UnaryOp(iota) // arithmetic negation
	LNOT                 // logical not
	NOT                  // bitwise not
	ZEXT                 // unsigned (zero-extending) cast
	SEXT                 // signed (sign-extending) cast
)

var unaryOps = [...]string{
	NEG:  "neg",
	LNOT: "lnot",
	NOT:  "not",
	ZEXT: "zext",
	SEXT: "sext",
}

// String returns the string representation of the operator.
func (op UnaryOp) String() string {
	if op >= 0 && op < UnaryOp(len(unaryOps)) && unaryOps[op] != "" {
		return unaryOps[op]
	}
	return fmt.Sprintf("UnaryOp<%d>", op)
}

// PointerOp represents a pointer arithmetic operator recorded by the
// instrumentation for address computations.
type PointerOp int

// Pointer operators.
const (
	ADDPI  = PointerOp(iota) // pointer + integer
	SADDPI                   // pointer + signed integer
	SUBPI                    // pointer - integer
	SSUBPI                   // pointer - signed integer
	SUBPP                    // pointer - pointer
)

var pointerOps = [...]string{
	ADDPI:  "addpi",
	SADDPI: "saddpi",
	SUBPI:  "subpi",
	SSUBPI: "ssubpi",
	SUBPP:  "subpp",
}

// String returns the string representation of the operator.
func (op PointerOp) String() string {
	if op >= 0 && op < PointerOp(len(pointerOps)) && pointerOps[op] != "" {
		return pointerOps[op]
	}
	return fmt.Sprintf("PointerOp<%d>", op)
}

// Type represents a C numeric type as seen by the instrumentation.
type Type int

// C numeric types. BOOLEAN sits below zero so the unsigned/signed
// pairs keep their even/odd encoding.
const (
	BOOLEAN = Type(iota - 1)
	UCHAR
	CHAR
	USHORT
	SHORT
	UINT
	INT
	ULONG
	LONG
	ULONGLONG
	LONGLONG
	STRUCT
)

var typeNames = map[Type]string{
	BOOLEAN:   "bool",
	UCHAR:     "unsigned char",
	CHAR:      "char",
	USHORT:    "unsigned short",
	SHORT:     "short",
	UINT:      "unsigned int",
	INT:       "int",
	ULONG:     "unsigned long",
	LONG:      "long",
	ULONGLONG: "unsigned long long",
	LONGLONG:  "long long",
	STRUCT:    "struct",
}

// String returns the C name of the type.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type<%d>", t)
}

// IsSigned returns true for the signed integer types.
func (t Type) IsSigned() bool {
	switch t {
	case CHAR, SHORT, INT, LONG, LONGLONG:
		return true
	default:
		return false
	}
}

// ByteSize returns the width of the type in bytes (LP64 widths).
// STRUCT has no fixed width and returns zero.
func (t Type) ByteSize() uint32 {
	switch t {
	case BOOLEAN, UCHAR, CHAR:
		return 1
	case USHORT, SHORT:
		return 2
	case UINT, INT:
		return 4
	case ULONG, LONG, ULONGLONG, LONGLONG:
		return 8
	case STRUCT:
		return 0
	default:
		panic(fmt.Sprintf("byte size of invalid type: %d", t))
	}
}

// Min returns the smallest value representable by the type.
func (t Type) Min() int64 {
	switch t {
	case BOOLEAN, UCHAR, USHORT, UINT, ULONG, ULONGLONG:
		return 0
	case CHAR:
		return math.MinInt8
	case SHORT:
		return math.MinInt16
	case INT:
		return math.MinInt32
	case LONG, LONGLONG:
		return math.MinInt64
	default:
		panic(fmt.Sprintf("min value of invalid type: %d", t))
	}
}

// Max returns the largest value representable by the type. The maximums of
// the unsigned 64-bit types are clamped to the signed value domain carried
// by expression nodes.
func (t Type) Max() int64 {
	switch t {
	case BOOLEAN:
		return 1
	case UCHAR:
		return math.MaxUint8
	case CHAR:
		return math.MaxInt8
	case USHORT:
		return math.MaxUint16
	case SHORT:
		return math.MaxInt16
	case UINT:
		return math.MaxUint32
	case INT:
		return math.MaxInt32
	case ULONG, ULONGLONG, LONG, LONGLONG:
		return math.MaxInt64
	default:
		panic(fmt.Sprintf("max value of invalid type: %d", t))
	}
}
