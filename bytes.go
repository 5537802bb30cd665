package sym

// ByteOrder selects the byte-order convention used when slicing and joining
// multi-byte values. It is an explicit runtime value so that both ends of a
// serialized stream can agree on it.
type ByteOrder int

// Supported byte orders.
const (
	LittleEndian = ByteOrder(iota)
	BigEndian
)

// String returns the string representation of the byte order.
func (bo ByteOrder) String() string {
	switch bo {
	case LittleEndian:
		return "little-endian"
	case BigEndian:
		return "big-endian"
	default:
		return "ByteOrder<invalid>"
	}
}

// Concatenate joins e1 and e2 into a CONCAT node that is
// ExprSize(e1)+ExprSize(e2) bytes wide, with e1 supplying the most
// significant bytes. The physical child order follows the byte order:
// little-endian stores (e2, e1), big-endian stores (e1, e2).
func Concatenate(order ByteOrder, e1, e2 Expr) *BinaryExpr {
	lhs, rhs := e2, e1
	if order == BigEndian {
		lhs, rhs = e1, e2
	}
	return &BinaryExpr{
		Value: (ExprValue(e1) << (8 * ExprSize(e2))) + ExprValue(e2),
		Size:  ExprSize(e1) + ExprSize(e2),
		Op:    CONCAT,
		LHS:   lhs,
		RHS:   rhs,
	}
}

// ExtractBytesValue extracts the n-byte chunk at byte index i of a concrete
// value that is size bytes wide. In little-endian mode index 0 is the least
// significant byte; big-endian mode recomputes i = size-i-n first.
//
// Little-endian example: ExtractBytesValue(LittleEndian, 4, 0xABCDEF12, 2, 1)
// yields 0xCD. The offset must be a multiple of the extraction width.
func ExtractBytesValue(order ByteOrder, size uint32, value int64, i, n uint32) *ConstantExpr {
	assert(n > 0 && i%n == 0, "extract: offset %d not aligned to width %d", i, n)

	if order == BigEndian {
		i = size - i - n
	}
	return NewConstantExprSized(n, extractValue(value, i, n))
}

// ExtractBytes extracts the n-byte chunk at byte index i of e, yielding an
// EXTRACT node whose right child is the resolved least-significant-byte
// offset as a pointer-width constant. The offset must be a multiple of the
// extraction width.
func ExtractBytes(order ByteOrder, e Expr, i, n uint32) *BinaryExpr {
	assert(n > 0 && i%n == 0, "extract: offset %d not aligned to width %d", i, n)

	if order == BigEndian {
		i = ExprSize(e) - i - n
	}
	return &BinaryExpr{
		Value: extractValue(ExprValue(e), i, n),
		Size:  n,
		Op:    EXTRACT,
		LHS:   e,
		RHS:   NewConstantExpr(ULONG, int64(i)),
	}
}

// extractValue returns the i-th through i+n-1-th least significant bytes.
func extractValue(value int64, i, n uint32) int64 {
	mask := ^uint64(0)
	if n < 8 {
		mask = (uint64(1) << (8 * n)) - 1
	}
	return int64((uint64(value) >> (8 * i)) & mask)
}
