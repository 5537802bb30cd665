package sym_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/concolic/sym"
)

// memBuffer serves reads from a fixed byte region. Implements sym.MemoryReader.
type memBuffer struct {
	base uint64
	data []byte
}

func (m *memBuffer) ReadMemory(addr uint64, n int) ([]byte, error) {
	out := make([]byte, n)
	copy(out, m.data[addr-m.base:])
	return out, nil
}

func TestExprValue(t *testing.T) {
	if v := sym.ExprValue(sym.NewConstantExpr(sym.INT, -42)); v != -42 {
		t.Fatalf("unexpected value: %d", v)
	}
	if v := sym.ExprValue(sym.NewBasicExpr(sym.CHAR, 7, 3)); v != 7 {
		t.Fatalf("unexpected value: %d", v)
	}
}

func TestExprSize(t *testing.T) {
	t.Run("FromType", func(t *testing.T) {
		if sz := sym.ExprSize(sym.NewConstantExpr(sym.SHORT, 0)); sz != 2 {
			t.Fatalf("unexpected size: %d", sz)
		}
	})
	t.Run("Sized", func(t *testing.T) {
		if sz := sym.ExprSize(sym.NewConstantExprSized(3, 0)); sz != 3 {
			t.Fatalf("unexpected size: %d", sz)
		}
	})
	t.Run("ZeroSize", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		sym.NewConstantExprSized(0, 1)
	})
}

func TestNewExpr_ZeroSizeType(t *testing.T) {
	mem := &memBuffer{base: 0, data: []byte{1}}
	one := sym.NewConstantExpr(sym.INT, 1)

	for _, tt := range []struct {
		name string
		fn   func()
	}{
		{"Basic", func() { sym.NewBasicExpr(sym.STRUCT, 0, 1) }},
		{"Unary", func() { sym.NewUnaryExpr(sym.STRUCT, 0, sym.NEG, one) }},
		{"Binary", func() { sym.NewBinaryExpr(sym.STRUCT, 0, sym.ADD, one, one) }},
		{"Compare", func() { sym.NewCompareExpr(sym.STRUCT, 0, sym.EQ, one, one) }},
		{"Deref", func() { sym.NewConstDerefExpr(sym.STRUCT, 0, sym.NewObject(0, 1), 0, mem) }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestNewBinaryExprConst(t *testing.T) {
	e := sym.NewBinaryExprConst(sym.INT, 24, sym.MUL, sym.NewBasicExpr(sym.INT, 3, 1), 8)
	rhs, ok := e.RHS.(*sym.ConstantExpr)
	if !ok {
		t.Fatalf("unexpected rhs type: %T", e.RHS)
	} else if rhs.Value != 8 || rhs.Size != 4 {
		t.Fatalf("unexpected rhs: %s (%d bytes)", rhs, rhs.Size)
	}
}

func TestNewDerefExpr(t *testing.T) {
	mem := &memBuffer{base: 0x1000, data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}

	t.Run("ExprAddr", func(t *testing.T) {
		obj := sym.NewObject(0x1000, 4)
		addr := sym.NewBasicExpr(sym.ULONG, 0x1000, 9)
		e, err := sym.NewDerefExpr(sym.INT, 1, obj, addr, mem)
		if err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(e.Snapshot, []byte{0xDE, 0xAD, 0xBE, 0xEF}); diff != "" {
			t.Fatal(diff)
		}

		// The descriptor must be an independent copy.
		obj.Start = 0
		if e.Object.Start != 0x1000 {
			t.Fatalf("object descriptor not copied: %s", e.Object)
		}
	})

	t.Run("ConstAddr", func(t *testing.T) {
		e, err := sym.NewConstDerefExpr(sym.SHORT, 1, sym.NewObject(0x1002, 2), 0x1002, mem)
		if err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(e.Snapshot, []byte{0xBE, 0xEF}); diff != "" {
			t.Fatal(diff)
		}
		addr, ok := e.Addr.(*sym.ConstantExpr)
		if !ok {
			t.Fatalf("unexpected addr type: %T", e.Addr)
		} else if addr.Value != 0x1002 || addr.Size != 8 {
			t.Fatalf("unexpected addr: %s (%d bytes)", addr, addr.Size)
		}
	})
}

func TestAppendVars(t *testing.T) {
	e := sym.NewBinaryExpr(sym.INT, 0, sym.ADD,
		sym.NewBasicExpr(sym.INT, 1, 1),
		sym.NewUnaryExpr(sym.INT, -2, sym.NEG, sym.NewBasicExpr(sym.INT, 2, 2)),
	)
	vars := make(map[sym.Var]struct{})
	sym.AppendVars(e, vars)
	if diff := cmp.Diff(vars, map[sym.Var]struct{}{1: {}, 2: {}}); diff != "" {
		t.Fatal(diff)
	}

	t.Run("Constant", func(t *testing.T) {
		vars := make(map[sym.Var]struct{})
		sym.AppendVars(sym.NewConstantExpr(sym.INT, 5), vars)
		if len(vars) != 0 {
			t.Fatalf("unexpected vars: %v", vars)
		}
	})
}

func TestDependsOn(t *testing.T) {
	e := sym.NewCompareExpr(sym.INT, 1, sym.LT,
		sym.NewBasicExpr(sym.INT, 1, 1),
		sym.NewConstantExpr(sym.INT, 10),
	)
	if !sym.DependsOn(e, map[sym.Var]sym.Type{1: sym.INT}) {
		t.Fatal("expected true")
	} else if sym.DependsOn(e, map[sym.Var]sym.Type{2: sym.INT}) {
		t.Fatal("expected false")
	}
}

func TestIsConcrete(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		if !sym.IsConcrete(sym.NewConstantExpr(sym.INT, 5)) {
			t.Fatal("expected true")
		}
	})
	t.Run("Basic", func(t *testing.T) {
		if sym.IsConcrete(sym.NewBasicExpr(sym.INT, 5, 1)) {
			t.Fatal("expected false")
		}
	})
	t.Run("ConcreteSubtree", func(t *testing.T) {
		e := sym.NewUnaryExpr(sym.INT, -5, sym.NEG, sym.NewConstantExpr(sym.INT, 5))
		if !sym.IsConcrete(e) {
			t.Fatal("expected true")
		}
	})
	t.Run("SymbolicSubtree", func(t *testing.T) {
		e := sym.NewBinaryExpr(sym.INT, 6, sym.ADD,
			sym.NewConstantExpr(sym.INT, 5),
			sym.NewBasicExpr(sym.INT, 1, 1),
		)
		if sym.IsConcrete(e) {
			t.Fatal("expected false")
		}
	})
	t.Run("Deref", func(t *testing.T) {
		mem := &memBuffer{base: 0, data: []byte{1}}
		e, err := sym.NewConstDerefExpr(sym.CHAR, 1, sym.NewObject(0, 1), 0, mem)
		if err != nil {
			t.Fatal(err)
		} else if sym.IsConcrete(e) {
			t.Fatal("expected false")
		}
	})
}

func TestCloneExpr(t *testing.T) {
	e := sym.NewBinaryExpr(sym.INT, 3, sym.ADD,
		sym.NewBasicExpr(sym.INT, 1, 1),
		sym.NewConstantExpr(sym.INT, 2),
	)
	other := sym.CloneExpr(e).(*sym.BinaryExpr)
	if !sym.ExprEqual(e, other) {
		t.Fatalf("clone not equal: %s != %s", e, other)
	}

	// Mutating the clone's child must not affect the source.
	other.LHS.(*sym.BasicExpr).Var = 9
	if e.LHS.(*sym.BasicExpr).Var != 1 {
		t.Fatal("clone shares children with source")
	}

	t.Run("Deref", func(t *testing.T) {
		mem := &memBuffer{base: 0, data: []byte{1, 2}}
		e, err := sym.NewConstDerefExpr(sym.SHORT, 0x0201, sym.NewObject(0, 2), 0, mem)
		if err != nil {
			t.Fatal(err)
		}
		other := sym.CloneExpr(e).(*sym.DerefExpr)
		other.Snapshot[0] = 0xFF
		if e.Snapshot[0] != 1 {
			t.Fatal("clone shares snapshot with source")
		}
	})
}

func TestExprEqual(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		if !sym.ExprEqual(sym.NewConstantExprSized(4, 7), sym.NewConstantExprSized(4, 7)) {
			t.Fatal("expected true")
		}
	})
	t.Run("ConstantSizeMismatch", func(t *testing.T) {
		if sym.ExprEqual(sym.NewConstantExprSized(4, 7), sym.NewConstantExprSized(8, 7)) {
			t.Fatal("expected false")
		}
	})
	t.Run("ConstantVsNonConstant", func(t *testing.T) {
		c := sym.NewConstantExprSized(4, 7)
		b := sym.NewBasicExpr(sym.INT, 7, 1)
		if sym.ExprEqual(c, b) {
			t.Fatal("expected false")
		} else if sym.ExprEqual(b, c) {
			t.Fatal("expected false (reversed)")
		}
	})
	t.Run("Composite", func(t *testing.T) {
		a := sym.NewBinaryExpr(sym.INT, 3, sym.ADD,
			sym.NewBasicExpr(sym.INT, 1, 1),
			sym.NewConstantExpr(sym.INT, 2),
		)
		if !sym.ExprEqual(a, sym.CloneExpr(a)) {
			t.Fatal("expected true")
		}
		other := sym.CloneExpr(a).(*sym.BinaryExpr)
		other.Op = sym.SUB
		if sym.ExprEqual(a, other) {
			t.Fatal("expected false")
		}
	})
}

func TestExpr_String(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		if s := sym.NewConstantExpr(sym.INT, -9).String(); s != "-9" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
	t.Run("Binary", func(t *testing.T) {
		e := sym.NewBinaryExpr(sym.INT, 3, sym.ADD,
			sym.NewBasicExpr(sym.INT, 1, 1),
			sym.NewConstantExpr(sym.INT, 2),
		)
		if s := e.String(); s != "(add x1 2)" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
	t.Run("Compare", func(t *testing.T) {
		e := sym.NewCompareExpr(sym.INT, 1, sym.SLT,
			sym.NewBasicExpr(sym.INT, 1, 1),
			sym.NewConstantExpr(sym.INT, 2),
		)
		if s := e.String(); s != "(slt x1 2)" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
	t.Run("Unary", func(t *testing.T) {
		e := sym.NewUnaryExpr(sym.INT, -1, sym.NEG, sym.NewBasicExpr(sym.INT, 1, 4))
		if s := e.String(); s != "(neg x4)" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
}
