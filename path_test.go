package sym_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/concolic/sym"
)

func TestPath(t *testing.T) {
	p := sym.NewPath()
	p.DeclareVar(3, sym.CHAR)
	p.DeclareVar(1, sym.UINT)
	p.AddConstraint(sym.NewCompareExpr(sym.INT, 1, sym.NEQ,
		sym.NewBasicExpr(sym.UINT, 5, 1),
		sym.NewConstantExpr(sym.UINT, 0),
	))

	t.Run("VarType", func(t *testing.T) {
		if ty, ok := p.VarType(1); !ok || ty != sym.UINT {
			t.Fatalf("unexpected type: %s (%v)", ty, ok)
		}
		if _, ok := p.VarType(2); ok {
			t.Fatal("undeclared variable reported present")
		}
	})

	t.Run("Vars", func(t *testing.T) {
		if diff := cmp.Diff(p.Vars(), []sym.Var{1, 3}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("VarTypes", func(t *testing.T) {
		want := map[sym.Var]sym.Type{1: sym.UINT, 3: sym.CHAR}
		if diff := cmp.Diff(p.VarTypes(), want); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("DependsOn", func(t *testing.T) {
		if !p.DependsOn(sym.NewBasicExpr(sym.CHAR, 0, 3)) {
			t.Fatal("expected dependency")
		} else if p.DependsOn(sym.NewBasicExpr(sym.CHAR, 0, 9)) {
			t.Fatal("unexpected dependency")
		} else if p.DependsOn(sym.NewConstantExpr(sym.INT, 1)) {
			t.Fatal("constant reported dependent")
		}
	})

	t.Run("Clone", func(t *testing.T) {
		other := p.Clone()
		other.AddConstraint(sym.NewCompareExpr(sym.INT, 1, sym.EQ,
			sym.NewBasicExpr(sym.CHAR, 0, 3),
			sym.NewConstantExpr(sym.CHAR, 0),
		))
		other.DeclareVar(8, sym.SHORT)

		if len(p.Constraints()) != 1 {
			t.Fatalf("source constraints changed: %d", len(p.Constraints()))
		} else if len(other.Constraints()) != 2 {
			t.Fatalf("unexpected clone constraints: %d", len(other.Constraints()))
		}
		if _, ok := p.VarType(8); ok {
			t.Fatal("clone declaration leaked into source")
		}
		if _, ok := other.VarType(8); !ok {
			t.Fatal("clone declaration missing")
		}
	})
}
