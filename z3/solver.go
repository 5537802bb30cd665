package z3

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/concolic/sym"
	"github.com/concolic/sym/log"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
*/
import "C"

// Solver checks the satisfiability of collected constraints using an
// embedded Z3 solver and, when satisfiable, produces a concrete assignment
// for every symbolic variable the constraints mention.
type Solver struct {
	ctx   *Context
	stats Stats
}

// Stats holds counters for solver usage.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}

// NewSolver returns a new instance of Solver using the given byte order.
func NewSolver(order sym.ByteOrder) *Solver {
	return &Solver{
		ctx: NewContext(order),
	}
}

// Close deletes the underlying Z3 context.
func (s *Solver) Close() error {
	return s.ctx.Close()
}

// Context returns the lowering context backing the solver.
func (s *Solver) Context() *Context {
	return s.ctx
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	return s.stats
}

// Solve reports whether the conjunction of constraints is satisfiable and,
// if so, returns a model value for each variable the constraints mention.
func (s *Solver) Solve(constraints []sym.Expr) (satisfiable bool, values map[sym.Var]int64, err error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()

	log.Debug.Printf("z3: solving %d constraints", len(constraints))

	solver := C.Z3_mk_solver(s.ctx.raw)
	if err := s.ctx.err("Z3_mk_solver"); err != nil {
		return false, nil, err
	}
	C.Z3_solver_inc_ref(s.ctx.raw, solver)
	defer C.Z3_solver_dec_ref(s.ctx.raw, solver)

	for _, constraint := range constraints {
		ast, err := s.ctx.toBoolAST(constraint)
		if err != nil {
			return false, nil, errors.Wrapf(err, "lower constraint %s", constraint)
		}
		C.Z3_solver_assert(s.ctx.raw, solver, ast)
		if err := s.ctx.err("Z3_solver_assert"); err != nil {
			return false, nil, err
		}
	}

	ret := C.Z3_solver_check(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return false, nil, err
	} else if ret == C.Z3_L_FALSE {
		log.Debug.Printf("z3: unsatisfiable")
		return false, nil, nil
	} else if ret == C.Z3_L_UNDEF {
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, solver))
		switch {
		case strings.Contains(reason, "timeout"):
			return false, nil, sym.ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			return false, nil, sym.ErrSolverCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			return false, nil, sym.ErrSolverResourceLimit
		case strings.Contains(reason, "unknown"):
			return false, nil, sym.ErrSolverUnknown
		default:
			return false, nil, errors.Errorf("z3: %s", reason)
		}
	} else if len(s.ctx.vars) == 0 {
		return true, nil, nil // no symbolics, ignore model
	}

	model := C.Z3_solver_get_model(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return true, nil, err
	}
	C.Z3_model_inc_ref(s.ctx.raw, model)
	defer C.Z3_model_dec_ref(s.ctx.raw, model)

	values, err = s.ctx.eval(model)
	if err != nil {
		return true, nil, err
	}
	log.Debug.Printf("z3: satisfiable with %d model values", len(values))
	return true, values, nil
}

// eval evaluates every known variable against the model.
func (ctx *Context) eval(model C.Z3_model) (map[sym.Var]int64, error) {
	vars := ctx.Vars()
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })

	values := make(map[sym.Var]int64, len(vars))
	for _, v := range vars {
		d := ctx.vars[v]

		var evaluated C.Z3_ast
		if ok := bool(C.Z3_model_eval(ctx.raw, model, d.ast, C.bool(true), &evaluated)); !ok {
			return nil, errors.Errorf("z3: cannot evaluate x%d against model", v)
		}

		var num C.uint64_t
		if ok := bool(C.Z3_get_numeral_uint64(ctx.raw, evaluated, &num)); !ok {
			return nil, errors.Errorf("z3: no numeral representation for x%d in model", v)
		}
		values[v] = int64(num)
	}
	return values, nil
}
