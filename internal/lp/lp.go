// Package lp is a thin row-oriented builder for linear and mixed-integer
// programs. Generators append variables and labeled rows; the finished
// model translates to the HiGHS column/row form in one pass.
package lp

import (
	"fmt"
	"math"

	"github.com/bartolsthoorn/gohighs/highs"
)

// VarID indexes a declared variable. IDs are dense and allocation order is
// deterministic, so a model built twice from the same input is identical.
type VarID int

// Term is one coefficient on one variable.
type Term struct {
	Var   VarID
	Coeff float64
}

// Expr is a sparse linear expression. The zero value is usable.
type Expr struct {
	Terms []Term
}

func (e *Expr) Add(v VarID, c float64) {
	if c == 0 {
		return
	}
	e.Terms = append(e.Terms, Term{Var: v, Coeff: c})
}

// AddExpr appends every term of other, scaled.
func (e *Expr) AddExpr(other Expr, scale float64) {
	if scale == 0 {
		return
	}
	for _, t := range other.Terms {
		e.Terms = append(e.Terms, Term{Var: t.Var, Coeff: t.Coeff * scale})
	}
}

func (e Expr) Empty() bool { return len(e.Terms) == 0 }

// Sense of a constraint row.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

type variable struct {
	name    string
	lower   float64
	upper   float64
	integer bool
}

type row struct {
	label string
	expr  Expr
	sense Sense
	rhs   float64
}

// Model accumulates variables, rows and a minimization objective.
type Model struct {
	vars []variable
	rows []row
	obj  Expr
}

func New() *Model { return &Model{} }

// AddVar declares a continuous variable with the given bounds. Names exist
// for diagnostics only and need not be unique, though generators keep them
// unique in practice.
func (m *Model) AddVar(name string, lower, upper float64) VarID {
	m.vars = append(m.vars, variable{name: name, lower: lower, upper: upper})
	return VarID(len(m.vars) - 1)
}

// AddIntVar declares an integer variable.
func (m *Model) AddIntVar(name string, lower, upper float64) VarID {
	m.vars = append(m.vars, variable{name: name, lower: lower, upper: upper, integer: true})
	return VarID(len(m.vars) - 1)
}

// AddConstr appends one labeled row. The label names the generator and key
// that produced the row; it is what infeasibility diagnostics print.
func (m *Model) AddConstr(label string, expr Expr, sense Sense, rhs float64) {
	m.rows = append(m.rows, row{label: label, expr: expr, sense: sense, rhs: rhs})
}

// Minimize adds terms to the (single) objective. Repeated calls accumulate.
func (m *Model) Minimize(expr Expr) {
	m.obj.Terms = append(m.obj.Terms, expr.Terms...)
}

func (m *Model) NumVars() int           { return len(m.vars) }
func (m *Model) NumRows() int           { return len(m.rows) }
func (m *Model) VarName(v VarID) string { return m.vars[v].name }
func (m *Model) RowLabel(i int) string  { return m.rows[i].label }

// Row returns the i-th constraint for inspection. The expression shares
// backing storage with the model; callers must not modify it.
func (m *Model) Row(i int) (label string, expr Expr, sense Sense, rhs float64) {
	r := m.rows[i]
	return r.label, r.expr, r.sense, r.rhs
}

// Objective returns the accumulated objective expression.
func (m *Model) Objective() Expr { return m.obj }

// Stats summarizes the assembled matrix for logging and conditioning checks.
type Stats struct {
	Vars, IntVars, Rows, Nonzeros int
	MinAbsCoeff, MaxAbsCoeff      float64
}

func (m *Model) Stats() Stats {
	s := Stats{Vars: len(m.vars), Rows: len(m.rows), MinAbsCoeff: math.Inf(1)}
	for _, v := range m.vars {
		if v.integer {
			s.IntVars++
		}
	}
	scan := func(e Expr) {
		for _, t := range e.Terms {
			s.Nonzeros++
			a := math.Abs(t.Coeff)
			if a < s.MinAbsCoeff {
				s.MinAbsCoeff = a
			}
			if a > s.MaxAbsCoeff {
				s.MaxAbsCoeff = a
			}
		}
	}
	for _, r := range m.rows {
		scan(r.expr)
	}
	if s.Nonzeros == 0 {
		s.MinAbsCoeff = 0
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("vars=%d (int=%d) rows=%d nnz=%d coeff_range=[%.3g,%.3g]",
		s.Vars, s.IntVars, s.Rows, s.Nonzeros, s.MinAbsCoeff, s.MaxAbsCoeff)
}

// ToHighs translates to the solver's model form. Duplicate terms on the
// same (row, var) pair are summed here so generators may emit them freely.
func (m *Model) ToHighs() *highs.Model {
	hm := &highs.Model{
		ColCosts: make([]float64, len(m.vars)),
		ColLower: make([]float64, len(m.vars)),
		ColUpper: make([]float64, len(m.vars)),
	}
	anyInt := false
	for i, v := range m.vars {
		hm.ColLower[i] = v.lower
		hm.ColUpper[i] = v.upper
		if v.integer {
			anyInt = true
		}
	}
	if anyInt {
		hm.VarTypes = make([]highs.VariableType, len(m.vars))
		for i, v := range m.vars {
			if v.integer {
				hm.VarTypes[i] = highs.Integer
			} else {
				hm.VarTypes[i] = highs.Continuous
			}
		}
	}
	for _, t := range m.obj.Terms {
		hm.ColCosts[t.Var] += t.Coeff
	}

	hm.RowLower = make([]float64, len(m.rows))
	hm.RowUpper = make([]float64, len(m.rows))
	for i, r := range m.rows {
		switch r.sense {
		case LE:
			hm.RowLower[i] = math.Inf(-1)
			hm.RowUpper[i] = r.rhs
		case GE:
			hm.RowLower[i] = r.rhs
			hm.RowUpper[i] = math.Inf(1)
		case EQ:
			hm.RowLower[i] = r.rhs
			hm.RowUpper[i] = r.rhs
		}
		merged := map[VarID]float64{}
		for _, t := range r.expr.Terms {
			merged[t.Var] += t.Coeff
		}
		for v, c := range merged {
			if c != 0 {
				hm.ConstMatrix = append(hm.ConstMatrix, highs.Nonzero{Row: i, Col: int(v), Val: c})
			}
		}
	}
	return hm
}
