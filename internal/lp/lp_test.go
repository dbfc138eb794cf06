package lp

import (
	"math"
	"testing"
)

func TestExprDropsZeroCoeffs(t *testing.T) {
	var e Expr
	e.Add(0, 0)
	e.Add(1, 2.5)
	if len(e.Terms) != 1 || e.Terms[0].Var != 1 {
		t.Fatalf("expected single term on var 1, got %+v", e.Terms)
	}
}

func TestToHighsSensesAndMerging(t *testing.T) {
	m := New()
	x := m.AddVar("x", 0, 10)
	y := m.AddIntVar("y", 0, 5)

	var e Expr
	e.Add(x, 1)
	e.Add(x, 2) // duplicate term, must be merged to 3
	e.Add(y, -1)
	m.AddConstr("test_le", e, LE, 4)

	var eq Expr
	eq.Add(y, 1)
	m.AddConstr("test_eq", eq, EQ, 2)

	var obj Expr
	obj.Add(x, 1.5)
	m.Minimize(obj)

	hm := m.ToHighs()
	if got := len(hm.RowLower); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	if !math.IsInf(hm.RowLower[0], -1) || hm.RowUpper[0] != 4 {
		t.Fatalf("LE row bounds = [%v,%v]", hm.RowLower[0], hm.RowUpper[0])
	}
	if hm.RowLower[1] != 2 || hm.RowUpper[1] != 2 {
		t.Fatalf("EQ row bounds = [%v,%v]", hm.RowLower[1], hm.RowUpper[1])
	}
	for _, nz := range hm.ConstMatrix {
		if nz.Row == 0 && nz.Col == int(x) && nz.Val != 3 {
			t.Fatalf("merged coefficient = %v, want 3", nz.Val)
		}
	}
	if hm.ColCosts[x] != 1.5 || hm.ColCosts[y] != 0 {
		t.Fatalf("objective costs = %v", hm.ColCosts)
	}
	if len(hm.VarTypes) != 2 {
		t.Fatalf("expected var types for mixed-integer model")
	}
}

func TestStats(t *testing.T) {
	m := New()
	x := m.AddVar("x", 0, 1)
	var e Expr
	e.Add(x, 0.5)
	m.AddConstr("r", e, GE, 0)
	s := m.Stats()
	if s.Vars != 1 || s.Rows != 1 || s.Nonzeros != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if s.MinAbsCoeff != 0.5 || s.MaxAbsCoeff != 0.5 {
		t.Fatalf("coeff range = [%v,%v]", s.MinAbsCoeff, s.MaxAbsCoeff)
	}
}
