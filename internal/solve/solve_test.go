package solve

import (
	"math"
	"testing"

	"transpath/internal/lp"
)

// Solves a two-variable LP with a known corner optimum end to end through
// the HiGHS binding: minimize x + 2y subject to x + y >= 10 and x <= 6.
func TestRunSolvesSmallLP(t *testing.T) {
	m := lp.New()
	x := m.AddVar("x", 0, 6)
	y := m.AddVar("y", 0, math.Inf(1))

	var cover lp.Expr
	cover.Add(x, 1)
	cover.Add(y, 1)
	m.AddConstr("cover", cover, lp.GE, 10)

	var obj lp.Expr
	obj.Add(x, 1)
	obj.Add(y, 2)
	m.Minimize(obj)

	res, err := Run(m, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != "optimal" {
		t.Fatalf("status = %q, want optimal", res.Status)
	}
	if got, want := res.Objective, 14.0; math.Abs(got-want) > 1e-6 {
		t.Fatalf("objective = %v, want %v", got, want)
	}
	if got := res.Value(x); math.Abs(got-6) > 1e-6 {
		t.Fatalf("x = %v, want 6", got)
	}
	if got := res.Value(y); math.Abs(got-4) > 1e-6 {
		t.Fatalf("y = %v, want 4", got)
	}
}

// A fractional LP optimum must round up once the variable is integer.
func TestRunRespectsIntegrality(t *testing.T) {
	m := lp.New()
	n := m.AddIntVar("n", 0, 100)

	var need lp.Expr
	need.Add(n, 4)
	m.AddConstr("need", need, lp.GE, 10)

	var obj lp.Expr
	obj.Add(n, 1)
	m.Minimize(obj)

	res, err := Run(m, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := res.Value(n); math.Abs(got-3) > 1e-6 {
		t.Fatalf("n = %v, want 3", got)
	}
}

func TestRunReportsInfeasible(t *testing.T) {
	m := lp.New()
	x := m.AddVar("x", 0, 1)

	var e lp.Expr
	e.Add(x, 1)
	m.AddConstr("impossible", e, lp.GE, 5)

	var obj lp.Expr
	obj.Add(x, 1)
	m.Minimize(obj)

	if _, err := Run(m, Options{}); err != ErrInfeasible {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}
}
