// Package solve is the external solver boundary. It translates the
// assembled model to HiGHS, runs it, and maps the outcome onto the error
// taxonomy: infeasibility is a reported outcome, never a software error,
// and the core never relaxes constraints or retries on its own.
package solve

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bartolsthoorn/gohighs/highs"

	"transpath/internal/lp"
	"transpath/internal/metrics"
)

// ErrInfeasible is returned when the solver proves no feasible solution
// exists. Callers surface it to the user together with the active policy
// generators, since policy stacking is the usual cause.
var ErrInfeasible = errors.New("model infeasible")

// ErrUnbounded is returned when the objective is unbounded, which always
// indicates a missing constraint rather than a policy conflict.
var ErrUnbounded = errors.New("model unbounded")

// NumericalWarning reports a successful solve with conditioning trouble.
// Surfaced on the result, not returned as an error.
type NumericalWarning struct {
	Detail string
}

// Options configures one solve.
type Options struct {
	TimeLimit time.Duration
	MIPRelGap float64
	Threads   int
	Output    bool
}

// Result holds the solved values, addressable by the same lp.VarID the
// registry returned at declaration.
type Result struct {
	Objective float64
	Values    []float64
	Status    string
	Warning   *NumericalWarning
}

// Value returns the solved value of one variable.
func (r *Result) Value(v lp.VarID) float64 { return r.Values[v] }

// Run solves the model. A nil error with Status "optimal" (or "time_limit"
// with an incumbent) means Values is fully populated.
func Run(m *lp.Model, opts Options) (*Result, error) {
	start := time.Now()
	hm := m.ToHighs()

	solveOpts := []highs.SolveOption{highs.WithOutput(opts.Output)}
	if opts.TimeLimit > 0 {
		solveOpts = append(solveOpts, highs.WithTimeLimit(opts.TimeLimit.Seconds()))
	}
	if opts.MIPRelGap > 0 {
		solveOpts = append(solveOpts, highs.WithMIPRelGap(opts.MIPRelGap))
	}
	if opts.Threads > 0 {
		solveOpts = append(solveOpts, highs.WithThreads(opts.Threads))
	}

	sol, err := hm.Solve(solveOpts...)
	elapsed := time.Since(start)
	if err != nil {
		metrics.SolveDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		return nil, fmt.Errorf("solver: %w", err)
	}

	status := statusName(sol.Status)
	metrics.SolveDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	log.Printf("solve: status=%s objective=%.6g in %s", status, sol.Objective, elapsed.Round(time.Millisecond))

	switch sol.Status {
	case highs.ModelStatusInfeasible:
		return nil, ErrInfeasible
	case highs.ModelStatusUnbounded:
		return nil, ErrUnbounded
	}

	res := &Result{
		Objective: sol.Objective,
		Values:    sol.ColValues,
		Status:    status,
	}
	if len(res.Values) < m.NumVars() {
		return nil, fmt.Errorf("solver returned %d values for %d variables", len(res.Values), m.NumVars())
	}

	// The solver can succeed on a badly scaled matrix; echo the spread so
	// the unit discipline at ingestion can be root-caused.
	stats := m.Stats()
	if stats.MinAbsCoeff > 0 && stats.MaxAbsCoeff/stats.MinAbsCoeff > 1e9 {
		res.Warning = &NumericalWarning{
			Detail: fmt.Sprintf("coefficient range [%.3g, %.3g] spans %.1e", stats.MinAbsCoeff, stats.MaxAbsCoeff, stats.MaxAbsCoeff/stats.MinAbsCoeff),
		}
		log.Printf("solve: numerical warning: %s", res.Warning.Detail)
	}
	return res, nil
}

func statusName(s highs.ModelStatus) string {
	switch s {
	case highs.ModelStatusOptimal:
		return "optimal"
	case highs.ModelStatusInfeasible:
		return "infeasible"
	case highs.ModelStatusUnbounded:
		return "unbounded"
	case highs.ModelStatusTimeLimit:
		return "time_limit"
	default:
		return fmt.Sprintf("status_%d", int(s))
	}
}
