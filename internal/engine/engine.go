// Package engine runs the assembly pipeline: index sets → variable
// declaration → constraint generators → objective. Scenario composition is
// the choice of policy generators to run; the core generators always run.
package engine

import (
	"fmt"
	"log"
	"time"

	"transpath/internal/constraints"
	"transpath/internal/indexset"
	"transpath/internal/lp"
	"transpath/internal/metrics"
	"transpath/internal/model"
	"transpath/internal/objective"
	"transpath/internal/vars"
)

// Scenario selects what to build on top of the core model.
type Scenario struct {
	Name string `yaml:"name"`

	// IntegerFleet declares purchases as integer variables (MIP).
	IntegerFleet bool `yaml:"integer_fleet"`

	// DisabledPolicies names policy generators to skip. Unknown names are
	// rejected so a typo cannot silently re-enable a policy.
	DisabledPolicies []string `yaml:"disabled_policies"`
}

// Result is the assembled model plus everything needed to interpret a
// solution.
type Result struct {
	Model *lp.Model
	Vars  *vars.Registry
	Sets  *indexset.Sets
	Stats lp.Stats

	// ActivePolicies lists the policy generators that actually emitted
	// rows; the solve boundary echoes them on infeasibility.
	ActivePolicies []string
}

// ratio of largest to smallest absolute coefficient above which the build
// log flags conditioning trouble.
const coeffSpreadWarn = 1e9

// Assemble builds the full model for one dataset and scenario. Construction
// errors (data integrity, index domain) abort immediately; no partial model
// is returned.
func Assemble(ds *model.Dataset, sc Scenario) (*Result, error) {
	start := time.Now()

	disabled := map[string]bool{}
	known := map[string]bool{}
	for _, g := range constraints.Policy() {
		known[g.Name] = true
	}
	for _, name := range sc.DisabledPolicies {
		if !known[name] {
			return nil, fmt.Errorf("scenario %q disables unknown policy generator %q", sc.Name, name)
		}
		disabled[name] = true
	}

	sets := indexset.Build(ds)
	m := lp.New()
	ctx := &constraints.Context{
		Data:         ds,
		Sets:         sets,
		Vars:         vars.NewRegistry(m),
		M:            m,
		IntegerFleet: sc.IntegerFleet,
	}
	constraints.DeclareVariables(ctx)
	log.Printf("engine: declared %d variables over %d trips, %d year-gen pairs", m.NumVars(), len(sets.Trips), len(sets.YearGens))

	res := &Result{Model: m, Vars: ctx.Vars, Sets: sets}

	for _, g := range constraints.Core() {
		before := m.NumRows()
		if err := g.Apply(ctx); err != nil {
			return nil, fmt.Errorf("generator %s: %w", g.Name, err)
		}
		metrics.GeneratorRows.WithLabelValues(g.Name).Set(float64(m.NumRows() - before))
	}
	for _, g := range constraints.Policy() {
		if disabled[g.Name] {
			log.Printf("engine: policy generator %s disabled by scenario %q", g.Name, sc.Name)
			continue
		}
		before := m.NumRows()
		if err := g.Apply(ctx); err != nil {
			return nil, fmt.Errorf("generator %s: %w", g.Name, err)
		}
		emitted := m.NumRows() - before
		metrics.GeneratorRows.WithLabelValues(g.Name).Set(float64(emitted))
		if emitted > 0 {
			res.ActivePolicies = append(res.ActivePolicies, g.Name)
		}
	}

	if err := objective.Assemble(ctx); err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}

	res.Stats = m.Stats()
	metrics.ModelRows.Set(float64(res.Stats.Rows))
	metrics.ModelVars.Set(float64(res.Stats.Vars))
	metrics.ModelNonzeros.Set(float64(res.Stats.Nonzeros))
	metrics.CoeffRange.WithLabelValues("min").Set(res.Stats.MinAbsCoeff)
	metrics.CoeffRange.WithLabelValues("max").Set(res.Stats.MaxAbsCoeff)
	metrics.BuildDuration.Observe(time.Since(start).Seconds())

	log.Printf("engine: assembled %s in %s (policies: %v)", res.Stats, time.Since(start).Round(time.Millisecond), res.ActivePolicies)
	if res.Stats.MinAbsCoeff > 0 && res.Stats.MaxAbsCoeff/res.Stats.MinAbsCoeff > coeffSpreadWarn {
		log.Printf("engine: coefficient spread %.3g exceeds %.0g; check input units", res.Stats.MaxAbsCoeff/res.Stats.MinAbsCoeff, float64(coeffSpreadWarn))
	}
	return res, nil
}
