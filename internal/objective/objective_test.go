package objective_test

import (
	"testing"

	"transpath/internal/constraints"
	"transpath/internal/indexset"
	"transpath/internal/lp"
	"transpath/internal/model"
	"transpath/internal/model/modeltest"
	"transpath/internal/objective"
	"transpath/internal/vars"
)

func assembled(t *testing.T, cfg modeltest.Config) *constraints.Context {
	t.Helper()
	ds := modeltest.Dataset(t, cfg)
	m := lp.New()
	ctx := &constraints.Context{
		Data: ds,
		Sets: indexset.Build(ds),
		Vars: vars.NewRegistry(m),
		M:    m,
	}
	constraints.DeclareVariables(ctx)
	if err := objective.Assemble(ctx); err != nil {
		t.Fatalf("assemble objective: %v", err)
	}
	return ctx
}

func coeffOf(e lp.Expr, v lp.VarID) float64 {
	c := 0.0
	for _, t := range e.Terms {
		if t.Var == v {
			c += t.Coeff
		}
	}
	return c
}

func TestCapitalCostNetsSubsidyAndDiscounts(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{
		Horizon: 3,
		Params:  func(p *model.Params) { p.DiscountRate = 0.05 },
	})
	ds.Subsidies = []model.VehicleSubsidy{
		{TechVehicleID: modeltest.TechVehicleID, Years: []int{2026}, Amount: 5000},
	}
	if err := ds.Resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	m := lp.New()
	ctx := &constraints.Context{Data: ds, Sets: indexset.Build(ds), Vars: vars.NewRegistry(m), M: m}
	constraints.DeclareVariables(ctx)
	if err := objective.Assemble(ctx); err != nil {
		t.Fatalf("assemble objective: %v", err)
	}
	obj := m.Objective()

	hp25, err := ctx.Vars.StockPlus(vars.StockKey{Year: 2025, Odpair: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if got := coeffOf(obj, hp25); got != 50000 {
		t.Fatalf("undiscounted base-year purchase = %v, want 50000", got)
	}
	hp26, err := ctx.Vars.StockPlus(vars.StockKey{Year: 2026, Odpair: 1, TechVehicle: 7, Gen: 2026})
	if err != nil {
		t.Fatal(err)
	}
	want := (50000.0 - 5000.0) / 1.05
	if got := coeffOf(obj, hp26); got < want-1e-6 || got > want+1e-6 {
		t.Fatalf("subsidized purchase = %v, want %v", got, want)
	}
}

func TestSalvageCreditsResidualValue(t *testing.T) {
	ctx := assembled(t, modeltest.Config{Lifetime: 3, Horizon: 4})
	obj := ctx.M.Objective()

	// Retiring the 2025 vintage at age 1 recovers two thirds of the 50000
	// capital cost (undiscounted at a zero discount rate).
	hm, err := ctx.Vars.StockMinus(vars.StockKey{Year: 2026, Odpair: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	want := -50000.0 * 2 / 3
	if got := coeffOf(obj, hm); got < want-1e-6 || got > want+1e-6 {
		t.Fatalf("age-1 retirement credit = %v, want %v", got, want)
	}

	// At the lifetime boundary the vehicle is fully written down.
	hm28, err := ctx.Vars.StockMinus(vars.StockKey{Year: 2028, Odpair: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if got := coeffOf(obj, hm28); got != 0 {
		t.Fatalf("forced retirement credited %v, want 0", got)
	}
}

func TestTravelTimePricedAtValueOfTime(t *testing.T) {
	ctx := assembled(t, modeltest.Config{Horizon: 1})
	obj := ctx.M.Objective()
	// Destination arrival time of the representative trip carries the full
	// value of time; VoT is 20 and the base year is undiscounted.
	tt, err := ctx.Vars.TravelTime(vars.StateKey{Year: 2025, Odpair: 1, Path: 1, Pos: 2, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if got := coeffOf(obj, tt); got != 20 {
		t.Fatalf("travel time price = %v, want 20", got)
	}
}

func TestLevelizedModePerUnitCost(t *testing.T) {
	ctx := assembled(t, modeltest.Config{WithRail: true, Horizon: 1, EdgeKm: 50, SpeedKmh: 60})
	obj := ctx.M.Objective()
	rail, ok := ctx.Sets.PseudoVehicle(modeltest.RailModeID)
	if !ok {
		t.Fatalf("no synthetic vehicle for the levelized mode")
	}
	f, err := ctx.Vars.Flow(vars.FlowKey{Year: 2025, Odpair: 1, Path: 1, Mode: modeltest.RailModeID, TechVehicle: rail, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	// cost_per_ukm 0.1 over 50 km, plus VoT 20 on in-vehicle (50/60 h) and
	// waiting (0.5 h) time.
	want := 0.1*50 + 20*(50.0/60.0+0.5)
	if got := coeffOf(obj, f); got != want {
		t.Fatalf("levelized per-unit cost = %v, want %v", got, want)
	}
}

func TestInfrastructureAdditionCarriesOMStream(t *testing.T) {
	ctx := assembled(t, modeltest.Config{Horizon: 3})
	obj := ctx.M.Objective()
	// Fueling capacity added in the base year: capex 100 €/kW plus 1 €/kW/y
	// O&M for the remaining 3 years, all undiscounted.
	q, err := ctx.Vars.FuelInfra(vars.FuelInfraKey{Year: 2025, Technology: modeltest.TechID, Element: modeltest.ElemEdge})
	if err != nil {
		t.Fatal(err)
	}
	if got := coeffOf(obj, q); got != 103 {
		t.Fatalf("fueling capacity price = %v, want 103", got)
	}
	// Added in the last year it accrues a single year of O&M.
	q27, err := ctx.Vars.FuelInfra(vars.FuelInfraKey{Year: 2027, Technology: modeltest.TechID, Element: modeltest.ElemEdge})
	if err != nil {
		t.Fatal(err)
	}
	if got := coeffOf(obj, q27); got != 101 {
		t.Fatalf("late capacity price = %v, want 101", got)
	}
}

func TestBudgetSlacksPricedAtPenalty(t *testing.T) {
	ctx := assembled(t, modeltest.Config{
		Horizon: 1,
		Params:  func(p *model.Params) { p.BudgetPenalty = 250 },
	})
	obj := ctx.M.Objective()
	bk := vars.BudgetKey{Year: 2025, Odpair: 1}
	bplus, err := ctx.Vars.BudgetPlus(bk)
	if err != nil {
		t.Fatal(err)
	}
	bminus, err := ctx.Vars.BudgetMinus(bk)
	if err != nil {
		t.Fatal(err)
	}
	if coeffOf(obj, bplus) != 250 || coeffOf(obj, bminus) != 250 {
		t.Fatalf("budget slacks priced at %v/%v, want 250 each",
			coeffOf(obj, bplus), coeffOf(obj, bminus))
	}
}
