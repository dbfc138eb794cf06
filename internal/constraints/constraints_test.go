package constraints

import (
	"strings"
	"testing"

	"transpath/internal/indexset"
	"transpath/internal/lp"
	"transpath/internal/model"
	"transpath/internal/model/modeltest"
	"transpath/internal/vars"
)

func buildCtx(t *testing.T, cfg modeltest.Config) *Context {
	t.Helper()
	ds := modeltest.Dataset(t, cfg)
	m := lp.New()
	ctx := &Context{
		Data: ds,
		Sets: indexset.Build(ds),
		Vars: vars.NewRegistry(m),
		M:    m,
	}
	DeclareVariables(ctx)
	return ctx
}

func findRow(m *lp.Model, label string) (lp.Expr, lp.Sense, float64, bool) {
	for i := 0; i < m.NumRows(); i++ {
		l, e, s, rhs := m.Row(i)
		if l == label {
			return e, s, rhs, true
		}
	}
	return lp.Expr{}, 0, 0, false
}

func countRows(m *lp.Model, prefix string) int {
	n := 0
	for i := 0; i < m.NumRows(); i++ {
		if strings.HasPrefix(m.RowLabel(i), prefix) {
			n++
		}
	}
	return n
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

func TestDemandCoverageRows(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{Demand: 100, Horizon: 3})
	if err := DemandCoverage(ctx); err != nil {
		t.Fatalf("demand coverage: %v", err)
	}
	if got := countRows(ctx.M, "demand_coverage"); got != 3 {
		t.Fatalf("rows = %d, want one per year", got)
	}
	e, sense, rhs, ok := findRow(ctx.M, "demand_coverage[y=2025 r=1]")
	if !ok {
		t.Fatalf("first-year row missing")
	}
	if sense != lp.EQ || rhs != 100 {
		t.Fatalf("sense=%v rhs=%v, want EQ 100", sense, rhs)
	}
	// 2025 with pre-horizon 2 and lifetime 3: gens 2023, 2024, 2025.
	if len(e.Terms) != 3 {
		t.Fatalf("terms = %d, want one per operable vintage", len(e.Terms))
	}
	for _, term := range e.Terms {
		if term.Coeff != 1 {
			t.Fatalf("flow coefficient = %v, want 1", term.Coeff)
		}
	}
}

func TestRelaxedDemandUsesGE(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{Params: func(p *model.Params) { p.RelaxedDemand = true }})
	if err := DemandCoverage(ctx); err != nil {
		t.Fatalf("demand coverage: %v", err)
	}
	_, sense, _, ok := findRow(ctx.M, "demand_coverage[y=2025 r=1]")
	if !ok || sense != lp.GE {
		t.Fatalf("relaxed demand row sense = %v, want GE", sense)
	}
}

func TestVehicleSizingCoefficient(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{PayloadT: 10, AnnualRange: 1e5, EdgeKm: 50})
	if err := VehicleSizing(ctx); err != nil {
		t.Fatalf("vehicle sizing: %v", err)
	}
	e, sense, rhs, ok := findRow(ctx.M, "vehicle_sizing[y=2025 r=1 v=7 g=2025]")
	if !ok {
		t.Fatalf("sizing row missing")
	}
	if sense != lp.GE || rhs != 0 {
		t.Fatalf("sense=%v rhs=%v, want GE 0", sense, rhs)
	}
	h, err := ctx.Vars.Stock(vars.StockKey{Year: 2025, Odpair: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	f, err := ctx.Vars.Flow(vars.FlowKey{Year: 2025, Odpair: 1, Path: 1, Mode: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if got := coeffOf(e, h); got != 1 {
		t.Fatalf("stock coefficient = %v, want 1", got)
	}
	// One vehicle moves payload·range = 1e6 unit-km/year; the 50 km path
	// therefore costs 50/1e6 vehicles per unit of flow.
	if got, want := coeffOf(e, f), -50.0/1e6; got != want {
		t.Fatalf("flow coefficient = %v, want %v", got, want)
	}
}

func TestAgingStateMachineLifetime3(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{Lifetime: 3, Horizon: 6, PreHorizon: 2})
	if err := VehicleAging(ctx); err != nil {
		t.Fatalf("aging: %v", err)
	}
	g := 2025

	// Fleet exists for ages 0..2, never at or past the lifetime boundary.
	for _, c := range []struct {
		year int
		want bool
	}{{2025, true}, {2026, true}, {2027, true}, {2028, false}, {2029, false}} {
		got := ctx.Vars.HasStock(vars.StockKey{Year: c.year, Odpair: 1, TechVehicle: 7, Gen: g})
		if got != c.want {
			t.Errorf("h[%d,g=%d] declared = %v, want %v", c.year, g, got, c.want)
		}
	}

	if _, _, _, ok := findRow(ctx.M, "fleet_balance[y=2025 r=1 v=7 g=2025]"); !ok {
		t.Fatalf("purchase-year balance row missing")
	}
	if _, _, _, ok := findRow(ctx.M, "fleet_carryover[y=2026 r=1 v=7 g=2025]"); !ok {
		t.Fatalf("carryover row missing")
	}
	if _, _, _, ok := findRow(ctx.M, "forced_retirement[y=2028 r=1 v=7 g=2025]"); !ok {
		t.Fatalf("forced retirement row missing at age == lifetime")
	}
	if _, _, _, ok := findRow(ctx.M, "forced_retirement[y=2027 r=1 v=7 g=2025]"); ok {
		t.Fatalf("retirement forced before the lifetime boundary")
	}

	// The balance in the purchase year nets fleet against purchases only.
	e, _, rhs, _ := findRow(ctx.M, "fleet_balance[y=2025 r=1 v=7 g=2025]")
	if rhs != 0 || len(e.Terms) != 2 {
		t.Fatalf("purchase-year balance has %d terms rhs=%v, want 2 terms rhs=0", len(e.Terms), rhs)
	}
}

func TestFirstYearPinsInitialStock(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{
		Lifetime: 3, Horizon: 4, PreHorizon: 2,
		InitialStock: []model.InitialVehicleStock{
			{TechVehicleID: 7, Generation: 2023, Stock: 12},
		},
	})
	if err := VehicleAging(ctx); err != nil {
		t.Fatalf("aging: %v", err)
	}
	_, sense, rhs, ok := findRow(ctx.M, "initial_stock[r=1 v=7 g=2023]")
	if !ok {
		t.Fatalf("initial stock pin missing")
	}
	if sense != lp.EQ || rhs != 12 {
		t.Fatalf("pin = %v %v, want EQ 12", sense, rhs)
	}
	// Vintages without a snapshot entry are pinned to zero, not left free.
	_, _, rhs, ok = findRow(ctx.M, "initial_stock[r=1 v=7 g=2024]")
	if !ok || rhs != 0 {
		t.Fatalf("missing zero pin for snapshot-free vintage (ok=%v rhs=%v)", ok, rhs)
	}
	// Lifetime 3, generation 2023: forced retirement in 2026.
	if _, _, _, ok := findRow(ctx.M, "forced_retirement[y=2026 r=1 v=7 g=2023]"); !ok {
		t.Fatalf("initial stock never force-retired")
	}
}

func TestFullTurnoverWithLifetimeOne(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{Lifetime: 1, Horizon: 2, PreHorizon: 1})
	if err := VehicleAging(ctx); err != nil {
		t.Fatalf("aging: %v", err)
	}
	// Lifetime 1: fleet lives only in its purchase year, and the following
	// year carries it over just to retire it in full.
	if !ctx.Vars.HasStock(vars.StockKey{Year: 2025, Odpair: 1, TechVehicle: 7, Gen: 2025}) {
		t.Fatalf("purchase-year fleet missing")
	}
	if ctx.Vars.HasStock(vars.StockKey{Year: 2026, Odpair: 1, TechVehicle: 7, Gen: 2025}) {
		t.Fatalf("fleet survives past lifetime 1")
	}
	e, _, _, ok := findRow(ctx.M, "forced_retirement[y=2026 r=1 v=7 g=2025]")
	if !ok {
		t.Fatalf("full turnover retirement row missing")
	}
	he, err := ctx.Vars.StockExist(vars.StockKey{Year: 2026, Odpair: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	hm, err := ctx.Vars.StockMinus(vars.StockKey{Year: 2026, Odpair: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if coeffOf(e, he) != 1 || coeffOf(e, hm) != -1 {
		t.Fatalf("retirement row is not h_exist == h_minus")
	}
}

func TestBudgetPenaltyStructure(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{Demand: 100, Horizon: 2})
	if err := PurchaseBudget(ctx); err != nil {
		t.Fatalf("budget: %v", err)
	}
	e, sense, rhs, ok := findRow(ctx.M, "budget_upper[y=2026 r=1]")
	if !ok {
		t.Fatalf("budget upper row missing")
	}
	fs := ctx.Data.FinancialStatus(1)
	if sense != lp.LE || rhs != fs.PurchaseBudgetUB*200 {
		t.Fatalf("sense=%v rhs=%v, want LE against cumulative demand 200", sense, rhs)
	}
	bplus, err := ctx.Vars.BudgetPlus(vars.BudgetKey{Year: 2026, Odpair: 1})
	if err != nil {
		t.Fatal(err)
	}
	if coeffOf(e, bplus) != -1 {
		t.Fatalf("penalty slack missing from upper bound: soft constraint broken")
	}
	// Cumulative: the 2026 row carries both years' purchases.
	for _, y := range []int{2025, 2026} {
		hp, err := ctx.Vars.StockPlus(vars.StockKey{Year: y, Odpair: 1, TechVehicle: 7, Gen: y})
		if err != nil {
			t.Fatal(err)
		}
		if coeffOf(e, hp) == 0 {
			t.Fatalf("purchases of %d missing from cumulative spend", y)
		}
	}
}

func TestPathAccumulationRows(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{EdgeKm: 60, SpeedKmh: 60, Horizon: 1, PreHorizon: 0})
	if err := PathState(ctx); err != nil {
		t.Fatalf("path state: %v", err)
	}
	sk := vars.StateKey{Year: 2025, Odpair: 1, Path: 1, Pos: 0, TechVehicle: 7, Gen: 2025}

	if _, _, rhs, ok := findRow(ctx.M, "tt_origin"+sk.String()); !ok || rhs != 0 {
		t.Fatalf("origin travel time not pinned to zero")
	}
	if _, _, rhs, ok := findRow(ctx.M, "soc_origin"+sk.String()); !ok || rhs != 300 {
		t.Fatalf("origin soc not pinned to full battery (rhs=%v)", rhs)
	}

	// Every non-origin position gets exactly one tt and one soc equality.
	for pos := 1; pos <= 2; pos++ {
		sk.Pos = pos
		if _, sense, _, ok := findRow(ctx.M, "tt_step"+sk.String()); !ok || sense != lp.EQ {
			t.Fatalf("position %d travel time unconstrained", pos)
		}
		if _, sense, _, ok := findRow(ctx.M, "soc_step"+sk.String()); !ok || sense != lp.EQ {
			t.Fatalf("position %d soc unconstrained", pos)
		}
	}

	// 60 km at 60 km/h: one hour of driving arriving at the edge element.
	sk.Pos = 1
	_, _, rhs, _ := findRow(ctx.M, "tt_step"+sk.String())
	if rhs != 1 {
		t.Fatalf("segment time = %v h, want 1", rhs)
	}
	// Node arrival covers no distance.
	sk.Pos = 2
	_, _, rhs, _ = findRow(ctx.M, "tt_step"+sk.String())
	if rhs != 0 {
		t.Fatalf("node arrival time = %v h, want 0", rhs)
	}
}

func TestRestBreakRow(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{
		EdgeKm: 540, SpeedKmh: 60, Horizon: 1, PreHorizon: 0,
		Params: func(p *model.Params) {
			p.Break = model.BreakRule{MaxDriveH: 4.5, BreakH: 0.75}
		},
	})
	ds.BreakElements = map[int][]int{modeltest.PathID: {modeltest.ElemDest}}
	m := lp.New()
	ctx := &Context{Data: ds, Sets: indexset.Build(ds), Vars: vars.NewRegistry(m), M: m}
	DeclareVariables(ctx)

	if err := RestBreaks(ctx); err != nil {
		t.Fatalf("breaks: %v", err)
	}
	sk := vars.StateKey{Year: 2025, Odpair: 1, Path: 1, Pos: 2, TechVehicle: 7, Gen: 2025}
	_, sense, rhs, ok := findRow(ctx.M, "rest_break"+sk.String())
	if !ok {
		t.Fatalf("rest break row missing at designated element")
	}
	// 540 km at 60 km/h = 9 h of driving = two completed 4.5 h intervals.
	want := 9.0 + 2*0.75
	if sense != lp.GE || rhs != want {
		t.Fatalf("rest break bound = %v %v, want GE %v", sense, rhs, want)
	}
}

func TestShiftPairStructure(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{
		WithRail: true, Horizon: 3,
		Params: func(p *model.Params) { p.AlphaMode, p.BetaMode = 0.1, 0.2 },
	})
	if err := ModeShiftLimit(ctx); err != nil {
		t.Fatalf("mode shift: %v", err)
	}
	// Two modes, two transition years, a symmetric pair each.
	if got := countRows(ctx.M, "mode_shift"); got != 8 {
		t.Fatalf("shift rows = %d, want 8", got)
	}
	eUp, sense, rhs, ok := findRow(ctx.M, "mode_shift[y=2026 m=1]_up")
	if !ok || sense != lp.LE || rhs != 0 {
		t.Fatalf("up row malformed (ok=%v sense=%v rhs=%v)", ok, sense, rhs)
	}
	f2026, err := ctx.Vars.Flow(vars.FlowKey{Year: 2026, Odpair: 1, Path: 1, Mode: 1, TechVehicle: 7, Gen: 2026})
	if err != nil {
		t.Fatal(err)
	}
	if got := coeffOf(eUp, f2026); got != 1-0.1 {
		t.Fatalf("current-year coefficient = %v, want %v", got, 1-0.1)
	}
}

func TestShiftDisabledWithZeroCoefficients(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{})
	if err := ModeShiftLimit(ctx); err != nil {
		t.Fatalf("mode shift: %v", err)
	}
	if got := ctx.M.NumRows(); got != 0 {
		t.Fatalf("unconfigured shift limit emitted %d rows", got)
	}
}

func TestFuelingDemandCouplesEnergyToFlow(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{EdgeKm: 50, PayloadT: 10, Horizon: 1, PreHorizon: 0})
	if err := FuelingDemand(ctx); err != nil {
		t.Fatalf("fueling demand: %v", err)
	}
	e, sense, rhs, ok := findRow(ctx.M, "fueling_demand[y=2025 r=1 k=1 v=7]")
	if !ok || sense != lp.EQ || rhs != 0 {
		t.Fatalf("coupling row malformed")
	}
	f, err := ctx.Vars.Flow(vars.FlowKey{Year: 2025, Odpair: 1, Path: 1, Mode: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	// spec_cons 1.2 kWh/km · 50 km / 10 t payload = 6 kWh per demand unit.
	if got := coeffOf(e, f); got != -6 {
		t.Fatalf("flow coefficient = %v, want -6", got)
	}
	s, err := ctx.Vars.Energy(vars.EnergyKey{Year: 2025, Odpair: 1, Path: 1, Element: modeltest.ElemEdge, TechVehicle: 7})
	if err != nil {
		t.Fatal(err)
	}
	if coeffOf(e, s) != 1 {
		t.Fatalf("energy term missing")
	}
}

func TestFuelingInfrastructureCountsRevisitedElementOnce(t *testing.T) {
	// An out-and-back path touches its edge twice; the charger at that
	// element serves one energy variable, so the peak term must not double.
	ds := modeltest.Dataset(t, modeltest.Config{Horizon: 1, PreHorizon: 0})
	ds.Paths[0].Sequence = []int{modeltest.ElemOrigin, modeltest.ElemEdge, modeltest.ElemDest, modeltest.ElemEdge}
	if err := ds.Resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	m := lp.New()
	ctx := &Context{Data: ds, Sets: indexset.Build(ds), Vars: vars.NewRegistry(m), M: m}
	DeclareVariables(ctx)

	if err := FuelingInfrastructure(ctx); err != nil {
		t.Fatalf("fueling infrastructure: %v", err)
	}
	e, _, _, ok := findRow(ctx.M, "fueling_infr[y=2025 g=1 e=2]")
	if !ok {
		t.Fatalf("edge-element row missing")
	}
	s, err := ctx.Vars.Energy(vars.EnergyKey{Year: 2025, Odpair: 1, Path: 1, Element: modeltest.ElemEdge, TechVehicle: 7})
	if err != nil {
		t.Fatal(err)
	}
	want := 1.0 / model.HoursPerYear // gamma 1
	if got := coeffOf(e, s); got != want {
		t.Fatalf("peak coefficient = %v, want %v", got, want)
	}
}

func TestModeShareRow(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{WithRail: true, Horizon: 1, PreHorizon: 0})
	ctx.Data.ModeShares = []model.ModeShare{
		{ModeID: modeltest.RailModeID, Share: 0.3, Year: 2025, Dir: model.BoundMin},
	}
	if err := ModeShareTargets(ctx); err != nil {
		t.Fatalf("mode share: %v", err)
	}
	e, sense, rhs, ok := findRow(ctx.M, "mode_share[0][y=2025]")
	if !ok || sense != lp.GE || rhs != 0 {
		t.Fatalf("share row malformed (ok=%v sense=%v rhs=%v)", ok, sense, rhs)
	}
	rail, _ := ctx.Sets.PseudoVehicle(modeltest.RailModeID)
	fRail, err := ctx.Vars.Flow(vars.FlowKey{Year: 2025, Odpair: 1, Path: 1, Mode: modeltest.RailModeID, TechVehicle: rail, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	fRoad, err := ctx.Vars.Flow(vars.FlowKey{Year: 2025, Odpair: 1, Path: 1, Mode: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if got := coeffOf(e, fRail); got != 0.7 {
		t.Fatalf("selected coefficient = %v, want 0.7", got)
	}
	if got := coeffOf(e, fRoad); got != -0.3 {
		t.Fatalf("unselected coefficient = %v, want -0.3", got)
	}
}

func TestEmissionCapRow(t *testing.T) {
	ctx := buildCtx(t, modeltest.Config{Horizon: 1, PreHorizon: 0, EdgeKm: 50})
	ctx.Data.Fuels[0].EmissionFactor = 500 // gCO2/kWh
	ctx.Data.EmissionCapsTotal = []model.EmissionCapGlobal{{Year: 2025, CapT: 1000}}
	if err := EmissionCaps(ctx); err != nil {
		t.Fatalf("emission caps: %v", err)
	}
	e, sense, rhs, ok := findRow(ctx.M, "emission_cap_total[0 y=2025]")
	if !ok || sense != lp.LE || rhs != 1000 {
		t.Fatalf("cap row malformed")
	}
	f, err := ctx.Vars.Flow(vars.FlowKey{Year: 2025, Odpair: 1, Path: 1, Mode: 1, TechVehicle: 7, Gen: 2025})
	if err != nil {
		t.Fatal(err)
	}
	// 1.2 kWh/km · 50 km / 10 t · 500 g/kWh / 1e6 g/t = 0.003 t per unit.
	if got, want := coeffOf(e, f), 0.003; got < want-1e-12 || got > want+1e-12 {
		t.Fatalf("emission coefficient = %v, want %v", got, want)
	}
}
