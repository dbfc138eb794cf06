// Package modeltest builds small synthetic datasets for tests: one demand
// corridor (node, edge, node), one fleet-sized road vehicle, optionally a
// levelized rail mode. All per-year and per-generation arrays are sized to
// the configured horizon so the dataset resolves cleanly.
package modeltest

import (
	"testing"

	"transpath/internal/model"
)

// Config tweaks the corridor. Zero values fall back to defaults.
type Config struct {
	FirstYear  int
	Horizon    int
	PreHorizon int

	Lifetime    int     // vehicle lifetime in years
	Demand      float64 // units per year on the single odpair
	PayloadT    float64
	AnnualRange float64
	SpeedKmh    float64
	EdgeKm      float64

	WithRail     bool // add a levelized mode competing on the corridor
	InitialStock []model.InitialVehicleStock

	Params func(*model.Params) // final override hook
}

const (
	ElemOrigin = 1
	ElemEdge   = 2
	ElemDest   = 3

	PathID        = 1
	ProductID     = 1
	RoadModeID    = 1
	RailModeID    = 2
	VehicleTypeID = 1
	FuelID        = 1
	TechID        = 1
	TechVehicleID = 7
	FinStatusID   = 1
	RegionTypeID  = 1
	OdpairID      = 1
)

func (c *Config) fillDefaults() {
	if c.FirstYear == 0 {
		c.FirstYear = 2025
	}
	if c.Horizon == 0 {
		c.Horizon = 3
	}
	if c.PreHorizon == 0 {
		c.PreHorizon = 2
	}
	if c.Lifetime == 0 {
		c.Lifetime = 3
	}
	if c.Demand == 0 {
		c.Demand = 100
	}
	if c.PayloadT == 0 {
		c.PayloadT = 10
	}
	if c.AnnualRange == 0 {
		c.AnnualRange = 1e5
	}
	if c.SpeedKmh == 0 {
		c.SpeedKmh = 60
	}
	if c.EdgeKm == 0 {
		c.EdgeKm = 50
	}
}

func years(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Dataset builds and resolves the corridor dataset, failing the test on any
// integrity error.
func Dataset(t *testing.T, cfg Config) *model.Dataset {
	t.Helper()
	cfg.fillDefaults()
	nY := cfg.Horizon
	nG := cfg.PreHorizon + cfg.Horizon

	maint := make([][]float64, nG)
	for i := range maint {
		maint[i] = make([]float64, cfg.Lifetime)
	}
	maint2 := make([][]float64, nG)
	for i := range maint2 {
		maint2[i] = make([]float64, cfg.Lifetime)
	}

	lifetimes := make([]int, nG)
	for i := range lifetimes {
		lifetimes[i] = cfg.Lifetime
	}

	ds := &model.Dataset{
		Params: model.Params{
			FirstYear:  cfg.FirstYear,
			Horizon:    cfg.Horizon,
			PreHorizon: cfg.PreHorizon,
			Gamma:      1,
		},
		Elements: []model.GeographicElement{
			{ID: ElemOrigin, Kind: model.ElementNode, CarbonPrice: years(nY, 0)},
			{ID: ElemEdge, Kind: model.ElementEdge, LengthKm: cfg.EdgeKm, CarbonPrice: years(nY, 0)},
			{ID: ElemDest, Kind: model.ElementNode, CarbonPrice: years(nY, 0)},
		},
		Paths: []model.Path{
			{ID: PathID, LengthKm: cfg.EdgeKm, Sequence: []int{ElemOrigin, ElemEdge, ElemDest}},
		},
		Products: []model.Product{{ID: ProductID, Name: "freight"}},
		Modes: []model.Mode{
			{
				ID: RoadModeID, Name: "road", QuantifyByVehicles: true,
				InfraExpansionCost: years(nY, 0), InfraOMCost: years(nY, 0),
			},
		},
		VehicleTypes: []model.VehicleType{{ID: VehicleTypeID, ModeID: RoadModeID, ProductID: ProductID}},
		Fuels: []model.Fuel{{
			ID: FuelID, Name: "electricity", EmissionFactor: 0,
			CostPerKWh: years(nY, 0.2), CostPerKW: years(nY, 100), InfraOMCost: years(nY, 1),
			SupplyCostPerKW: years(nY, 50), SupplyOMCost: years(nY, 1),
		}},
		Technologies: []model.Technology{{ID: TechID, FuelID: FuelID}},
		TechVehicles: []model.TechVehicle{{
			ID: TechVehicleID, VehicleTypeID: VehicleTypeID, TechnologyID: TechID,
			CapitalCost:       years(nG, 50000),
			MaintCostAnnual:   maint,
			MaintCostDistance: maint2,
			PayloadT:          years(nG, cfg.PayloadT),
			AnnualRangeKm:     years(nG, cfg.AnnualRange),
			SpecCons:          years(nG, 1.2),
			Lifetime:          lifetimes,
			BatteryCapKWh:     years(nG, 300),
			PeakFuelingKW:     years(nG, 150),
		}},
		FinancialStatuses: []model.FinancialStatus{{
			ID: FinStatusID, VoT: 20, PurchaseBudgetLB: 0, PurchaseBudgetUB: 1e6,
		}},
		RegionTypes: []model.RegionType{{
			ID: RegionTypeID, SpeedKmh: cfg.SpeedKmh,
			CostsVar: years(nY, 0), CostsFix: years(nY, 0),
		}},
		Odpairs: []model.Odpair{{
			ID: OdpairID, ProductID: ProductID,
			OriginID: ElemOrigin, DestinationID: ElemDest,
			PathIDs: []int{PathID}, F: years(nY, cfg.Demand),
			FinancialStatusID: FinStatusID, RegionTypeID: RegionTypeID,
			InitialStock: cfg.InitialStock,
		}},
	}
	if cfg.WithRail {
		ds.Modes = append(ds.Modes, model.Mode{
			ID: RailModeID, Name: "rail",
			CostPerUkm: years(nY, 0.1), EmissionFactor: years(nY, 10),
			InfraExpansionCost: years(nY, 0), InfraOMCost: years(nY, 0),
			WaitingTimeH: years(nY, 0.5),
		})
	}
	if cfg.Params != nil {
		cfg.Params(&ds.Params)
	}
	if err := ds.Resolve(); err != nil {
		t.Fatalf("resolve fixture: %v", err)
	}
	return ds
}
