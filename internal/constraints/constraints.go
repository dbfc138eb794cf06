// Package constraints holds one generator per physical or economic rule of
// the transition model. Generators are pure: they read the dataset, the
// index sets and the variable registry, and append rows to the model. None
// mutates domain data; scenarios compose by choosing which generators run.
package constraints

import (
	"transpath/internal/indexset"
	"transpath/internal/lp"
	"transpath/internal/model"
	"transpath/internal/vars"
)

// Context is passed by reference into every generator. Statically shaped on
// purpose: no string-keyed configuration lookups anywhere in the build.
type Context struct {
	Data *model.Dataset
	Sets *indexset.Sets
	Vars *vars.Registry
	M    *lp.Model

	// IntegerFleet declares vehicle purchases as integer variables,
	// turning the build into a MIP.
	IntegerFleet bool
}

// Generator names one rule and its emission function.
type Generator struct {
	Name  string
	Apply func(*Context) error
}

// Core returns the always-on generators in emission order. Policy-layer
// generators (shares, emission caps) are appended by the scenario.
func Core() []Generator {
	return []Generator{
		{Name: "demand_coverage", Apply: DemandCoverage},
		{Name: "vehicle_sizing", Apply: VehicleSizing},
		{Name: "vehicle_aging", Apply: VehicleAging},
		{Name: "mode_shift_limit", Apply: ModeShiftLimit},
		{Name: "tech_shift_limit", Apply: TechShiftLimit},
		{Name: "purchase_budget", Apply: PurchaseBudget},
		{Name: "fueling_demand", Apply: FuelingDemand},
		{Name: "fueling_infrastructure", Apply: FuelingInfrastructure},
		{Name: "supply_infrastructure", Apply: SupplyInfrastructure},
		{Name: "mode_infrastructure", Apply: ModeInfrastructure},
		{Name: "path_state", Apply: PathState},
		{Name: "rest_breaks", Apply: RestBreaks},
	}
}

// Policy returns the optional policy-layer generators. Each is independently
// togglable; stacking several share constraints, or combining them with
// tight shift limits, can make the model genuinely infeasible — that is a
// policy conflict to surface, not a bug.
func Policy() []Generator {
	return []Generator{
		{Name: "mode_share", Apply: ModeShareTargets},
		{Name: "technology_share", Apply: TechnologyShareTargets},
		{Name: "vehicletype_share", Apply: VehicleTypeShareTargets},
		{Name: "market_share", Apply: MarketShareTargets},
		{Name: "emission_caps", Apply: EmissionCaps},
	}
}
