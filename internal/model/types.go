package model

// Domain entities for the transport transition model. The whole dataset is
// resolved once at ingestion and is read-only during model construction;
// all mutable state lives in the optimization variables.

type ElementKind string

const (
	ElementNode ElementKind = "node"
	ElementEdge ElementKind = "edge"
)

// GeographicElement is an atomic location or segment of the transport
// network. Paths reference elements by id and never own them.
type GeographicElement struct {
	ID          int         `yaml:"id"`
	Kind        ElementKind `yaml:"kind"`
	Name        string      `yaml:"name"`
	LengthKm    float64     `yaml:"length_km"`
	CarbonPrice []float64   `yaml:"carbon_price"` // €/tCO2, indexed by model year
}

// Path is an ordered element sequence between an origin and a destination.
// Sequence has at least two entries; the first and last are the endpoints.
// Immutable once built.
type Path struct {
	ID       int     `yaml:"id"`
	Name     string  `yaml:"name"`
	LengthKm float64 `yaml:"length_km"`
	Sequence []int   `yaml:"sequence"` // GeographicElement ids
}

type Product struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

// Mode is a transport mode. When QuantifyByVehicles is false the mode is
// represented through levelized per-distance costs and no vehicle stock is
// sized for it.
type Mode struct {
	ID                 int       `yaml:"id"`
	Name               string    `yaml:"name"`
	QuantifyByVehicles bool      `yaml:"quantify_by_vehicles"`
	CostPerUkm         []float64 `yaml:"cost_per_ukm"`         // €/ukm per year, levelized modes only
	EmissionFactor     []float64 `yaml:"emission_factor"`      // gCO2/ukm per year, levelized modes only
	InfraExpansionCost []float64 `yaml:"infra_expansion_cost"` // €/Ukm per year
	InfraOMCost        []float64 `yaml:"infra_om_cost"`        // €/Ukm/year per year
	WaitingTimeH       []float64 `yaml:"waiting_time_h"`       // h per trip, per year
}

type VehicleType struct {
	ID        int    `yaml:"id"`
	Name      string `yaml:"name"`
	ModeID    int    `yaml:"mode_id"`
	ProductID int    `yaml:"product_id"`
}

type Fuel struct {
	ID             int       `yaml:"id"`
	Name           string    `yaml:"name"`
	EmissionFactor float64   `yaml:"emission_factor"` // gCO2/kWh
	CostPerKWh     []float64 `yaml:"cost_per_kwh"`    // € per year
	CostPerKW      []float64 `yaml:"cost_per_kw"`     // € per kW of fueling capacity, per year
	InfraOMCost    []float64 `yaml:"infra_om_cost"`   // €/kW/year, per year

	// Upstream supply capacity (grid connection, depots) is sized per fuel
	// rather than per drivetrain technology.
	SupplyCostPerKW []float64 `yaml:"supply_cost_per_kw"`
	SupplyOMCost    []float64 `yaml:"supply_om_cost"`
}

type Technology struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	FuelID int    `yaml:"fuel_id"`
}

// TechVehicle is the cross of a vehicle type and a drivetrain technology.
// Every slice below is generation-indexed (one entry per modeled vintage,
// aligned to Params.Generations), except the maintenance schedules which are
// generation × age. Generation arrays of unequal length are rejected at
// ingestion.
type TechVehicle struct {
	ID            int    `yaml:"id"`
	Name          string `yaml:"name"`
	VehicleTypeID int    `yaml:"vehicle_type_id"`
	TechnologyID  int    `yaml:"technology_id"`

	CapitalCost       []float64   `yaml:"capital_cost"`        // € per vehicle
	MaintCostAnnual   [][]float64 `yaml:"maint_cost_annual"`   // [generation][age] €/year
	MaintCostDistance [][]float64 `yaml:"maint_cost_distance"` // [generation][age] €/km
	PayloadT          []float64   `yaml:"payload_t"`           // tonnes or passengers per vehicle
	AnnualRangeKm     []float64   `yaml:"annual_range_km"`
	SpecCons          []float64   `yaml:"spec_cons"` // kWh/km
	Lifetime          []int       `yaml:"lifetime"`  // years of operation
	BatteryCapKWh     []float64   `yaml:"battery_cap_kwh"`
	PeakFuelingKW     []float64   `yaml:"peak_fueling_kw"`
}

type FinancialStatus struct {
	ID   int     `yaml:"id"`
	Name string  `yaml:"name"`
	VoT  float64 `yaml:"vot"` // €/h

	// Cumulative purchase budget bounds in € per unit of cumulative demand
	// served; the budget constraint scales them by the route's demand.
	PurchaseBudgetLB float64 `yaml:"purchase_budget_lb"`
	PurchaseBudgetUB float64 `yaml:"purchase_budget_ub"`
}

type RegionType struct {
	ID       int       `yaml:"id"`
	Name     string    `yaml:"name"`
	SpeedKmh float64   `yaml:"speed_kmh"`
	CostsVar []float64 `yaml:"costs_var"` // €/vehicle-km, per year
	CostsFix []float64 `yaml:"costs_fix"` // €/vehicle/year, per year
}

// InitialVehicleStock is one pre-existing fleet slice: vehicles of one
// vintage present on a route when the horizon opens.
type InitialVehicleStock struct {
	TechVehicleID int     `yaml:"tech_vehicle_id"`
	Generation    int     `yaml:"generation"` // year of purchase
	Stock         float64 `yaml:"stock"`
}

// Odpair is one origin–destination demand relation for a single product.
type Odpair struct {
	ID                int                   `yaml:"id"`
	ProductID         int                   `yaml:"product_id"`
	OriginID          int                   `yaml:"origin_id"`
	DestinationID     int                   `yaml:"destination_id"`
	PathIDs           []int                 `yaml:"path_ids"`
	F                 []float64             `yaml:"f"` // demand per model year, units/year
	FinancialStatusID int                   `yaml:"financial_status_id"`
	RegionTypeID      int                   `yaml:"region_type_id"`
	InitialStock      []InitialVehicleStock `yaml:"initial_stock"`
}

type InitialFuelingInfr struct {
	TechnologyID int     `yaml:"technology_id"`
	ElementID    int     `yaml:"element_id"`
	InstalledKW  float64 `yaml:"installed_kw"`
}

type InitialModeInfr struct {
	ModeID       int     `yaml:"mode_id"`
	ElementID    int     `yaml:"element_id"`
	InstalledUkm float64 `yaml:"installed_ukm"`
}

type InitialSupplyInfr struct {
	FuelID      int     `yaml:"fuel_id"`
	ElementID   int     `yaml:"element_id"`
	InstalledKW float64 `yaml:"installed_kw"`
}

type VehicleSubsidy struct {
	TechVehicleID int     `yaml:"tech_vehicle_id"`
	Years         []int   `yaml:"years"`
	Amount        float64 `yaml:"amount"` // € per purchased vehicle
}

// BoundDir is the direction of a policy bound.
type BoundDir string

const (
	BoundMin BoundDir = "min"
	BoundMax BoundDir = "max"
	BoundEq  BoundDir = "eq"
)

// ShareScope restricts a share constraint to routes of the named financial
// statuses and region types. Empty slices mean "all".
type ShareScope struct {
	FinancialStatusIDs []int `yaml:"financial_status_ids"`
	RegionTypeIDs      []int `yaml:"region_type_ids"`
}

// ModeShare bounds the flow share of one mode. Year == 0 applies the bound
// over the whole horizon.
type ModeShare struct {
	ModeID int        `yaml:"mode_id"`
	Share  float64    `yaml:"share"`
	Year   int        `yaml:"year"`
	Dir    BoundDir   `yaml:"dir"`
	Scope  ShareScope `yaml:"scope"`
}

type TechnologyShare struct {
	TechnologyID int        `yaml:"technology_id"`
	Share        float64    `yaml:"share"`
	Year         int        `yaml:"year"`
	Dir          BoundDir   `yaml:"dir"`
	Scope        ShareScope `yaml:"scope"`
}

type VehicleTypeShare struct {
	VehicleTypeID int        `yaml:"vehicle_type_id"`
	Share         float64    `yaml:"share"`
	Year          int        `yaml:"year"`
	Dir           BoundDir   `yaml:"dir"`
	Scope         ShareScope `yaml:"scope"`
}

// MarketShare ties new purchases of one techvehicle to a fraction of all
// purchases in the same year.
type MarketShare struct {
	TechVehicleID int      `yaml:"tech_vehicle_id"`
	Share         float64  `yaml:"share"`
	Year          int      `yaml:"year"`
	Dir           BoundDir `yaml:"dir"`
}

type EmissionCapByMode struct {
	ModeID int     `yaml:"mode_id"`
	Year   int     `yaml:"year"`
	CapT   float64 `yaml:"cap_t"` // tCO2/year
}

type EmissionCapGlobal struct {
	Year int     `yaml:"year"`
	CapT float64 `yaml:"cap_t"`
}

// / BreakRule parametrizes mandatory rest breaks: after MaxDriveH of driving a
// break of BreakH must have been taken.
type BreakRule struct {
	MaxDriveH float64 `yaml:"max_drive_h"`
	BreakH    float64 `yaml:"break_h"`
}

// Dataset is the fully resolved, immutable input to model construction.
type Dataset struct {
	Params Params `yaml:"params"`

	Elements          []GeographicElement `yaml:"elements"`
	Paths             []Path              `yaml:"paths"`
	Products          []Product           `yaml:"products"`
	Modes             []Mode              `yaml:"modes"`
	VehicleTypes      []VehicleType       `yaml:"vehicle_types"`
	Fuels             []Fuel              `yaml:"fuels"`
	Technologies      []Technology        `yaml:"technologies"`
	TechVehicles      []TechVehicle       `yaml:"tech_vehicles"`
	FinancialStatuses []FinancialStatus   `yaml:"financial_statuses"`
	RegionTypes       []RegionType        `yaml:"region_types"`
	Odpairs           []Odpair            `yaml:"odpairs"`

	InitialFueling  []InitialFuelingInfr `yaml:"initial_fueling"`
	InitialModeInfr []InitialModeInfr    `yaml:"initial_mode_infr"`
	InitialSupply   []InitialSupplyInfr  `yaml:"initial_supply"`
	Subsidies       []VehicleSubsidy     `yaml:"subsidies"`

	ModeShares        []ModeShare         `yaml:"mode_shares"`
	TechnologyShares  []TechnologyShare   `yaml:"technology_shares"`
	VehicleTypeShares []VehicleTypeShare  `yaml:"vehicle_type_shares"`
	MarketShares      []MarketShare       `yaml:"market_shares"`
	EmissionCapsMode  []EmissionCapByMode `yaml:"emission_caps_mode"`
	EmissionCapsTotal []EmissionCapGlobal `yaml:"emission_caps_total"`

	// BreakElements lists, per path id, the element ids at which mandatory
	// rest breaks are enforced.
	BreakElements map[int][]int `yaml:"break_elements"`

	idx *index
}
