// Package vars is the variable registry: every decision variable is
// declared over a pre-filtered index set and retrieved through a typed key.
// Lookups outside the declared domain return a model.IndexDomainError —
// never a default.
package vars

import (
	"fmt"
	"math"

	"transpath/internal/lp"
	"transpath/internal/model"
)

// FlowKey indexes demand carried in year Year on (Odpair, Path) by vehicles
// of one vintage under one mode.
type FlowKey struct {
	Year        int
	Odpair      int
	Path        int
	Mode        int
	TechVehicle int
	Gen         int
}

func (k FlowKey) String() string {
	return fmt.Sprintf("(y=%d r=%d k=%d m=%d v=%d g=%d)", k.Year, k.Odpair, k.Path, k.Mode, k.TechVehicle, k.Gen)
}

// StockKey indexes the fleet state families h, h_exist, h_plus, h_minus.
type StockKey struct {
	Year        int
	Odpair      int
	TechVehicle int
	Gen         int
}

func (k StockKey) String() string {
	return fmt.Sprintf("(y=%d r=%d v=%d g=%d)", k.Year, k.Odpair, k.TechVehicle, k.Gen)
}

// EnergyKey indexes aggregate energy delivered at one path element.
type EnergyKey struct {
	Year        int
	Odpair      int
	Path        int
	Element     int
	TechVehicle int
}

func (k EnergyKey) String() string {
	return fmt.Sprintf("(y=%d r=%d k=%d e=%d v=%d)", k.Year, k.Odpair, k.Path, k.Element, k.TechVehicle)
}

// StateKey indexes per-trip running totals (state of charge, travel time)
// and their per-stop controls (charge taken, waiting slack) at one position
// of a path sequence.
type StateKey struct {
	Year        int
	Odpair      int
	Path        int
	Pos         int
	TechVehicle int
	Gen         int
}

func (k StateKey) String() string {
	return fmt.Sprintf("(y=%d r=%d k=%d pos=%d v=%d g=%d)", k.Year, k.Odpair, k.Path, k.Pos, k.TechVehicle, k.Gen)
}

// FuelInfraKey indexes fueling-capacity additions per technology and element.
type FuelInfraKey struct {
	Year       int
	Technology int
	Element    int
}

func (k FuelInfraKey) String() string {
	return fmt.Sprintf("(y=%d t=%d e=%d)", k.Year, k.Technology, k.Element)
}

// ModeInfraKey indexes mode-capacity additions per mode and element.
type ModeInfraKey struct {
	Year    int
	Mode    int
	Element int
}

func (k ModeInfraKey) String() string {
	return fmt.Sprintf("(y=%d m=%d e=%d)", k.Year, k.Mode, k.Element)
}

// SupplyInfraKey indexes upstream supply-capacity additions per fuel and
// element.
type SupplyInfraKey struct {
	Year    int
	Fuel    int
	Element int
}

func (k SupplyInfraKey) String() string {
	return fmt.Sprintf("(y=%d f=%d e=%d)", k.Year, k.Fuel, k.Element)
}

// BudgetKey indexes the soft-budget slack pair per odpair and year.
type BudgetKey struct {
	Year   int
	Odpair int
}

func (k BudgetKey) String() string { return fmt.Sprintf("(y=%d r=%d)", k.Year, k.Odpair) }

// Registry owns the declared variables of one model build.
type Registry struct {
	m *lp.Model

	flow map[FlowKey]lp.VarID

	h      map[StockKey]lp.VarID
	hExist map[StockKey]lp.VarID
	hPlus  map[StockKey]lp.VarID
	hMinus map[StockKey]lp.VarID

	energy map[EnergyKey]lp.VarID

	soc    map[StateKey]lp.VarID
	tt     map[StateKey]lp.VarID
	charge map[StateKey]lp.VarID
	wait   map[StateKey]lp.VarID

	fuelInfra   map[FuelInfraKey]lp.VarID
	modeInfra   map[ModeInfraKey]lp.VarID
	supplyInfra map[SupplyInfraKey]lp.VarID

	budgetPlus  map[BudgetKey]lp.VarID
	budgetMinus map[BudgetKey]lp.VarID
}

func NewRegistry(m *lp.Model) *Registry {
	return &Registry{
		m:           m,
		flow:        map[FlowKey]lp.VarID{},
		h:           map[StockKey]lp.VarID{},
		hExist:      map[StockKey]lp.VarID{},
		hPlus:       map[StockKey]lp.VarID{},
		hMinus:      map[StockKey]lp.VarID{},
		energy:      map[EnergyKey]lp.VarID{},
		soc:         map[StateKey]lp.VarID{},
		tt:          map[StateKey]lp.VarID{},
		charge:      map[StateKey]lp.VarID{},
		wait:        map[StateKey]lp.VarID{},
		fuelInfra:   map[FuelInfraKey]lp.VarID{},
		modeInfra:   map[ModeInfraKey]lp.VarID{},
		supplyInfra: map[SupplyInfraKey]lp.VarID{},
		budgetPlus:  map[BudgetKey]lp.VarID{},
		budgetMinus: map[BudgetKey]lp.VarID{},
	}
}

func (r *Registry) Model() *lp.Model { return r.m }

func (r *Registry) nonneg(name string) lp.VarID {
	return r.m.AddVar(name, 0, math.Inf(1))
}

// Declare methods. Declaring the same key twice is a construction bug and
// panics; the pipeline declares each family exactly once.

func declare[K comparable](r *Registry, family string, set map[K]lp.VarID, k K) lp.VarID {
	if _, dup := set[k]; dup {
		panic(fmt.Sprintf("vars: %s%v declared twice", family, k))
	}
	v := r.nonneg(fmt.Sprintf("%s%v", family, k))
	set[k] = v
	return v
}

func get[K interface {
	comparable
	fmt.Stringer
}](family string, set map[K]lp.VarID, k K) (lp.VarID, error) {
	v, ok := set[k]
	if !ok {
		return 0, &model.IndexDomainError{Variable: family, Key: k.String()}
	}
	return v, nil
}

func has[K comparable](set map[K]lp.VarID, k K) bool {
	_, ok := set[k]
	return ok
}

func (r *Registry) DeclareFlow(k FlowKey) lp.VarID   { return declare(r, "f", r.flow, k) }
func (r *Registry) Flow(k FlowKey) (lp.VarID, error) { return get("f", r.flow, k) }
func (r *Registry) HasFlow(k FlowKey) bool           { return has(r.flow, k) }

func (r *Registry) DeclareStock(k StockKey) lp.VarID   { return declare(r, "h", r.h, k) }
func (r *Registry) Stock(k StockKey) (lp.VarID, error) { return get("h", r.h, k) }
func (r *Registry) HasStock(k StockKey) bool           { return has(r.h, k) }

func (r *Registry) DeclareStockExist(k StockKey) lp.VarID { return declare(r, "h_exist", r.hExist, k) }
func (r *Registry) StockExist(k StockKey) (lp.VarID, error) {
	return get("h_exist", r.hExist, k)
}

func (r *Registry) DeclareStockPlus(k StockKey) lp.VarID   { return declare(r, "h_plus", r.hPlus, k) }
func (r *Registry) StockPlus(k StockKey) (lp.VarID, error) { return get("h_plus", r.hPlus, k) }
func (r *Registry) HasStockPlus(k StockKey) bool           { return has(r.hPlus, k) }

// DeclareStockPlusInt declares a purchase variable as integer; used when a
// scenario requests a mixed-integer fleet.
func (r *Registry) DeclareStockPlusInt(k StockKey) lp.VarID {
	if _, dup := r.hPlus[k]; dup {
		panic(fmt.Sprintf("vars: h_plus%v declared twice", k))
	}
	v := r.m.AddIntVar(fmt.Sprintf("h_plus%v", k), 0, math.Inf(1))
	r.hPlus[k] = v
	return v
}

func (r *Registry) DeclareStockMinus(k StockKey) lp.VarID { return declare(r, "h_minus", r.hMinus, k) }
func (r *Registry) StockMinus(k StockKey) (lp.VarID, error) {
	return get("h_minus", r.hMinus, k)
}

func (r *Registry) DeclareEnergy(k EnergyKey) lp.VarID   { return declare(r, "s", r.energy, k) }
func (r *Registry) Energy(k EnergyKey) (lp.VarID, error) { return get("s", r.energy, k) }

func (r *Registry) DeclareSoC(k StateKey) lp.VarID   { return declare(r, "soc", r.soc, k) }
func (r *Registry) SoC(k StateKey) (lp.VarID, error) { return get("soc", r.soc, k) }

func (r *Registry) DeclareTravelTime(k StateKey) lp.VarID   { return declare(r, "tt", r.tt, k) }
func (r *Registry) TravelTime(k StateKey) (lp.VarID, error) { return get("tt", r.tt, k) }

func (r *Registry) DeclareCharge(k StateKey) lp.VarID   { return declare(r, "charge", r.charge, k) }
func (r *Registry) Charge(k StateKey) (lp.VarID, error) { return get("charge", r.charge, k) }

func (r *Registry) DeclareWait(k StateKey) lp.VarID   { return declare(r, "wait", r.wait, k) }
func (r *Registry) Wait(k StateKey) (lp.VarID, error) { return get("wait", r.wait, k) }

func (r *Registry) DeclareFuelInfra(k FuelInfraKey) lp.VarID {
	return declare(r, "q_fuel_infr_plus", r.fuelInfra, k)
}
func (r *Registry) FuelInfra(k FuelInfraKey) (lp.VarID, error) {
	return get("q_fuel_infr_plus", r.fuelInfra, k)
}

func (r *Registry) DeclareModeInfra(k ModeInfraKey) lp.VarID {
	return declare(r, "q_mode_infr_plus", r.modeInfra, k)
}
func (r *Registry) ModeInfra(k ModeInfraKey) (lp.VarID, error) {
	return get("q_mode_infr_plus", r.modeInfra, k)
}

func (r *Registry) DeclareSupplyInfra(k SupplyInfraKey) lp.VarID {
	return declare(r, "q_supply_infr_plus", r.supplyInfra, k)
}
func (r *Registry) SupplyInfra(k SupplyInfraKey) (lp.VarID, error) {
	return get("q_supply_infr_plus", r.supplyInfra, k)
}

func (r *Registry) DeclareBudgetPlus(k BudgetKey) lp.VarID {
	return declare(r, "budget_penalty_plus", r.budgetPlus, k)
}
func (r *Registry) BudgetPlus(k BudgetKey) (lp.VarID, error) {
	return get("budget_penalty_plus", r.budgetPlus, k)
}

func (r *Registry) DeclareBudgetMinus(k BudgetKey) lp.VarID {
	return declare(r, "budget_penalty_minus", r.budgetMinus, k)
}
func (r *Registry) BudgetMinus(k BudgetKey) (lp.VarID, error) {
	return get("budget_penalty_minus", r.budgetMinus, k)
}

// Snapshot families for the exporter: each returns the declared keys of one
// family with their variable ids, in map iteration order (the exporter
// sorts).

func (r *Registry) FlowVars() map[FlowKey]lp.VarID        { return r.flow }
func (r *Registry) StockVars() map[StockKey]lp.VarID      { return r.h }
func (r *Registry) StockPlusVars() map[StockKey]lp.VarID  { return r.hPlus }
func (r *Registry) StockMinusVars() map[StockKey]lp.VarID { return r.hMinus }
func (r *Registry) EnergyVars() map[EnergyKey]lp.VarID    { return r.energy }
func (r *Registry) FuelInfraVars() map[FuelInfraKey]lp.VarID {
	return r.fuelInfra
}
func (r *Registry) ModeInfraVars() map[ModeInfraKey]lp.VarID {
	return r.modeInfra
}
func (r *Registry) SupplyInfraVars() map[SupplyInfraKey]lp.VarID {
	return r.supplyInfra
}
func (r *Registry) BudgetPlusVars() map[BudgetKey]lp.VarID  { return r.budgetPlus }
func (r *Registry) BudgetMinusVars() map[BudgetKey]lp.VarID { return r.budgetMinus }
