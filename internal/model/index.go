package model

import "fmt"

// index is the shared read-only lookup arena. Entities cross-reference each
// other by integer id; every resolution goes through these maps, built once
// by Resolve. No constraint generator ever scans an entity list by
// predicate.
type index struct {
	elements    map[int]*GeographicElement
	paths       map[int]*Path
	products    map[int]*Product
	modes       map[int]*Mode
	vtypes      map[int]*VehicleType
	fuels       map[int]*Fuel
	techs       map[int]*Technology
	tvs         map[int]*TechVehicle
	fstatuses   map[int]*FinancialStatus
	rtypes      map[int]*RegionType
	odpairs     map[int]*Odpair
	subsidyByTV map[int][]*VehicleSubsidy
}

// Resolve builds the lookup arena and validates every cross-reference and
// array shape. It must be called once after loading and before any model
// construction; any failure is a *DataIntegrityError.
func (d *Dataset) Resolve() error {
	ix := &index{
		elements:    map[int]*GeographicElement{},
		paths:       map[int]*Path{},
		products:    map[int]*Product{},
		modes:       map[int]*Mode{},
		vtypes:      map[int]*VehicleType{},
		fuels:       map[int]*Fuel{},
		techs:       map[int]*Technology{},
		tvs:         map[int]*TechVehicle{},
		fstatuses:   map[int]*FinancialStatus{},
		rtypes:      map[int]*RegionType{},
		odpairs:     map[int]*Odpair{},
		subsidyByTV: map[int][]*VehicleSubsidy{},
	}
	p := d.Params
	nYears := p.Horizon
	nGens := p.NumGenerations()

	for i := range d.Elements {
		e := &d.Elements[i]
		if _, dup := ix.elements[e.ID]; dup {
			return &DataIntegrityError{Entity: "element", ID: e.ID, Detail: "duplicate id"}
		}
		if len(e.CarbonPrice) != nYears {
			return &DataIntegrityError{Entity: "element", ID: e.ID, Detail: fmt.Sprintf("carbon_price has %d entries, want %d", len(e.CarbonPrice), nYears)}
		}
		ix.elements[e.ID] = e
	}
	for i := range d.Paths {
		k := &d.Paths[i]
		if _, dup := ix.paths[k.ID]; dup {
			return &DataIntegrityError{Entity: "path", ID: k.ID, Detail: "duplicate id"}
		}
		if len(k.Sequence) < 2 {
			return &DataIntegrityError{Entity: "path", ID: k.ID, Detail: "sequence must have at least 2 elements"}
		}
		for _, eid := range k.Sequence {
			if _, ok := ix.elements[eid]; !ok {
				return &DataIntegrityError{Entity: "path", ID: k.ID, Detail: fmt.Sprintf("unknown element %d in sequence", eid)}
			}
		}
		ix.paths[k.ID] = k
	}
	for i := range d.Products {
		pr := &d.Products[i]
		ix.products[pr.ID] = pr
	}
	for i := range d.Modes {
		m := &d.Modes[i]
		if _, dup := ix.modes[m.ID]; dup {
			return &DataIntegrityError{Entity: "mode", ID: m.ID, Detail: "duplicate id"}
		}
		perYear := map[string][]float64{
			"infra_expansion_cost": m.InfraExpansionCost,
			"infra_om_cost":        m.InfraOMCost,
		}
		if !m.QuantifyByVehicles {
			perYear["cost_per_ukm"] = m.CostPerUkm
			perYear["emission_factor"] = m.EmissionFactor
			perYear["waiting_time"] = m.WaitingTimeH
		}
		for name, arr := range perYear {
			if len(arr) != nYears {
				return &DataIntegrityError{Entity: "mode", ID: m.ID, Detail: fmt.Sprintf("%s has %d entries, want %d", name, len(arr), nYears)}
			}
		}
		ix.modes[m.ID] = m
	}
	for i := range d.VehicleTypes {
		vt := &d.VehicleTypes[i]
		if _, ok := ix.modes[vt.ModeID]; !ok {
			return &DataIntegrityError{Entity: "vehicletype", ID: vt.ID, Detail: fmt.Sprintf("unknown mode %d", vt.ModeID)}
		}
		if _, ok := ix.products[vt.ProductID]; !ok {
			return &DataIntegrityError{Entity: "vehicletype", ID: vt.ID, Detail: fmt.Sprintf("unknown product %d", vt.ProductID)}
		}
		ix.vtypes[vt.ID] = vt
	}
	for i := range d.Fuels {
		f := &d.Fuels[i]
		for name, arr := range map[string][]float64{
			"cost_per_kwh":       f.CostPerKWh,
			"cost_per_kw":        f.CostPerKW,
			"infra_om_cost":      f.InfraOMCost,
			"supply_cost_per_kw": f.SupplyCostPerKW,
			"supply_om_cost":     f.SupplyOMCost,
		} {
			if len(arr) != nYears {
				return &DataIntegrityError{Entity: "fuel", ID: f.ID, Detail: fmt.Sprintf("%s has %d entries, want %d", name, len(arr), nYears)}
			}
		}
		ix.fuels[f.ID] = f
	}
	for i := range d.Technologies {
		t := &d.Technologies[i]
		if _, ok := ix.fuels[t.FuelID]; !ok {
			return &DataIntegrityError{Entity: "technology", ID: t.ID, Detail: fmt.Sprintf("unknown fuel %d", t.FuelID)}
		}
		ix.techs[t.ID] = t
	}
	for i := range d.TechVehicles {
		tv := &d.TechVehicles[i]
		if _, ok := ix.vtypes[tv.VehicleTypeID]; !ok {
			return &DataIntegrityError{Entity: "techvehicle", ID: tv.ID, Detail: fmt.Sprintf("unknown vehicletype %d", tv.VehicleTypeID)}
		}
		if _, ok := ix.techs[tv.TechnologyID]; !ok {
			return &DataIntegrityError{Entity: "techvehicle", ID: tv.ID, Detail: fmt.Sprintf("unknown technology %d", tv.TechnologyID)}
		}
		for name, n := range map[string]int{
			"capital_cost":   len(tv.CapitalCost),
			"payload":        len(tv.PayloadT),
			"annual_range":   len(tv.AnnualRangeKm),
			"spec_cons":      len(tv.SpecCons),
			"lifetime":       len(tv.Lifetime),
			"battery_cap":    len(tv.BatteryCapKWh),
			"peak_fueling":   len(tv.PeakFuelingKW),
			"maint_annual":   len(tv.MaintCostAnnual),
			"maint_distance": len(tv.MaintCostDistance),
		} {
			if n != nGens {
				return &DataIntegrityError{Entity: "techvehicle", ID: tv.ID, Detail: fmt.Sprintf("%s has %d generations, want %d", name, n, nGens)}
			}
		}
		for gi, life := range tv.Lifetime {
			if life <= 0 {
				return &DataIntegrityError{Entity: "techvehicle", ID: tv.ID, Detail: fmt.Sprintf("generation %d has nonpositive lifetime", gi)}
			}
			if len(tv.MaintCostAnnual[gi]) < life || len(tv.MaintCostDistance[gi]) < life {
				return &DataIntegrityError{Entity: "techvehicle", ID: tv.ID, Detail: fmt.Sprintf("maintenance schedule of generation %d shorter than lifetime %d", gi, life)}
			}
			// These appear as divisors when sizing fleets and chargers.
			if tv.PayloadT[gi] <= 0 {
				return &DataIntegrityError{Entity: "techvehicle", ID: tv.ID, Detail: fmt.Sprintf("generation %d has nonpositive payload", gi)}
			}
			if tv.AnnualRangeKm[gi] <= 0 {
				return &DataIntegrityError{Entity: "techvehicle", ID: tv.ID, Detail: fmt.Sprintf("generation %d has nonpositive annual_range", gi)}
			}
			if tv.PeakFuelingKW[gi] <= 0 {
				return &DataIntegrityError{Entity: "techvehicle", ID: tv.ID, Detail: fmt.Sprintf("generation %d has nonpositive peak_fueling", gi)}
			}
		}
		ix.tvs[tv.ID] = tv
	}
	for i := range d.FinancialStatuses {
		fs := &d.FinancialStatuses[i]
		ix.fstatuses[fs.ID] = fs
	}
	for i := range d.RegionTypes {
		rt := &d.RegionTypes[i]
		if rt.SpeedKmh <= 0 {
			return &DataIntegrityError{Entity: "regiontype", ID: rt.ID, Detail: "speed must be positive"}
		}
		if len(rt.CostsVar) != nYears || len(rt.CostsFix) != nYears {
			return &DataIntegrityError{Entity: "regiontype", ID: rt.ID, Detail: "cost arrays must have one entry per year"}
		}
		ix.rtypes[rt.ID] = rt
	}
	for i := range d.Odpairs {
		r := &d.Odpairs[i]
		if _, ok := ix.products[r.ProductID]; !ok {
			return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: fmt.Sprintf("unknown product %d", r.ProductID)}
		}
		for _, end := range []int{r.OriginID, r.DestinationID} {
			if _, ok := ix.elements[end]; !ok {
				return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: fmt.Sprintf("unknown endpoint element %d", end)}
			}
		}
		if len(r.PathIDs) == 0 {
			return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: "no candidate paths"}
		}
		for _, kid := range r.PathIDs {
			if _, ok := ix.paths[kid]; !ok {
				return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: fmt.Sprintf("unknown path %d", kid)}
			}
		}
		if len(r.F) != nYears {
			return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: fmt.Sprintf("demand has %d entries, want %d", len(r.F), nYears)}
		}
		if _, ok := ix.fstatuses[r.FinancialStatusID]; !ok {
			return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: fmt.Sprintf("unknown financial status %d", r.FinancialStatusID)}
		}
		if _, ok := ix.rtypes[r.RegionTypeID]; !ok {
			return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: fmt.Sprintf("unknown region type %d", r.RegionTypeID)}
		}
		for _, ivs := range r.InitialStock {
			tv, ok := ix.tvs[ivs.TechVehicleID]
			if !ok {
				return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: fmt.Sprintf("initial stock names unknown techvehicle %d", ivs.TechVehicleID)}
			}
			if ivs.Generation < p.GenFloor() || ivs.Generation >= p.FirstYear {
				return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: fmt.Sprintf("initial stock generation %d outside pre-history window [%d,%d)", ivs.Generation, p.GenFloor(), p.FirstYear)}
			}
			if life := tv.Lifetime[p.GenIndex(ivs.Generation)]; p.FirstYear-ivs.Generation >= life {
				return &DataIntegrityError{Entity: "odpair", ID: r.ID, Detail: fmt.Sprintf("initial stock generation %d already past lifetime %d at first year %d", ivs.Generation, life, p.FirstYear)}
			}
		}
		ix.odpairs[r.ID] = r
	}
	for i := range d.InitialFueling {
		inf := &d.InitialFueling[i]
		if _, ok := ix.techs[inf.TechnologyID]; !ok {
			return &DataIntegrityError{Entity: "initial_fueling", ID: i, Detail: fmt.Sprintf("unknown technology %d", inf.TechnologyID)}
		}
		if _, ok := ix.elements[inf.ElementID]; !ok {
			return &DataIntegrityError{Entity: "initial_fueling", ID: i, Detail: fmt.Sprintf("unknown element %d", inf.ElementID)}
		}
	}
	for i := range d.InitialModeInfr {
		inf := &d.InitialModeInfr[i]
		if _, ok := ix.modes[inf.ModeID]; !ok {
			return &DataIntegrityError{Entity: "initial_mode_infr", ID: i, Detail: fmt.Sprintf("unknown mode %d", inf.ModeID)}
		}
		if _, ok := ix.elements[inf.ElementID]; !ok {
			return &DataIntegrityError{Entity: "initial_mode_infr", ID: i, Detail: fmt.Sprintf("unknown element %d", inf.ElementID)}
		}
	}
	for i := range d.InitialSupply {
		inf := &d.InitialSupply[i]
		if _, ok := ix.fuels[inf.FuelID]; !ok {
			return &DataIntegrityError{Entity: "initial_supply", ID: i, Detail: fmt.Sprintf("unknown fuel %d", inf.FuelID)}
		}
		if _, ok := ix.elements[inf.ElementID]; !ok {
			return &DataIntegrityError{Entity: "initial_supply", ID: i, Detail: fmt.Sprintf("unknown element %d", inf.ElementID)}
		}
	}
	for i := range d.Subsidies {
		sub := &d.Subsidies[i]
		if _, ok := ix.tvs[sub.TechVehicleID]; !ok {
			return &DataIntegrityError{Entity: "subsidy", ID: i, Detail: fmt.Sprintf("unknown techvehicle %d", sub.TechVehicleID)}
		}
		ix.subsidyByTV[sub.TechVehicleID] = append(ix.subsidyByTV[sub.TechVehicleID], sub)
	}
	if err := d.validatePolicies(ix); err != nil {
		return err
	}
	for kid, elems := range d.BreakElements {
		k, ok := ix.paths[kid]
		if !ok {
			return &DataIntegrityError{Entity: "break_elements", ID: kid, Detail: "unknown path"}
		}
		for _, eid := range elems {
			if !containsInt(k.Sequence, eid) {
				return &DataIntegrityError{Entity: "break_elements", ID: kid, Detail: fmt.Sprintf("element %d not on path", eid)}
			}
		}
	}

	d.idx = ix
	return nil
}

func (d *Dataset) validatePolicies(ix *index) error {
	checkYear := func(entity string, id, year int) error {
		if year != 0 && (year < d.Params.FirstYear || year > d.Params.LastYear()) {
			return &DataIntegrityError{Entity: entity, ID: id, Detail: fmt.Sprintf("year %d outside horizon", year)}
		}
		return nil
	}
	for i, ms := range d.ModeShares {
		if _, ok := ix.modes[ms.ModeID]; !ok {
			return &DataIntegrityError{Entity: "mode_share", ID: i, Detail: fmt.Sprintf("unknown mode %d", ms.ModeID)}
		}
		if err := checkYear("mode_share", i, ms.Year); err != nil {
			return err
		}
	}
	for i, ts := range d.TechnologyShares {
		if _, ok := ix.techs[ts.TechnologyID]; !ok {
			return &DataIntegrityError{Entity: "technology_share", ID: i, Detail: fmt.Sprintf("unknown technology %d", ts.TechnologyID)}
		}
		if err := checkYear("technology_share", i, ts.Year); err != nil {
			return err
		}
	}
	for i, vs := range d.VehicleTypeShares {
		if _, ok := ix.vtypes[vs.VehicleTypeID]; !ok {
			return &DataIntegrityError{Entity: "vehicletype_share", ID: i, Detail: fmt.Sprintf("unknown vehicletype %d", vs.VehicleTypeID)}
		}
		if err := checkYear("vehicletype_share", i, vs.Year); err != nil {
			return err
		}
	}
	for i, ms := range d.MarketShares {
		if _, ok := ix.tvs[ms.TechVehicleID]; !ok {
			return &DataIntegrityError{Entity: "market_share", ID: i, Detail: fmt.Sprintf("unknown techvehicle %d", ms.TechVehicleID)}
		}
		if err := checkYear("market_share", i, ms.Year); err != nil {
			return err
		}
	}
	for i, ec := range d.EmissionCapsMode {
		if _, ok := ix.modes[ec.ModeID]; !ok {
			return &DataIntegrityError{Entity: "emission_cap_mode", ID: i, Detail: fmt.Sprintf("unknown mode %d", ec.ModeID)}
		}
		if err := checkYear("emission_cap_mode", i, ec.Year); err != nil {
			return err
		}
	}
	for i, ec := range d.EmissionCapsTotal {
		if err := checkYear("emission_cap_total", i, ec.Year); err != nil {
			return err
		}
	}
	return nil
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Accessors. All assume Resolve has run; a nil return means the id was never
// valid, which callers treat as a construction-time bug.

func (d *Dataset) Element(id int) *GeographicElement { return d.idx.elements[id] }
func (d *Dataset) Path(id int) *Path                 { return d.idx.paths[id] }
func (d *Dataset) Product(id int) *Product           { return d.idx.products[id] }
func (d *Dataset) Mode(id int) *Mode                 { return d.idx.modes[id] }
func (d *Dataset) VehicleType(id int) *VehicleType   { return d.idx.vtypes[id] }
func (d *Dataset) Fuel(id int) *Fuel                 { return d.idx.fuels[id] }
func (d *Dataset) Technology(id int) *Technology     { return d.idx.techs[id] }
func (d *Dataset) TechVehicle(id int) *TechVehicle   { return d.idx.tvs[id] }
func (d *Dataset) FinancialStatus(id int) *FinancialStatus {
	return d.idx.fstatuses[id]
}
func (d *Dataset) RegionType(id int) *RegionType { return d.idx.rtypes[id] }
func (d *Dataset) OdpairByID(id int) *Odpair     { return d.idx.odpairs[id] }

// ModeOf resolves the mode a techvehicle serves under (via its vehicle type).
func (d *Dataset) ModeOf(tv *TechVehicle) *Mode {
	return d.Mode(d.VehicleType(tv.VehicleTypeID).ModeID)
}

// FuelOf resolves a techvehicle's fuel through its technology.
func (d *Dataset) FuelOf(tv *TechVehicle) *Fuel {
	return d.Fuel(d.Technology(tv.TechnologyID).FuelID)
}

// SubsidyFor returns the total € subsidy applicable to purchasing one
// vehicle of the given techvehicle in the given year.
func (d *Dataset) SubsidyFor(tvID, year int) float64 {
	total := 0.0
	for _, sub := range d.idx.subsidyByTV[tvID] {
		for _, y := range sub.Years {
			if y == year {
				total += sub.Amount
				break
			}
		}
	}
	return total
}

// CarbonPriceAlongPath averages the carbon price over the elements of a path
// for one year.
func (d *Dataset) CarbonPriceAlongPath(k *Path, year int) float64 {
	yi := d.Params.YearIndex(year)
	total := 0.0
	for _, eid := range k.Sequence {
		total += d.Element(eid).CarbonPrice[yi]
	}
	return total / float64(len(k.Sequence))
}
