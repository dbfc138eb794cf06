// Package objective accumulates the single present-value cost expression.
// Every term uses Params.DiscountFactor and the same generation-vs-year
// indexing as the constraints that declared the variable it prices; nothing
// here re-derives a year index or rescales a unit.
package objective

import (
	"transpath/internal/constraints"
	"transpath/internal/lp"
	"transpath/internal/model"
	"transpath/internal/vars"
)

// Assemble adds all cost terms to the model's objective.
func Assemble(ctx *constraints.Context) error {
	for _, term := range []func(*constraints.Context) (lp.Expr, error){
		capitalCost,
		salvageCredit,
		maintenanceCost,
		regionalCost,
		energyAndEmissionCost,
		timeCost,
		levelizedModeCost,
		infrastructureCost,
		budgetPenaltyCost,
	} {
		e, err := term(ctx)
		if err != nil {
			return err
		}
		ctx.M.Minimize(e)
	}
	return nil
}

// capitalCost prices purchases at the vintage's capital cost net of any
// subsidy active in the purchase year.
func capitalCost(ctx *constraints.Context) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr
	for ri := range ds.Odpairs {
		r := &ds.Odpairs[ri]
		for _, mv := range ctx.Sets.VehiclesFor(r) {
			if mv.Synthetic {
				continue
			}
			tv := ds.TechVehicle(mv.TechVehicle)
			for _, y := range p.Years() {
				hp, err := ctx.Vars.StockPlus(vars.StockKey{Year: y, Odpair: r.ID, TechVehicle: tv.ID, Gen: y})
				if err != nil {
					return lp.Expr{}, err
				}
				net := tv.CapitalCost[p.GenIndex(y)] - ds.SubsidyFor(tv.ID, y)
				e.Add(hp, p.DiscountFactor(y)*net)
			}
		}
	}
	return e, nil
}

// salvageCredit credits the residual value of vehicles retired before the
// lifetime boundary, written down linearly by age. Forced retirements at
// age == lifetime carry no residual value, so they contribute nothing.
func salvageCredit(ctx *constraints.Context) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr
	for ri := range ds.Odpairs {
		r := &ds.Odpairs[ri]
		for _, mv := range ctx.Sets.VehiclesFor(r) {
			if mv.Synthetic {
				continue
			}
			tv := ds.TechVehicle(mv.TechVehicle)
			for _, g := range p.Generations() {
				gi := p.GenIndex(g)
				for _, y := range p.Years() {
					if !ctx.Sets.CanRetire(tv, y, g) {
						continue
					}
					residual := model.DepreciationFactor(y-g, tv.Lifetime[gi])
					if residual == 0 {
						continue
					}
					hm, err := ctx.Vars.StockMinus(vars.StockKey{Year: y, Odpair: r.ID, TechVehicle: tv.ID, Gen: g})
					if err != nil {
						return lp.Expr{}, err
					}
					e.Add(hm, -p.DiscountFactor(y)*residual*tv.CapitalCost[gi])
				}
			}
		}
	}
	return e, nil
}

// maintenanceCost prices annual upkeep on the standing fleet and
// per-distance upkeep on the kilometers driven, both resolved by vintage
// and age and only within the lifetime window.
func maintenanceCost(ctx *constraints.Context) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr
	for ri := range ds.Odpairs {
		r := &ds.Odpairs[ri]
		for _, mv := range ctx.Sets.VehiclesFor(r) {
			if mv.Synthetic {
				continue
			}
			tv := ds.TechVehicle(mv.TechVehicle)
			for _, g := range p.Generations() {
				gi := p.GenIndex(g)
				for _, y := range p.Years() {
					if !ctx.Sets.WithinLife(tv, y, g) {
						continue
					}
					age := y - g
					df := p.DiscountFactor(y)

					h, err := ctx.Vars.Stock(vars.StockKey{Year: y, Odpair: r.ID, TechVehicle: tv.ID, Gen: g})
					if err != nil {
						return lp.Expr{}, err
					}
					e.Add(h, df*tv.MaintCostAnnual[gi][age])

					perKm := tv.MaintCostDistance[gi][age]
					if perKm == 0 {
						continue
					}
					for _, kid := range r.PathIDs {
						fk := vars.FlowKey{Year: y, Odpair: r.ID, Path: kid, Mode: mv.Mode, TechVehicle: tv.ID, Gen: g}
						f, err := ctx.Vars.Flow(fk)
						if err != nil {
							return lp.Expr{}, err
						}
						// vehicle-km = flow · path length / payload
						e.Add(f, df*perKm*ds.Path(kid).LengthKm/tv.PayloadT[gi])
					}
				}
			}
		}
	}
	return e, nil
}

// regionalCost prices the region type's fixed cost per standing vehicle and
// variable cost per vehicle-km.
func regionalCost(ctx *constraints.Context) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr
	for ri := range ds.Odpairs {
		r := &ds.Odpairs[ri]
		rt := ds.RegionType(r.RegionTypeID)
		for _, mv := range ctx.Sets.VehiclesFor(r) {
			if mv.Synthetic {
				continue
			}
			tv := ds.TechVehicle(mv.TechVehicle)
			for _, y := range p.Years() {
				yi := p.YearIndex(y)
				df := p.DiscountFactor(y)
				for _, g := range p.Generations() {
					if !ctx.Sets.WithinLife(tv, y, g) {
						continue
					}
					gi := p.GenIndex(g)
					h, err := ctx.Vars.Stock(vars.StockKey{Year: y, Odpair: r.ID, TechVehicle: tv.ID, Gen: g})
					if err != nil {
						return lp.Expr{}, err
					}
					e.Add(h, df*rt.CostsFix[yi])
					for _, kid := range r.PathIDs {
						fk := vars.FlowKey{Year: y, Odpair: r.ID, Path: kid, Mode: mv.Mode, TechVehicle: tv.ID, Gen: g}
						f, err := ctx.Vars.Flow(fk)
						if err != nil {
							return lp.Expr{}, err
						}
						e.Add(f, df*rt.CostsVar[yi]*ds.Path(kid).LengthKm/tv.PayloadT[gi])
					}
				}
			}
		}
	}
	return e, nil
}

// energyAndEmissionCost prices delivered energy at the fuel's per-kWh cost
// plus the carbon cost of burning it, with the carbon price averaged along
// the path the energy serves.
func energyAndEmissionCost(ctx *constraints.Context) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr
	for _, y := range p.Years() {
		yi := p.YearIndex(y)
		df := p.DiscountFactor(y)
		for _, t := range ctx.Sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			k := ds.Path(t.Path)
			carbon := ds.CarbonPriceAlongPath(k, y)
			for _, mv := range ctx.Sets.VehiclesFor(r) {
				if mv.Synthetic {
					continue
				}
				tv := ds.TechVehicle(mv.TechVehicle)
				fuel := ds.FuelOf(tv)
				perKWh := fuel.CostPerKWh[yi] + carbon*fuel.EmissionFactor/model.GramsPerTonne

				seen := map[int]bool{}
				for _, pt := range ctx.Sets.Points(t) {
					if seen[pt.Element] {
						continue
					}
					seen[pt.Element] = true
					s, err := ctx.Vars.Energy(vars.EnergyKey{Year: y, Odpair: t.Odpair, Path: t.Path, Element: pt.Element, TechVehicle: tv.ID})
					if err != nil {
						return lp.Expr{}, err
					}
					e.Add(s, df*perKWh)
				}
			}
		}
	}
	return e, nil
}

// timeCost prices driver and shipper time: value of time on the hours the
// flow spends en route, plus the per-trip travel time at the destination
// (which already includes charging and mandated rest through the path
// recurrence).
func timeCost(ctx *constraints.Context) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr
	for _, y := range p.Years() {
		df := p.DiscountFactor(y)
		for _, t := range ctx.Sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			vot := ds.FinancialStatus(r.FinancialStatusID).VoT
			speed := ds.RegionType(r.RegionTypeID).SpeedKmh
			length := ds.Path(t.Path).LengthKm
			pts := ctx.Sets.Points(t)
			dest := pts[len(pts)-1]
			for _, mv := range ctx.Sets.VehiclesFor(r) {
				if mv.Synthetic {
					continue
				}
				tv := ds.TechVehicle(mv.TechVehicle)
				for _, fk := range constraints.FlowKeys(ctx, y, t, mv) {
					f, err := ctx.Vars.Flow(fk)
					if err != nil {
						return lp.Expr{}, err
					}
					gi := p.GenIndex(fk.Gen)
					e.Add(f, df*vot*length/(speed*tv.PayloadT[gi]))

					sk := vars.StateKey{Year: y, Odpair: t.Odpair, Path: t.Path, Pos: dest.Pos, TechVehicle: tv.ID, Gen: fk.Gen}
					tt, err := ctx.Vars.TravelTime(sk)
					if err != nil {
						return lp.Expr{}, err
					}
					e.Add(tt, df*vot)
				}
			}
		}
	}
	return e, nil
}

// levelizedModeCost prices flow on modes without fleet sizing: the per
// unit-km cost plus value of time for in-vehicle and waiting hours.
func levelizedModeCost(ctx *constraints.Context) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr
	for _, y := range p.Years() {
		yi := p.YearIndex(y)
		df := p.DiscountFactor(y)
		for _, t := range ctx.Sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			vot := ds.FinancialStatus(r.FinancialStatusID).VoT
			speed := ds.RegionType(r.RegionTypeID).SpeedKmh
			length := ds.Path(t.Path).LengthKm
			for _, mv := range ctx.Sets.VehiclesFor(r) {
				if !mv.Synthetic {
					continue
				}
				m := ds.Mode(mv.Mode)
				perUnit := m.CostPerUkm[yi]*length + vot*(length/speed+m.WaitingTimeH[yi])
				for _, fk := range constraints.FlowKeys(ctx, y, t, mv) {
					f, err := ctx.Vars.Flow(fk)
					if err != nil {
						return lp.Expr{}, err
					}
					e.Add(f, df*perUnit)
				}
			}
		}
	}
	return e, nil
}

// infrastructureCost prices capacity additions once at their investment
// year and their operating cost in every following year. O&M on initial
// capacity is a constant and is left out of the objective.
func infrastructureCost(ctx *constraints.Context) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr

	// omFactor is Σ_{y ≥ yInv} DF(y)·om[y]: the discounted O&M stream one
	// unit of capacity added in yInv accrues over the rest of the horizon.
	omFactor := func(om []float64, yInv int) float64 {
		total := 0.0
		for _, y := range p.Years() {
			if y >= yInv {
				total += p.DiscountFactor(y) * om[p.YearIndex(y)]
			}
		}
		return total
	}

	for _, yInv := range p.Years() {
		if !p.IsInvestmentYear(yInv) {
			continue
		}
		yi := p.YearIndex(yInv)
		df := p.DiscountFactor(yInv)

		for ti := range ds.Technologies {
			tech := &ds.Technologies[ti]
			fuel := ds.Fuel(tech.FuelID)
			coeff := df*fuel.CostPerKW[yi] + omFactor(fuel.InfraOMCost, yInv)
			for _, elem := range ctx.Sets.Elements() {
				q, err := ctx.Vars.FuelInfra(vars.FuelInfraKey{Year: yInv, Technology: tech.ID, Element: elem})
				if err != nil {
					return lp.Expr{}, err
				}
				e.Add(q, coeff)
			}
		}
		for fi := range ds.Fuels {
			fuel := &ds.Fuels[fi]
			coeff := df*fuel.SupplyCostPerKW[yi] + omFactor(fuel.SupplyOMCost, yInv)
			for _, elem := range ctx.Sets.Elements() {
				q, err := ctx.Vars.SupplyInfra(vars.SupplyInfraKey{Year: yInv, Fuel: fuel.ID, Element: elem})
				if err != nil {
					return lp.Expr{}, err
				}
				e.Add(q, coeff)
			}
		}
		for mi := range ds.Modes {
			m := &ds.Modes[mi]
			coeff := df*m.InfraExpansionCost[yi] + omFactor(m.InfraOMCost, yInv)
			for _, elem := range ctx.Sets.Elements() {
				q, err := ctx.Vars.ModeInfra(vars.ModeInfraKey{Year: yInv, Mode: m.ID, Element: elem})
				if err != nil {
					return lp.Expr{}, err
				}
				e.Add(q, coeff)
			}
		}
	}
	return e, nil
}

// budgetPenaltyCost prices the soft-budget slack pair.
func budgetPenaltyCost(ctx *constraints.Context) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr
	for _, y := range p.Years() {
		df := p.DiscountFactor(y)
		for ri := range ds.Odpairs {
			bk := vars.BudgetKey{Year: y, Odpair: ds.Odpairs[ri].ID}
			bplus, err := ctx.Vars.BudgetPlus(bk)
			if err != nil {
				return lp.Expr{}, err
			}
			bminus, err := ctx.Vars.BudgetMinus(bk)
			if err != nil {
				return lp.Expr{}, err
			}
			e.Add(bplus, df*p.BudgetPenalty)
			e.Add(bminus, df*p.BudgetPenalty)
		}
	}
	return e, nil
}
