package constraints

import (
	"transpath/internal/indexset"
	"transpath/internal/vars"
)

// DeclareVariables declares every variable family over its pre-filtered
// index set, in deterministic order. Constraint generators only ever look
// keys up; all declaration happens here.
func DeclareVariables(ctx *Context) {
	ds := ctx.Data
	p := ds.Params
	sets := ctx.Sets
	reg := ctx.Vars

	for _, y := range p.Years() {
		for _, t := range sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			for _, mv := range sets.VehiclesFor(r) {
				for _, k := range FlowKeys(ctx, y, t, mv) {
					reg.DeclareFlow(k)
				}
			}
		}
	}

	// Stock families exist only for fleet-sized vehicles. Levelized modes
	// have no stock at all, which pins their fleet to zero structurally.
	for ri := range ds.Odpairs {
		r := &ds.Odpairs[ri]
		for _, mv := range sets.VehiclesFor(r) {
			if mv.Synthetic {
				continue
			}
			tv := ds.TechVehicle(mv.TechVehicle)
			for _, g := range p.Generations() {
				for _, y := range p.Years() {
					sk := vars.StockKey{Year: y, Odpair: r.ID, TechVehicle: tv.ID, Gen: g}
					if sets.WithinLife(tv, y, g) {
						reg.DeclareStock(sk)
					}
					if sets.CanRetire(tv, y, g) {
						reg.DeclareStockExist(sk)
						reg.DeclareStockMinus(sk)
					}
					if g == y {
						if ctx.IntegerFleet {
							reg.DeclareStockPlusInt(sk)
						} else {
							reg.DeclareStockPlus(sk)
						}
					}
				}
			}
		}
	}

	for _, y := range p.Years() {
		for _, t := range sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			seen := map[vars.EnergyKey]bool{}
			for _, mv := range sets.VehiclesFor(r) {
				if mv.Synthetic {
					continue
				}
				tv := ds.TechVehicle(mv.TechVehicle)
				for _, pt := range sets.Points(t) {
					ek := vars.EnergyKey{Year: y, Odpair: t.Odpair, Path: t.Path, Element: pt.Element, TechVehicle: tv.ID}
					if !seen[ek] {
						seen[ek] = true
						reg.DeclareEnergy(ek)
					}
				}
				for _, g := range p.Generations() {
					if !sets.WithinLife(tv, y, g) {
						continue
					}
					for _, pt := range sets.Points(t) {
						stk := vars.StateKey{Year: y, Odpair: t.Odpair, Path: t.Path, Pos: pt.Pos, TechVehicle: tv.ID, Gen: g}
						reg.DeclareSoC(stk)
						reg.DeclareTravelTime(stk)
						if pt.Pos > 0 {
							reg.DeclareCharge(stk)
							reg.DeclareWait(stk)
						}
					}
				}
			}
		}
	}

	elems := sets.Elements()
	for _, y := range p.Years() {
		if !p.IsInvestmentYear(y) {
			continue
		}
		for ti := range ds.Technologies {
			for _, e := range elems {
				reg.DeclareFuelInfra(vars.FuelInfraKey{Year: y, Technology: ds.Technologies[ti].ID, Element: e})
			}
		}
		for fi := range ds.Fuels {
			for _, e := range elems {
				reg.DeclareSupplyInfra(vars.SupplyInfraKey{Year: y, Fuel: ds.Fuels[fi].ID, Element: e})
			}
		}
		for mi := range ds.Modes {
			for _, e := range elems {
				reg.DeclareModeInfra(vars.ModeInfraKey{Year: y, Mode: ds.Modes[mi].ID, Element: e})
			}
		}
	}

	for _, y := range p.Years() {
		for ri := range ds.Odpairs {
			bk := vars.BudgetKey{Year: y, Odpair: ds.Odpairs[ri].ID}
			reg.DeclareBudgetPlus(bk)
			reg.DeclareBudgetMinus(bk)
		}
	}
}

// FlowKeys enumerates the flow keys declared for one (year, trip, carrier):
// one per operable in-lifetime vintage for fleet-sized vehicles, a single
// degenerate vintage (g == y) for levelized modes. Declaration, every
// generator that sums flow, and the objective all go through this function.
func FlowKeys(ctx *Context, y int, t indexset.Trip, mv indexset.ModeVehicle) []vars.FlowKey {
	if mv.Synthetic {
		return []vars.FlowKey{{
			Year: y, Odpair: t.Odpair, Path: t.Path,
			Mode: mv.Mode, TechVehicle: mv.TechVehicle, Gen: y,
		}}
	}
	tv := ctx.Data.TechVehicle(mv.TechVehicle)
	keys := make([]vars.FlowKey, 0, ctx.Data.Params.NumGenerations())
	for _, g := range ctx.Data.Params.Generations() {
		if ctx.Sets.WithinLife(tv, y, g) {
			keys = append(keys, vars.FlowKey{
				Year: y, Odpair: t.Odpair, Path: t.Path,
				Mode: mv.Mode, TechVehicle: mv.TechVehicle, Gen: g,
			})
		}
	}
	return keys
}
