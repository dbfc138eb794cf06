package constraints

import (
	"fmt"
	"sort"

	"transpath/internal/lp"
	"transpath/internal/model"
	"transpath/internal/vars"
)

// FuelingDemand couples aggregate delivered energy to the flow it powers:
// per (year, trip, vehicle), energy delivered across the path's elements
// equals the energy the assigned flow consumes over the path length, with
// specific consumption resolved per vintage.
func FuelingDemand(ctx *Context) error {
	ds := ctx.Data
	p := ds.Params
	for _, y := range p.Years() {
		for _, t := range ctx.Sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			length := ds.Path(t.Path).LengthKm
			for _, mv := range ctx.Sets.VehiclesFor(r) {
				if mv.Synthetic {
					continue
				}
				tv := ds.TechVehicle(mv.TechVehicle)

				var e lp.Expr
				seen := map[int]bool{}
				for _, pt := range ctx.Sets.Points(t) {
					if seen[pt.Element] {
						continue
					}
					seen[pt.Element] = true
					s, err := ctx.Vars.Energy(vars.EnergyKey{Year: y, Odpair: t.Odpair, Path: t.Path, Element: pt.Element, TechVehicle: tv.ID})
					if err != nil {
						return err
					}
					e.Add(s, 1)
				}
				for _, fk := range FlowKeys(ctx, y, t, mv) {
					f, err := ctx.Vars.Flow(fk)
					if err != nil {
						return err
					}
					gi := p.GenIndex(fk.Gen)
					e.Add(f, -tv.SpecCons[gi]*length/tv.PayloadT[gi])
				}
				ctx.M.AddConstr(
					fmt.Sprintf("fueling_demand[y=%d r=%d k=%d v=%d]", y, t.Odpair, t.Path, tv.ID),
					e, lp.EQ, 0,
				)
			}
		}
	}
	return nil
}

// FuelingInfrastructure sizes fueling capacity per technology and element:
// peak demand (annual energy scaled by gamma over the hours of a year) must
// stay within initial capacity plus additions from investment years up to
// and including the current year.
func FuelingInfrastructure(ctx *Context) error {
	ds := ctx.Data
	initial := map[vars.FuelInfraKey]float64{}
	for _, inf := range ds.InitialFueling {
		initial[vars.FuelInfraKey{Technology: inf.TechnologyID, Element: inf.ElementID}] += inf.InstalledKW
	}
	return infraRows(ctx, "fueling_infr", func(tv *model.TechVehicle) []int {
		return []int{tv.TechnologyID}
	}, func(y, group, elem int) (lp.Expr, float64, error) {
		var e lp.Expr
		for yy := ds.Params.FirstYear; yy <= y; yy++ {
			if !ds.Params.IsInvestmentYear(yy) {
				continue
			}
			q, err := ctx.Vars.FuelInfra(vars.FuelInfraKey{Year: yy, Technology: group, Element: elem})
			if err != nil {
				return lp.Expr{}, 0, err
			}
			e.Add(q, 1)
		}
		return e, initial[vars.FuelInfraKey{Technology: group, Element: elem}], nil
	}, func(i int) int { return ds.Technologies[i].ID }, len(ds.Technologies))
}

// SupplyInfrastructure is the upstream counterpart sized per fuel: grid or
// depot supply at an element must cover the peak demand of every technology
// drawing that fuel.
func SupplyInfrastructure(ctx *Context) error {
	ds := ctx.Data
	initial := map[vars.SupplyInfraKey]float64{}
	for _, inf := range ds.InitialSupply {
		initial[vars.SupplyInfraKey{Fuel: inf.FuelID, Element: inf.ElementID}] += inf.InstalledKW
	}
	return infraRows(ctx, "supply_infr", func(tv *model.TechVehicle) []int {
		return []int{ds.Technology(tv.TechnologyID).FuelID}
	}, func(y, group, elem int) (lp.Expr, float64, error) {
		var e lp.Expr
		for yy := ds.Params.FirstYear; yy <= y; yy++ {
			if !ds.Params.IsInvestmentYear(yy) {
				continue
			}
			q, err := ctx.Vars.SupplyInfra(vars.SupplyInfraKey{Year: yy, Fuel: group, Element: elem})
			if err != nil {
				return lp.Expr{}, 0, err
			}
			e.Add(q, 1)
		}
		return e, initial[vars.SupplyInfraKey{Fuel: group, Element: elem}], nil
	}, func(i int) int { return ds.Fuels[i].ID }, len(ds.Fuels))
}

// infraRows emits, for every (year, group, element) with any energy demand,
//
//	gamma/8760 · Σ s  -  Σ additions  ≤  initial capacity
//
// where the grouping function maps a vehicle to the technology or fuel it
// draws on.
func infraRows(ctx *Context, label string,
	groupsOf func(*model.TechVehicle) []int,
	capacity func(y, group, elem int) (lp.Expr, float64, error),
	groupID func(i int) int, numGroups int,
) error {
	ds := ctx.Data
	p := ds.Params
	peak := p.Gamma / model.HoursPerYear

	for _, y := range p.Years() {
		// demand[group][element] built once per year from the trip points.
		demand := map[int]map[int]*lp.Expr{}
		for _, t := range ctx.Sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			for _, mv := range ctx.Sets.VehiclesFor(r) {
				if mv.Synthetic {
					continue
				}
				tv := ds.TechVehicle(mv.TechVehicle)
				seen := map[int]bool{}
				for _, pt := range ctx.Sets.Points(t) {
					if seen[pt.Element] {
						continue
					}
					seen[pt.Element] = true
					s, err := ctx.Vars.Energy(vars.EnergyKey{Year: y, Odpair: t.Odpair, Path: t.Path, Element: pt.Element, TechVehicle: tv.ID})
					if err != nil {
						return err
					}
					for _, grp := range groupsOf(tv) {
						byElem := demand[grp]
						if byElem == nil {
							byElem = map[int]*lp.Expr{}
							demand[grp] = byElem
						}
						e := byElem[pt.Element]
						if e == nil {
							e = &lp.Expr{}
							byElem[pt.Element] = e
						}
						e.Add(s, peak)
					}
				}
			}
		}

		for i := 0; i < numGroups; i++ {
			grp := groupID(i)
			byElem := demand[grp]
			elems := make([]int, 0, len(byElem))
			for e := range byElem {
				elems = append(elems, e)
			}
			sort.Ints(elems)
			for _, elem := range elems {
				row := *byElem[elem]
				adds, installed, err := capacity(y, grp, elem)
				if err != nil {
					return err
				}
				row.AddExpr(adds, -1)
				ctx.M.AddConstr(
					fmt.Sprintf("%s[y=%d g=%d e=%d]", label, y, grp, elem),
					row, lp.LE, installed,
				)
			}
		}
	}
	return nil
}
