package constraints

import (
	"fmt"

	"transpath/internal/indexset"
	"transpath/internal/lp"
	"transpath/internal/model"
	"transpath/internal/vars"
)

// Share targets are the optional policy layer: each record ties an
// aggregated subset of flow (or purchases) to a fraction of the scoped
// total. Stacking several simultaneously, or combining them with tight
// shift limits, can produce a genuinely infeasible model; the solve
// boundary reports which policy generators were active for exactly that
// reason.

// ModeShareTargets bounds the flow share of one mode within the scoped
// odpairs:  Σ flow(mode) {≤,≥,=} share · Σ flow(all).
func ModeShareTargets(ctx *Context) error {
	for i := range ctx.Data.ModeShares {
		rec := &ctx.Data.ModeShares[i]
		err := shareRows(ctx, fmt.Sprintf("mode_share[%d]", i), rec.Year, rec.Share, rec.Dir, rec.Scope,
			func(mv indexset.ModeVehicle) bool { return mv.Mode == rec.ModeID })
		if err != nil {
			return err
		}
	}
	return nil
}

// TechnologyShareTargets bounds the flow share carried by vehicles of one
// drivetrain technology. Levelized carriers count toward the total only.
func TechnologyShareTargets(ctx *Context) error {
	for i := range ctx.Data.TechnologyShares {
		rec := &ctx.Data.TechnologyShares[i]
		err := shareRows(ctx, fmt.Sprintf("technology_share[%d]", i), rec.Year, rec.Share, rec.Dir, rec.Scope,
			func(mv indexset.ModeVehicle) bool {
				if mv.Synthetic {
					return false
				}
				return ctx.Data.TechVehicle(mv.TechVehicle).TechnologyID == rec.TechnologyID
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// VehicleTypeShareTargets bounds the flow share of one vehicle type.
func VehicleTypeShareTargets(ctx *Context) error {
	for i := range ctx.Data.VehicleTypeShares {
		rec := &ctx.Data.VehicleTypeShares[i]
		err := shareRows(ctx, fmt.Sprintf("vehicletype_share[%d]", i), rec.Year, rec.Share, rec.Dir, rec.Scope,
			func(mv indexset.ModeVehicle) bool {
				if mv.Synthetic {
					return false
				}
				return ctx.Data.TechVehicle(mv.TechVehicle).VehicleTypeID == rec.VehicleTypeID
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// MarketShareTargets ties new purchases of one techvehicle to a fraction of
// all purchases in the same year, across all odpairs.
func MarketShareTargets(ctx *Context) error {
	ds := ctx.Data
	p := ds.Params
	for i := range ds.MarketShares {
		rec := &ds.MarketShares[i]
		for _, y := range yearsOf(p, rec.Year) {
			var e lp.Expr
			for ri := range ds.Odpairs {
				r := &ds.Odpairs[ri]
				for _, mv := range ctx.Sets.VehiclesFor(r) {
					if mv.Synthetic {
						continue
					}
					sk := vars.StockKey{Year: y, Odpair: r.ID, TechVehicle: mv.TechVehicle, Gen: y}
					hp, err := ctx.Vars.StockPlus(sk)
					if err != nil {
						return err
					}
					coeff := -rec.Share
					if mv.TechVehicle == rec.TechVehicleID {
						coeff += 1
					}
					e.Add(hp, coeff)
				}
			}
			ctx.M.AddConstr(fmt.Sprintf("market_share[%d y=%d]", i, y), e, dirSense(rec.Dir), 0)
		}
	}
	return nil
}

// shareRows emits one row per applicable year:
//
//	Σ flow(selected) - share · Σ flow(scoped total) {dir} 0
func shareRows(ctx *Context, label string, year int, share float64, dir model.BoundDir,
	scope model.ShareScope, selected func(indexset.ModeVehicle) bool,
) error {
	ds := ctx.Data
	for _, y := range yearsOf(ds.Params, year) {
		var e lp.Expr
		for _, t := range ctx.Sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			if !inScope(r, scope) {
				continue
			}
			for _, mv := range ctx.Sets.VehiclesFor(r) {
				coeff := -share
				if selected(mv) {
					coeff += 1
				}
				for _, fk := range FlowKeys(ctx, y, t, mv) {
					f, err := ctx.Vars.Flow(fk)
					if err != nil {
						return err
					}
					e.Add(f, coeff)
				}
			}
		}
		if e.Empty() {
			continue
		}
		ctx.M.AddConstr(fmt.Sprintf("%s[y=%d]", label, y), e, dirSense(dir), 0)
	}
	return nil
}

// yearsOf expands the record convention: year 0 applies the bound to every
// modeled year.
func yearsOf(p model.Params, year int) []int {
	if year == 0 {
		return p.Years()
	}
	return []int{year}
}

func inScope(r *model.Odpair, scope model.ShareScope) bool {
	match := func(ids []int, id int) bool {
		if len(ids) == 0 {
			return true
		}
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	}
	return match(scope.FinancialStatusIDs, r.FinancialStatusID) &&
		match(scope.RegionTypeIDs, r.RegionTypeID)
}

// dirSense maps a policy bound direction onto a row sense: a minimum share
// is a ≥ row, a maximum a ≤ row.
func dirSense(dir model.BoundDir) lp.Sense {
	switch dir {
	case model.BoundMin:
		return lp.GE
	case model.BoundMax:
		return lp.LE
	default:
		return lp.EQ
	}
}
