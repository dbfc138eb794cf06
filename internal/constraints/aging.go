package constraints

import (
	"fmt"

	"transpath/internal/lp"
	"transpath/internal/model"
	"transpath/internal/vars"
)

// VehicleAging emits the fleet turnover state machine for every
// (odpair, techvehicle, generation) triple:
//
//	h[y] = h_exist[y] + h_plus[y] - h_minus[y]   while age < lifetime
//	h_exist[y] = h[y-1]                          for y > first year
//	h_exist[first year] = initial snapshot       for pre-horizon vintages
//	h_exist[y] = h_minus[y]                      exactly at age == lifetime
//
// Purchases exist only for g == y; retirements only for ages 1..lifetime.
// Beyond the lifetime no fleet variable exists, so operation is forbidden
// structurally rather than by an explicit zero row.
func VehicleAging(ctx *Context) error {
	ds := ctx.Data
	p := ds.Params
	for ri := range ds.Odpairs {
		r := &ds.Odpairs[ri]
		for _, mv := range ctx.Sets.VehiclesFor(r) {
			if mv.Synthetic {
				continue
			}
			tv := ds.TechVehicle(mv.TechVehicle)
			for _, g := range p.Generations() {
				for _, y := range p.Years() {
					if err := agingRows(ctx, r, tv, y, g); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func agingRows(ctx *Context, r *model.Odpair, tv *model.TechVehicle, y, g int) error {
	ds := ctx.Data
	p := ds.Params
	sets := ctx.Sets
	reg := ctx.Vars
	sk := vars.StockKey{Year: y, Odpair: r.ID, TechVehicle: tv.ID, Gen: g}

	// Balance while the vintage is operable and within its lifetime. The
	// age == 0 branch (g == y) has purchases and nothing else; later ages
	// have carryover and retirements and no purchases.
	if sets.WithinLife(tv, y, g) {
		var e lp.Expr
		h, err := reg.Stock(sk)
		if err != nil {
			return err
		}
		e.Add(h, 1)
		if g == y {
			hp, err := reg.StockPlus(sk)
			if err != nil {
				return err
			}
			e.Add(hp, -1)
		}
		if sets.CanRetire(tv, y, g) {
			he, err := reg.StockExist(sk)
			if err != nil {
				return err
			}
			hm, err := reg.StockMinus(sk)
			if err != nil {
				return err
			}
			e.Add(he, -1)
			e.Add(hm, 1)
		}
		ctx.M.AddConstr(fmt.Sprintf("fleet_balance[y=%d r=%d v=%d g=%d]", y, r.ID, tv.ID, g), e, lp.EQ, 0)
	}

	if sets.CanRetire(tv, y, g) {
		he, err := reg.StockExist(sk)
		if err != nil {
			return err
		}

		if y == p.FirstYear {
			// Carryover in the first modeled year is the external
			// snapshot, never derived recursively.
			var e lp.Expr
			e.Add(he, 1)
			ctx.M.AddConstr(
				fmt.Sprintf("initial_stock[r=%d v=%d g=%d]", r.ID, tv.ID, g),
				e, lp.EQ, initialStock(r, tv.ID, g),
			)
		} else {
			prev, err := reg.Stock(vars.StockKey{Year: y - 1, Odpair: r.ID, TechVehicle: tv.ID, Gen: g})
			if err != nil {
				return err
			}
			var e lp.Expr
			e.Add(he, 1)
			e.Add(prev, -1)
			ctx.M.AddConstr(fmt.Sprintf("fleet_carryover[y=%d r=%d v=%d g=%d]", y, r.ID, tv.ID, g), e, lp.EQ, 0)
		}

		// Forced retirement exactly at the lifetime boundary: everything
		// carried over leaves the fleet this year.
		if sets.AtRetirement(tv, y, g) {
			hm, err := reg.StockMinus(sk)
			if err != nil {
				return err
			}
			var e lp.Expr
			e.Add(he, 1)
			e.Add(hm, -1)
			ctx.M.AddConstr(fmt.Sprintf("forced_retirement[y=%d r=%d v=%d g=%d]", y, r.ID, tv.ID, g), e, lp.EQ, 0)
		}
	}
	return nil
}

func initialStock(r *model.Odpair, tvID, g int) float64 {
	total := 0.0
	for _, ivs := range r.InitialStock {
		if ivs.TechVehicleID == tvID && ivs.Generation == g {
			total += ivs.Stock
		}
	}
	return total
}
