package constraints

import (
	"fmt"

	"transpath/internal/lp"
	"transpath/internal/vars"
)

// ModeShiftLimit bounds the year-over-year change of total flow per mode by
// alpha·current + beta·prior, emitted as a symmetric pair of ≤ rows:
//
//	 (T[y] - T[y-1]) ≤ alpha·T[y] + beta·T[y-1]
//	-(T[y] - T[y-1]) ≤ alpha·T[y] + beta·T[y-1]
//
// Disabled when both coefficients are zero.
func ModeShiftLimit(ctx *Context) error {
	p := ctx.Data.Params
	if p.AlphaMode == 0 && p.BetaMode == 0 {
		return nil
	}
	for mi := range ctx.Data.Modes {
		m := &ctx.Data.Modes[mi]
		for _, y := range p.Years() {
			if y == p.FirstYear {
				continue
			}
			cur, err := modeFlowExpr(ctx, m.ID, y)
			if err != nil {
				return err
			}
			prior, err := modeFlowExpr(ctx, m.ID, y-1)
			if err != nil {
				return err
			}
			emitShiftPair(ctx, fmt.Sprintf("mode_shift[y=%d m=%d]", y, m.ID), cur, prior, p.AlphaMode, p.BetaMode)
		}
	}
	return nil
}

// TechShiftLimit is the same rule applied to aggregate fleet per drivetrain
// technology.
func TechShiftLimit(ctx *Context) error {
	p := ctx.Data.Params
	if p.AlphaTech == 0 && p.BetaTech == 0 {
		return nil
	}
	for ti := range ctx.Data.Technologies {
		tech := &ctx.Data.Technologies[ti]
		for _, y := range p.Years() {
			if y == p.FirstYear {
				continue
			}
			cur, err := techStockExpr(ctx, tech.ID, y)
			if err != nil {
				return err
			}
			prior, err := techStockExpr(ctx, tech.ID, y-1)
			if err != nil {
				return err
			}
			emitShiftPair(ctx, fmt.Sprintf("tech_shift[y=%d t=%d]", y, tech.ID), cur, prior, p.AlphaTech, p.BetaTech)
		}
	}
	return nil
}

func emitShiftPair(ctx *Context, label string, cur, prior lp.Expr, alpha, beta float64) {
	var up lp.Expr
	up.AddExpr(cur, 1-alpha)
	up.AddExpr(prior, -(1 + beta))
	ctx.M.AddConstr(label+"_up", up, lp.LE, 0)

	var down lp.Expr
	down.AddExpr(cur, -(1 + alpha))
	down.AddExpr(prior, 1-beta)
	ctx.M.AddConstr(label+"_down", down, lp.LE, 0)
}

// modeFlowExpr sums all flow carried under one mode in one year.
func modeFlowExpr(ctx *Context, modeID, y int) (lp.Expr, error) {
	var e lp.Expr
	for _, t := range ctx.Sets.Trips {
		r := ctx.Data.OdpairByID(t.Odpair)
		for _, mv := range ctx.Sets.VehiclesFor(r) {
			if mv.Mode != modeID {
				continue
			}
			for _, fk := range FlowKeys(ctx, y, t, mv) {
				v, err := ctx.Vars.Flow(fk)
				if err != nil {
					return lp.Expr{}, err
				}
				e.Add(v, 1)
			}
		}
	}
	return e, nil
}

// techStockExpr sums the fleet of one technology over all odpairs and
// operable vintages in one year.
func techStockExpr(ctx *Context, techID, y int) (lp.Expr, error) {
	var e lp.Expr
	ds := ctx.Data
	for ri := range ds.Odpairs {
		r := &ds.Odpairs[ri]
		for _, mv := range ctx.Sets.VehiclesFor(r) {
			if mv.Synthetic {
				continue
			}
			tv := ds.TechVehicle(mv.TechVehicle)
			if tv.TechnologyID != techID {
				continue
			}
			for _, g := range ds.Params.Generations() {
				if !ctx.Sets.WithinLife(tv, y, g) {
					continue
				}
				h, err := ctx.Vars.Stock(vars.StockKey{Year: y, Odpair: r.ID, TechVehicle: tv.ID, Gen: g})
				if err != nil {
					return lp.Expr{}, err
				}
				e.Add(h, 1)
			}
		}
	}
	return e, nil
}
