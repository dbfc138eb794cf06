package constraints

import (
	"fmt"

	"transpath/internal/lp"
	"transpath/internal/vars"
)

// PurchaseBudget bounds cumulative purchase expenditure per odpair, net of
// vehicle subsidies, relative to the cumulative demand served so far. The
// constraint is policy-soft: violations land in the penalty slack pair,
// which the objective prices at Params.BudgetPenalty, so a tight budget can
// never make the model infeasible on its own.
func PurchaseBudget(ctx *Context) error {
	ds := ctx.Data
	p := ds.Params
	for ri := range ds.Odpairs {
		r := &ds.Odpairs[ri]
		fs := ds.FinancialStatus(r.FinancialStatusID)
		cumDemand := 0.0
		for _, y := range p.Years() {
			cumDemand += r.F[p.YearIndex(y)]

			// Cumulative spend: purchases are always of the current
			// vintage, so generation == purchase year throughout.
			var spend lp.Expr
			for yy := p.FirstYear; yy <= y; yy++ {
				for _, mv := range ctx.Sets.VehiclesFor(r) {
					if mv.Synthetic {
						continue
					}
					tv := ds.TechVehicle(mv.TechVehicle)
					hp, err := ctx.Vars.StockPlus(vars.StockKey{Year: yy, Odpair: r.ID, TechVehicle: tv.ID, Gen: yy})
					if err != nil {
						return err
					}
					net := tv.CapitalCost[p.GenIndex(yy)] - ds.SubsidyFor(tv.ID, yy)
					spend.Add(hp, net)
				}
			}

			bk := vars.BudgetKey{Year: y, Odpair: r.ID}
			bplus, err := ctx.Vars.BudgetPlus(bk)
			if err != nil {
				return err
			}
			bminus, err := ctx.Vars.BudgetMinus(bk)
			if err != nil {
				return err
			}

			var upper lp.Expr
			upper.AddExpr(spend, 1)
			upper.Add(bplus, -1)
			ctx.M.AddConstr(
				fmt.Sprintf("budget_upper[y=%d r=%d]", y, r.ID),
				upper, lp.LE, fs.PurchaseBudgetUB*cumDemand,
			)

			var lower lp.Expr
			lower.AddExpr(spend, 1)
			lower.Add(bminus, 1)
			ctx.M.AddConstr(
				fmt.Sprintf("budget_lower[y=%d r=%d]", y, r.ID),
				lower, lp.GE, fs.PurchaseBudgetLB*cumDemand,
			)
		}
	}
	return nil
}
