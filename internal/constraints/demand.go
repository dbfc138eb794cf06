package constraints

import (
	"fmt"

	"transpath/internal/indexset"
	"transpath/internal/lp"
)

// DemandCoverage requires, per odpair and year, that flow summed over all
// candidate paths, carriers and operable vintages meets the year's demand.
// Equality by default; ≥ when the scenario relaxes demand. No penalty
// variable: an uncoverable demand makes the model infeasible.
func DemandCoverage(ctx *Context) error {
	ds := ctx.Data
	sense := lp.EQ
	if ds.Params.RelaxedDemand {
		sense = lp.GE
	}
	for _, y := range ds.Params.Years() {
		for ri := range ds.Odpairs {
			r := &ds.Odpairs[ri]
			var e lp.Expr
			for _, kid := range r.PathIDs {
				t := indexset.Trip{Odpair: r.ID, Path: kid}
				for _, mv := range ctx.Sets.VehiclesFor(r) {
					for _, fk := range FlowKeys(ctx, y, t, mv) {
						v, err := ctx.Vars.Flow(fk)
						if err != nil {
							return err
						}
						e.Add(v, 1)
					}
				}
			}
			ctx.M.AddConstr(
				fmt.Sprintf("demand_coverage[y=%d r=%d]", y, r.ID),
				e, sense, r.F[ds.Params.YearIndex(y)],
			)
		}
	}
	return nil
}
