package constraints

import (
	"fmt"

	"transpath/internal/indexset"
	"transpath/internal/lp"
	"transpath/internal/vars"
)

// VehicleSizing requires the fleet of each vintage to be large enough for
// the flow assigned to it: one vehicle of generation g covers
// payload[g] · annual_range[g] unit-km per year. Payload and range are
// generation-indexed, never year-indexed. Levelized modes declare no stock,
// so nothing is emitted for them.
func VehicleSizing(ctx *Context) error {
	ds := ctx.Data
	p := ds.Params
	for _, y := range p.Years() {
		for ri := range ds.Odpairs {
			r := &ds.Odpairs[ri]
			for _, mv := range ctx.Sets.VehiclesFor(r) {
				if mv.Synthetic {
					continue
				}
				tv := ds.TechVehicle(mv.TechVehicle)
				for _, g := range p.Generations() {
					if !ctx.Sets.WithinLife(tv, y, g) {
						continue
					}
					gi := p.GenIndex(g)
					perVehicleUkm := tv.PayloadT[gi] * tv.AnnualRangeKm[gi]

					var e lp.Expr
					h, err := ctx.Vars.Stock(vars.StockKey{Year: y, Odpair: r.ID, TechVehicle: tv.ID, Gen: g})
					if err != nil {
						return err
					}
					e.Add(h, 1)
					for _, kid := range r.PathIDs {
						t := indexset.Trip{Odpair: r.ID, Path: kid}
						fk := vars.FlowKey{Year: y, Odpair: r.ID, Path: kid, Mode: mv.Mode, TechVehicle: tv.ID, Gen: g}
						f, err := ctx.Vars.Flow(fk)
						if err != nil {
							return err
						}
						e.Add(f, -ds.Path(t.Path).LengthKm/perVehicleUkm)
					}
					ctx.M.AddConstr(
						fmt.Sprintf("vehicle_sizing[y=%d r=%d v=%d g=%d]", y, r.ID, tv.ID, g),
						e, lp.GE, 0,
					)
				}
			}
		}
	}
	return nil
}
