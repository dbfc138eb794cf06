package constraints

import (
	"fmt"

	"transpath/internal/lp"
	"transpath/internal/model"
)

// EmissionCaps bounds annual CO2 in tonnes, per mode and globally. Fleet
// carriers emit through their fuel (energy × g/kWh); levelized carriers
// through the mode's per-unit-km factor.
func EmissionCaps(ctx *Context) error {
	ds := ctx.Data
	for i := range ds.EmissionCapsMode {
		rec := &ds.EmissionCapsMode[i]
		for _, y := range yearsOf(ds.Params, rec.Year) {
			e, err := emissionExpr(ctx, y, rec.ModeID)
			if err != nil {
				return err
			}
			if e.Empty() {
				continue
			}
			ctx.M.AddConstr(fmt.Sprintf("emission_cap_mode[%d y=%d]", i, y), e, lp.LE, rec.CapT)
		}
	}
	for i := range ds.EmissionCapsTotal {
		rec := &ds.EmissionCapsTotal[i]
		for _, y := range yearsOf(ds.Params, rec.Year) {
			var e lp.Expr
			for mi := range ds.Modes {
				part, err := emissionExpr(ctx, y, ds.Modes[mi].ID)
				if err != nil {
					return err
				}
				e.AddExpr(part, 1)
			}
			if e.Empty() {
				continue
			}
			ctx.M.AddConstr(fmt.Sprintf("emission_cap_total[%d y=%d]", i, y), e, lp.LE, rec.CapT)
		}
	}
	return nil
}

// emissionExpr sums tonnes of CO2 emitted in year y under one mode.
func emissionExpr(ctx *Context, y, modeID int) (lp.Expr, error) {
	ds := ctx.Data
	p := ds.Params
	var e lp.Expr
	for _, t := range ctx.Sets.Trips {
		r := ds.OdpairByID(t.Odpair)
		length := ds.Path(t.Path).LengthKm
		for _, mv := range ctx.Sets.VehiclesFor(r) {
			if mv.Mode != modeID {
				continue
			}
			for _, fk := range FlowKeys(ctx, y, t, mv) {
				f, err := ctx.Vars.Flow(fk)
				if err != nil {
					return lp.Expr{}, err
				}
				var tonnesPerUnit float64
				if mv.Synthetic {
					m := ds.Mode(mv.Mode)
					tonnesPerUnit = m.EmissionFactor[p.YearIndex(y)] * length / model.GramsPerTonne
				} else {
					tv := ds.TechVehicle(mv.TechVehicle)
					gi := p.GenIndex(fk.Gen)
					fuel := ds.FuelOf(tv)
					kwhPerUnit := tv.SpecCons[gi] * length / tv.PayloadT[gi]
					tonnesPerUnit = kwhPerUnit * fuel.EmissionFactor / model.GramsPerTonne
				}
				e.Add(f, tonnesPerUnit)
			}
		}
	}
	return e, nil
}
