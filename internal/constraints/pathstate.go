package constraints

import (
	"fmt"

	"transpath/internal/lp"
	"transpath/internal/vars"
)

// PathState emits the per-trip travel-time and state-of-charge recurrences
// along every path sequence. Both are forward accumulations: the origin
// pins tt to zero and soc to a full battery, and every later position gets
// exactly one equality row each — an unconstrained interior node would let
// the trip teleport, so none may be skipped.
//
//	tt[i]  = tt[i-1]  + seg/speed + charge[i]/peak + wait[i]
//	soc[i] = soc[i-1] - cons·seg  + charge[i]
//
// wait is the nonnegative slack that absorbs mandated rest time; charge is
// the energy taken on at position i, capped indirectly by the battery row.
func PathState(ctx *Context) error {
	ds := ctx.Data
	p := ds.Params
	for _, y := range p.Years() {
		for _, t := range ctx.Sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			speed := ds.RegionType(r.RegionTypeID).SpeedKmh
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
					cap := tv.BatteryCapKWh[gi]
					peak := tv.PeakFuelingKW[gi]
					cons := tv.SpecCons[gi]

					pts := ctx.Sets.Points(t)
					for _, pt := range pts {
						sk := vars.StateKey{Year: y, Odpair: t.Odpair, Path: t.Path, Pos: pt.Pos, TechVehicle: tv.ID, Gen: g}
						tt, err := ctx.Vars.TravelTime(sk)
						if err != nil {
							return err
						}
						soc, err := ctx.Vars.SoC(sk)
						if err != nil {
							return err
						}

						if pt.Pos == 0 {
							var e lp.Expr
							e.Add(tt, 1)
							ctx.M.AddConstr(fmt.Sprintf("tt_origin%s", sk), e, lp.EQ, 0)

							var es lp.Expr
							es.Add(soc, 1)
							ctx.M.AddConstr(fmt.Sprintf("soc_origin%s", sk), es, lp.EQ, cap)
							continue
						}

						prev := sk
						prev.Pos = pt.Pos - 1
						ttPrev, err := ctx.Vars.TravelTime(prev)
						if err != nil {
							return err
						}
						socPrev, err := ctx.Vars.SoC(prev)
						if err != nil {
							return err
						}
						charge, err := ctx.Vars.Charge(sk)
						if err != nil {
							return err
						}
						wait, err := ctx.Vars.Wait(sk)
						if err != nil {
							return err
						}

						var et lp.Expr
						et.Add(tt, 1)
						et.Add(ttPrev, -1)
						et.Add(charge, -1/peak)
						et.Add(wait, -1)
						ctx.M.AddConstr(fmt.Sprintf("tt_step%s", sk), et, lp.EQ, pt.SegKm/speed)

						var es lp.Expr
						es.Add(soc, 1)
						es.Add(socPrev, -1)
						es.Add(charge, -1)
						ctx.M.AddConstr(fmt.Sprintf("soc_step%s", sk), es, lp.EQ, -cons*pt.SegKm)

						var ec lp.Expr
						ec.Add(soc, 1)
						ctx.M.AddConstr(fmt.Sprintf("soc_cap%s", sk), ec, lp.LE, cap)
					}
				}
			}
		}
	}
	return nil
}
