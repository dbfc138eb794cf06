package constraints

import (
	"fmt"
	"math"

	"transpath/internal/lp"
	"transpath/internal/vars"
)

// RestBreaks enforces mandatory rest at the designated break elements of a
// path: cumulative travel time on arrival must be at least the pure driving
// time plus one break per completed maximum-drive interval. It references
// the same travel-time variable, under the same vintage guard, as the
// accumulation rows in PathState; the wait slack there is what absorbs the
// mandated rest.
func RestBreaks(ctx *Context) error {
	ds := ctx.Data
	p := ds.Params
	rule := p.Break
	if rule.MaxDriveH <= 0 || rule.BreakH <= 0 {
		return nil
	}

	for _, y := range p.Years() {
		for _, t := range ctx.Sets.Trips {
			breakElems := ds.BreakElements[t.Path]
			if len(breakElems) == 0 {
				continue
			}
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
					dist := 0.0
					for _, pt := range ctx.Sets.Points(t) {
						dist += pt.SegKm
						if pt.Pos == 0 || !isBreakElement(breakElems, pt.Element) {
							continue
						}
						drive := dist / speed
						breaks := math.Floor(drive / rule.MaxDriveH)
						required := drive + breaks*rule.BreakH

						sk := vars.StateKey{Year: y, Odpair: t.Odpair, Path: t.Path, Pos: pt.Pos, TechVehicle: tv.ID, Gen: g}
						tt, err := ctx.Vars.TravelTime(sk)
						if err != nil {
							return err
						}
						var e lp.Expr
						e.Add(tt, 1)
						ctx.M.AddConstr(fmt.Sprintf("rest_break%s", sk), e, lp.GE, required)
					}
				}
			}
		}
	}
	return nil
}

func isBreakElement(elems []int, e int) bool {
	for _, b := range elems {
		if b == e {
			return true
		}
	}
	return false
}
