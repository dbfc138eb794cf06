package constraints

import (
	"fmt"
	"sort"

	"transpath/internal/lp"
	"transpath/internal/vars"
)

// ModeInfrastructure sizes transport capacity per mode and element: the
// flow routed through an element under a mode must stay within initial
// capacity plus cumulative additions from investment years.
func ModeInfrastructure(ctx *Context) error {
	ds := ctx.Data
	p := ds.Params

	initial := map[vars.ModeInfraKey]float64{}
	for _, inf := range ds.InitialModeInfr {
		initial[vars.ModeInfraKey{Mode: inf.ModeID, Element: inf.ElementID}] += inf.InstalledUkm
	}

	for _, y := range p.Years() {
		// throughput[mode][element]
		throughput := map[int]map[int]*lp.Expr{}
		for _, t := range ctx.Sets.Trips {
			r := ds.OdpairByID(t.Odpair)
			for _, mv := range ctx.Sets.VehiclesFor(r) {
				for _, fk := range FlowKeys(ctx, y, t, mv) {
					f, err := ctx.Vars.Flow(fk)
					if err != nil {
						return err
					}
					seen := map[int]bool{}
					for _, pt := range ctx.Sets.Points(t) {
						if seen[pt.Element] {
							continue
						}
						seen[pt.Element] = true
						byElem := throughput[mv.Mode]
						if byElem == nil {
							byElem = map[int]*lp.Expr{}
							throughput[mv.Mode] = byElem
						}
						e := byElem[pt.Element]
						if e == nil {
							e = &lp.Expr{}
							byElem[pt.Element] = e
						}
						e.Add(f, 1)
					}
				}
			}
		}

		for mi := range ds.Modes {
			m := &ds.Modes[mi]
			byElem := throughput[m.ID]
			elems := make([]int, 0, len(byElem))
			for e := range byElem {
				elems = append(elems, e)
			}
			sort.Ints(elems)
			for _, elem := range elems {
				row := *byElem[elem]
				for yy := p.FirstYear; yy <= y; yy++ {
					if !p.IsInvestmentYear(yy) {
						continue
					}
					q, err := ctx.Vars.ModeInfra(vars.ModeInfraKey{Year: yy, Mode: m.ID, Element: elem})
					if err != nil {
						return err
					}
					row.Add(q, -1)
				}
				ctx.M.AddConstr(
					fmt.Sprintf("mode_infr[y=%d m=%d e=%d]", y, m.ID, elem),
					row, lp.LE, initial[vars.ModeInfraKey{Mode: m.ID, Element: elem}],
				)
			}
		}
	}
	return nil
}
