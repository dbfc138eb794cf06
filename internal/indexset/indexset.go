// Package indexset derives every composite key set shared by the variable
// registry and the constraint generators. Each feasibility filter is applied
// exactly once here; generators iterate these sets and never re-filter
// inline.
package indexset

import (
	"sort"

	"transpath/internal/model"
)

// Trip is one (odpair, candidate path) pair. The product dimension is
// implied by the odpair.
type Trip struct {
	Odpair int
	Path   int
}

// TripPoint is a trip expanded to one position along its path sequence.
// SegKm is the distance covered arriving at this element from the previous
// one (zero at the origin and at point elements).
type TripPoint struct {
	Odpair  int
	Path    int
	Pos     int
	Element int
	SegKm   float64
}

// ModeVehicle pairs a mode with a vehicle that can operate under it.
// Levelized modes (no fleet sizing) carry exactly one synthetic vehicle id
// so that flow variables stay uniformly indexed.
type ModeVehicle struct {
	Mode        int
	TechVehicle int
	Synthetic   bool
}

// YearGen is a feasible (operating year, vintage) pair.
type YearGen struct {
	Year int
	Gen  int
}

// idAllocator hands out synthetic vehicle ids deterministically. Threaded
// explicitly; never a package-level counter.
type idAllocator struct{ next int }

func (a idAllocator) alloc() (int, idAllocator) {
	return a.next, idAllocator{next: a.next + 1}
}

// Sets is the full index space, built once per dataset and shared read-only
// by every generator.
type Sets struct {
	ds *model.Dataset

	Trips      []Trip
	TripPoints []TripPoint
	YearGens   []YearGen

	// ModeVehicles is ordered by mode id, then vehicle id, synthetic last
	// within each mode. mvByProduct narrows it to vehicles whose type
	// carries the product (synthetic entries serve every product).
	ModeVehicles []ModeVehicle
	mvByProduct  map[int][]ModeVehicle

	// pointsByTrip slices TripPoints per trip, in sequence order.
	pointsByTrip map[Trip][]TripPoint

	pseudoByMode map[int]int

	// elements is the sorted distinct set of element ids on any path.
	elements []int
}

// Build derives all sets. The dataset must already be resolved.
func Build(ds *model.Dataset) *Sets {
	s := &Sets{
		ds:           ds,
		mvByProduct:  map[int][]ModeVehicle{},
		pointsByTrip: map[Trip][]TripPoint{},
		pseudoByMode: map[int]int{},
	}

	for i := range ds.Odpairs {
		r := &ds.Odpairs[i]
		for _, kid := range r.PathIDs {
			trip := Trip{Odpair: r.ID, Path: kid}
			s.Trips = append(s.Trips, trip)
			k := ds.Path(kid)
			pts := make([]TripPoint, 0, len(k.Sequence))
			for pos, eid := range k.Sequence {
				seg := 0.0
				if pos > 0 {
					seg = ds.Element(eid).LengthKm
				}
				pts = append(pts, TripPoint{
					Odpair: r.ID, Path: kid, Pos: pos, Element: eid, SegKm: seg,
				})
			}
			s.pointsByTrip[trip] = pts
			s.TripPoints = append(s.TripPoints, pts...)
		}
	}

	p := ds.Params
	for _, y := range p.Years() {
		for _, g := range p.Generations() {
			if p.Operable(y, g) {
				s.YearGens = append(s.YearGens, YearGen{Year: y, Gen: g})
			}
		}
	}

	// Synthetic ids start above the highest real vehicle id.
	alloc := idAllocator{next: 0}
	for i := range ds.TechVehicles {
		if id := ds.TechVehicles[i].ID; id >= alloc.next {
			alloc = idAllocator{next: id + 1}
		}
	}

	modeIDs := make([]int, 0, len(ds.Modes))
	for i := range ds.Modes {
		modeIDs = append(modeIDs, ds.Modes[i].ID)
	}
	sort.Ints(modeIDs)
	for _, mid := range modeIDs {
		m := ds.Mode(mid)
		if m.QuantifyByVehicles {
			tvIDs := make([]int, 0)
			for i := range ds.TechVehicles {
				tv := &ds.TechVehicles[i]
				if ds.VehicleType(tv.VehicleTypeID).ModeID == mid {
					tvIDs = append(tvIDs, tv.ID)
				}
			}
			sort.Ints(tvIDs)
			for _, tvID := range tvIDs {
				s.ModeVehicles = append(s.ModeVehicles, ModeVehicle{Mode: mid, TechVehicle: tvID})
			}
			continue
		}
		var id int
		id, alloc = alloc.alloc()
		s.pseudoByMode[mid] = id
		s.ModeVehicles = append(s.ModeVehicles, ModeVehicle{Mode: mid, TechVehicle: id, Synthetic: true})
	}

	for i := range ds.Products {
		pid := ds.Products[i].ID
		for _, mv := range s.ModeVehicles {
			if mv.Synthetic {
				s.mvByProduct[pid] = append(s.mvByProduct[pid], mv)
				continue
			}
			tv := ds.TechVehicle(mv.TechVehicle)
			if ds.VehicleType(tv.VehicleTypeID).ProductID == pid {
				s.mvByProduct[pid] = append(s.mvByProduct[pid], mv)
			}
		}
	}

	seen := map[int]bool{}
	for _, pt := range s.TripPoints {
		if !seen[pt.Element] {
			seen[pt.Element] = true
			s.elements = append(s.elements, pt.Element)
		}
	}
	sort.Ints(s.elements)

	return s
}

// Elements returns the sorted distinct element ids appearing on any
// candidate path. Infrastructure variables are declared over this set.
func (s *Sets) Elements() []int { return s.elements }

// VehiclesFor returns the mode/vehicle pairs eligible to carry the given
// odpair's product.
func (s *Sets) VehiclesFor(r *model.Odpair) []ModeVehicle {
	return s.mvByProduct[r.ProductID]
}

// Points returns the trip's path positions in sequence order.
func (s *Sets) Points(t Trip) []TripPoint { return s.pointsByTrip[t] }

// PseudoVehicle returns the synthetic vehicle id of a levelized mode and
// whether the mode has one.
func (s *Sets) PseudoVehicle(modeID int) (int, bool) {
	id, ok := s.pseudoByMode[modeID]
	return id, ok
}

// Operable reports whether generation g may operate in year y. This is the
// single vintage predicate; generators must guard with it instead of
// comparing years inline.
func (s *Sets) Operable(y, g int) bool { return s.ds.Params.Operable(y, g) }

// WithinLife reports whether a generation-g vehicle is inside its operating
// window in year y: operable and age strictly below the generation's
// lifetime. Declared once; used both to declare stock/flow variables and to
// guard every constraint that touches them.
func (s *Sets) WithinLife(tv *model.TechVehicle, y, g int) bool {
	if !s.ds.Params.Operable(y, g) {
		return false
	}
	return y-g < tv.Lifetime[s.ds.Params.GenIndex(g)]
}

// AtRetirement reports whether year y is exactly the forced-retirement
// boundary for generation g: age == lifetime.
func (s *Sets) AtRetirement(tv *model.TechVehicle, y, g int) bool {
	if !s.ds.Params.Operable(y, g) {
		return false
	}
	return y-g == tv.Lifetime[s.ds.Params.GenIndex(g)]
}

// CanRetire reports whether retirements of generation g may occur in year
// y: age between 1 and lifetime inclusive. Retiring in the purchase year is
// not allowed.
func (s *Sets) CanRetire(tv *model.TechVehicle, y, g int) bool {
	if !s.ds.Params.Operable(y, g) {
		return false
	}
	age := y - g
	return age >= 1 && age <= tv.Lifetime[s.ds.Params.GenIndex(g)]
}

// GensOperableIn lists the vintages operable in year y, oldest first.
func (s *Sets) GensOperableIn(y int) []int {
	p := s.ds.Params
	gs := make([]int, 0, p.NumGenerations())
	for _, g := range p.Generations() {
		if p.Operable(y, g) {
			gs = append(gs, g)
		}
	}
	return gs
}
