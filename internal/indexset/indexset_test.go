package indexset

import (
	"testing"

	"transpath/internal/model/modeltest"
)

func TestYearGensRespectVintagePredicate(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{WithRail: true})
	s := Build(ds)
	for _, yg := range s.YearGens {
		if yg.Gen > yg.Year {
			t.Fatalf("infeasible pair (%d, %d) in YearGens", yg.Year, yg.Gen)
		}
	}
	// 2025: gens 2023..2025; 2026 adds 2026; 2027 adds 2027.
	if got, want := len(s.YearGens), 3+4+5; got != want {
		t.Fatalf("len(YearGens) = %d, want %d", got, want)
	}
}

func TestTripPointsCarrySegmentDistances(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{EdgeKm: 50})
	s := Build(ds)
	pts := s.Points(Trip{Odpair: modeltest.OdpairID, Path: modeltest.PathID})
	if len(pts) != 3 {
		t.Fatalf("points = %d, want 3", len(pts))
	}
	if pts[0].SegKm != 0 {
		t.Fatalf("origin segment = %v, want 0", pts[0].SegKm)
	}
	if pts[1].SegKm != 50 {
		t.Fatalf("edge segment = %v, want 50", pts[1].SegKm)
	}
	if pts[2].SegKm != 0 {
		t.Fatalf("destination node segment = %v, want 0", pts[2].SegKm)
	}
}

func TestLevelizedModeGetsSyntheticVehicle(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{WithRail: true})
	s := Build(ds)

	id, ok := s.PseudoVehicle(modeltest.RailModeID)
	if !ok {
		t.Fatalf("rail has no synthetic vehicle")
	}
	if id <= modeltest.TechVehicleID {
		t.Fatalf("synthetic id %d collides with real vehicle ids", id)
	}
	if _, ok := s.PseudoVehicle(modeltest.RoadModeID); ok {
		t.Fatalf("vehicle-sized mode must not get a synthetic vehicle")
	}

	mvs := s.VehiclesFor(ds.OdpairByID(modeltest.OdpairID))
	var real, synth int
	for _, mv := range mvs {
		if mv.Synthetic {
			synth++
		} else {
			real++
		}
	}
	if real != 1 || synth != 1 {
		t.Fatalf("eligible vehicles = %d real, %d synthetic; want 1 and 1", real, synth)
	}
}

func TestLifetimePredicates(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{Lifetime: 3, Horizon: 6})
	s := Build(ds)
	tv := ds.TechVehicle(modeltest.TechVehicleID)
	g := 2025

	cases := []struct {
		year                            int
		withinLife, atRetire, canRetire bool
	}{
		{2024, false, false, false}, // not yet available
		{2025, true, false, false},  // purchase year, age 0
		{2026, true, false, true},
		{2027, true, false, true},
		{2028, false, true, true}, // age == lifetime: forced retirement
		{2029, false, false, false},
	}
	for _, c := range cases {
		if got := s.WithinLife(tv, c.year, g); got != c.withinLife {
			t.Errorf("WithinLife(%d, %d) = %v, want %v", c.year, g, got, c.withinLife)
		}
		if got := s.AtRetirement(tv, c.year, g); got != c.atRetire {
			t.Errorf("AtRetirement(%d, %d) = %v, want %v", c.year, g, got, c.atRetire)
		}
		if got := s.CanRetire(tv, c.year, g); got != c.canRetire {
			t.Errorf("CanRetire(%d, %d) = %v, want %v", c.year, g, got, c.canRetire)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a := Build(modeltest.Dataset(t, modeltest.Config{WithRail: true}))
	b := Build(modeltest.Dataset(t, modeltest.Config{WithRail: true}))
	if len(a.ModeVehicles) != len(b.ModeVehicles) {
		t.Fatalf("mode vehicle counts differ")
	}
	for i := range a.ModeVehicles {
		if a.ModeVehicles[i] != b.ModeVehicles[i] {
			t.Fatalf("mode vehicle order differs at %d: %+v vs %+v", i, a.ModeVehicles[i], b.ModeVehicles[i])
		}
	}
	if len(a.Elements()) != len(b.Elements()) {
		t.Fatalf("element sets differ")
	}
}
