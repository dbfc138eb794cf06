package engine_test

import (
	"strings"
	"testing"

	"transpath/internal/engine"
	"transpath/internal/model"
	"transpath/internal/model/modeltest"
)

func TestAssembleCorridor(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{WithRail: true})
	res, err := engine.Assemble(ds, engine.Scenario{Name: "base"})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if res.Stats.Rows == 0 || res.Stats.Vars == 0 {
		t.Fatalf("empty model: %+v", res.Stats)
	}
	if res.Stats.IntVars != 0 {
		t.Fatalf("continuous scenario declared %d integer variables", res.Stats.IntVars)
	}
	if len(res.ActivePolicies) != 0 {
		t.Fatalf("no policy data but active policies = %v", res.ActivePolicies)
	}
	if len(res.Model.Objective().Terms) == 0 {
		t.Fatalf("objective is empty")
	}
}

func TestAssembleIntegerFleet(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{})
	res, err := engine.Assemble(ds, engine.Scenario{Name: "mip", IntegerFleet: true})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	// One purchase variable per modeled year.
	if res.Stats.IntVars != 3 {
		t.Fatalf("integer variables = %d, want 3", res.Stats.IntVars)
	}
}

func TestAssembleReportsActivePolicies(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{WithRail: true})
	ds.ModeShares = []model.ModeShare{
		{ModeID: modeltest.RailModeID, Share: 0.2, Dir: model.BoundMin},
	}
	if err := ds.Resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	res, err := engine.Assemble(ds, engine.Scenario{Name: "shift"})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(res.ActivePolicies) != 1 || res.ActivePolicies[0] != "mode_share" {
		t.Fatalf("active policies = %v, want [mode_share]", res.ActivePolicies)
	}
}

func TestAssembleHonorsDisabledPolicies(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{WithRail: true})
	ds.ModeShares = []model.ModeShare{
		{ModeID: modeltest.RailModeID, Share: 0.2, Dir: model.BoundMin},
	}
	if err := ds.Resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	res, err := engine.Assemble(ds, engine.Scenario{Name: "off", DisabledPolicies: []string{"mode_share"}})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(res.ActivePolicies) != 0 {
		t.Fatalf("disabled policy still active: %v", res.ActivePolicies)
	}
}

func TestAssembleRejectsUnknownPolicyName(t *testing.T) {
	ds := modeltest.Dataset(t, modeltest.Config{})
	_, err := engine.Assemble(ds, engine.Scenario{Name: "typo", DisabledPolicies: []string{"mode_sharre"}})
	if err == nil || !strings.Contains(err.Error(), "mode_sharre") {
		t.Fatalf("unknown policy name accepted: %v", err)
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	build := func() *engine.Result {
		ds := modeltest.Dataset(t, modeltest.Config{WithRail: true})
		res, err := engine.Assemble(ds, engine.Scenario{Name: "base"})
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		return res
	}
	a, b := build(), build()
	if a.Stats != b.Stats {
		t.Fatalf("two builds differ: %v vs %v", a.Stats, b.Stats)
	}
	for i := 0; i < a.Model.NumRows(); i++ {
		if a.Model.RowLabel(i) != b.Model.RowLabel(i) {
			t.Fatalf("row %d label differs: %q vs %q", i, a.Model.RowLabel(i), b.Model.RowLabel(i))
		}
	}
}
