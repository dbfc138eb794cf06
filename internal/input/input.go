// Package input loads and resolves model datasets and scenario files from
// YAML. Everything downstream of Load sees a fully resolved, immutable
// dataset; a file that fails validation never reaches model construction.
package input

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"transpath/internal/engine"
	"transpath/internal/model"
)

// Load reads a dataset from YAML and resolves all cross-references. The
// returned error is a *model.DataIntegrityError when the content is
// well-formed YAML but semantically broken.
func Load(r io.Reader) (*model.Dataset, error) {
	var ds model.Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if err := validateParams(ds.Params); err != nil {
		return nil, err
	}
	if err := ds.Resolve(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// LoadScenario reads a scenario from YAML.
func LoadScenario(r io.Reader) (engine.Scenario, error) {
	var sc engine.Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return engine.Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	return sc, nil
}

func validateParams(p model.Params) error {
	bad := func(detail string) error {
		return &model.DataIntegrityError{Entity: "params", Detail: detail}
	}
	if p.FirstYear <= 0 {
		return bad("first_year must be set")
	}
	if p.Horizon <= 0 {
		return bad("horizon must be positive")
	}
	if p.PreHorizon < 0 {
		return bad("pre_horizon must not be negative")
	}
	if p.DiscountRate < 0 || p.DiscountRate >= 1 {
		return bad("discount_rate must be in [0, 1)")
	}
	if p.Gamma <= 0 {
		return bad("gamma must be positive")
	}
	if p.BudgetPenalty < 0 {
		return bad("budget_penalty must not be negative")
	}
	return nil
}
