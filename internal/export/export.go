// Package export turns solved variable values into structured records,
// keyed exactly as the variables were declared, and serializes them as YAML
// or CSV. Near-zero values are dropped so exports stay readable.
package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"transpath/internal/engine"
	"transpath/internal/solve"
)

const eps = 1e-9

type FlowRecord struct {
	Year        int     `yaml:"year"`
	Odpair      int     `yaml:"odpair"`
	Path        int     `yaml:"path"`
	Mode        int     `yaml:"mode"`
	TechVehicle int     `yaml:"tech_vehicle"`
	Gen         int     `yaml:"gen"`
	Value       float64 `yaml:"value"`
}

type StockRecord struct {
	Year        int     `yaml:"year"`
	Odpair      int     `yaml:"odpair"`
	TechVehicle int     `yaml:"tech_vehicle"`
	Gen         int     `yaml:"gen"`
	Fleet       float64 `yaml:"fleet"`
	Purchases   float64 `yaml:"purchases"`
	Retirements float64 `yaml:"retirements"`
}

type EnergyRecord struct {
	Year        int     `yaml:"year"`
	Odpair      int     `yaml:"odpair"`
	Path        int     `yaml:"path"`
	Element     int     `yaml:"element"`
	TechVehicle int     `yaml:"tech_vehicle"`
	KWh         float64 `yaml:"kwh"`
}

// InfraRecord covers all three capacity families; Kind is one of fueling,
// supply, mode and Ref the technology, fuel or mode id respectively.
type InfraRecord struct {
	Kind    string  `yaml:"kind"`
	Year    int     `yaml:"year"`
	Ref     int     `yaml:"ref"`
	Element int     `yaml:"element"`
	Added   float64 `yaml:"added"`
}

type BudgetRecord struct {
	Year     int     `yaml:"year"`
	Odpair   int     `yaml:"odpair"`
	Overrun  float64 `yaml:"overrun"`
	Underrun float64 `yaml:"underrun"`
}

// Results is the full export payload for one run.
type Results struct {
	Objective float64 `yaml:"objective"`
	Status    string  `yaml:"status"`
	Warning   string  `yaml:"warning,omitempty"`

	Flows   []FlowRecord   `yaml:"flows"`
	Stocks  []StockRecord  `yaml:"stocks"`
	Energy  []EnergyRecord `yaml:"energy"`
	Infra   []InfraRecord  `yaml:"infra"`
	Budgets []BudgetRecord `yaml:"budgets"`
}

// Collect extracts records from a solved model, sorted deterministically.
func Collect(build *engine.Result, sol *solve.Result) *Results {
	out := &Results{Objective: sol.Objective, Status: sol.Status}
	if sol.Warning != nil {
		out.Warning = sol.Warning.Detail
	}

	for k, v := range build.Vars.FlowVars() {
		val := sol.Value(v)
		if val < eps {
			continue
		}
		out.Flows = append(out.Flows, FlowRecord{
			Year: k.Year, Odpair: k.Odpair, Path: k.Path,
			Mode: k.Mode, TechVehicle: k.TechVehicle, Gen: k.Gen, Value: val,
		})
	}
	sort.Slice(out.Flows, func(i, j int) bool { return flowLess(out.Flows[i], out.Flows[j]) })

	stocks := map[StockRecord]*StockRecord{}
	stockKey := func(y, r, tv, g int) StockRecord {
		return StockRecord{Year: y, Odpair: r, TechVehicle: tv, Gen: g}
	}
	touch := func(y, r, tv, g int) *StockRecord {
		k := stockKey(y, r, tv, g)
		rec := stocks[k]
		if rec == nil {
			rec = &StockRecord{Year: y, Odpair: r, TechVehicle: tv, Gen: g}
			stocks[k] = rec
		}
		return rec
	}
	for k, v := range build.Vars.StockVars() {
		if val := sol.Value(v); val >= eps {
			touch(k.Year, k.Odpair, k.TechVehicle, k.Gen).Fleet = val
		}
	}
	for k, v := range build.Vars.StockPlusVars() {
		if val := sol.Value(v); val >= eps {
			touch(k.Year, k.Odpair, k.TechVehicle, k.Gen).Purchases = val
		}
	}
	for k, v := range build.Vars.StockMinusVars() {
		if val := sol.Value(v); val >= eps {
			touch(k.Year, k.Odpair, k.TechVehicle, k.Gen).Retirements = val
		}
	}
	for _, rec := range stocks {
		out.Stocks = append(out.Stocks, *rec)
	}
	sort.Slice(out.Stocks, func(i, j int) bool { return stockLess(out.Stocks[i], out.Stocks[j]) })

	for k, v := range build.Vars.EnergyVars() {
		val := sol.Value(v)
		if val < eps {
			continue
		}
		out.Energy = append(out.Energy, EnergyRecord{
			Year: k.Year, Odpair: k.Odpair, Path: k.Path,
			Element: k.Element, TechVehicle: k.TechVehicle, KWh: val,
		})
	}
	sort.Slice(out.Energy, func(i, j int) bool { return energyLess(out.Energy[i], out.Energy[j]) })

	for k, v := range build.Vars.FuelInfraVars() {
		if val := sol.Value(v); val >= eps {
			out.Infra = append(out.Infra, InfraRecord{Kind: "fueling", Year: k.Year, Ref: k.Technology, Element: k.Element, Added: val})
		}
	}
	for k, v := range build.Vars.SupplyInfraVars() {
		if val := sol.Value(v); val >= eps {
			out.Infra = append(out.Infra, InfraRecord{Kind: "supply", Year: k.Year, Ref: k.Fuel, Element: k.Element, Added: val})
		}
	}
	for k, v := range build.Vars.ModeInfraVars() {
		if val := sol.Value(v); val >= eps {
			out.Infra = append(out.Infra, InfraRecord{Kind: "mode", Year: k.Year, Ref: k.Mode, Element: k.Element, Added: val})
		}
	}
	sort.Slice(out.Infra, func(i, j int) bool { return infraLess(out.Infra[i], out.Infra[j]) })

	budgets := map[[2]int]*BudgetRecord{}
	for k, v := range build.Vars.BudgetPlusVars() {
		val := sol.Value(v)
		if val < eps {
			continue
		}
		key := [2]int{k.Year, k.Odpair}
		rec := budgets[key]
		if rec == nil {
			rec = &BudgetRecord{Year: k.Year, Odpair: k.Odpair}
			budgets[key] = rec
		}
		rec.Overrun = val
	}
	for k, v := range build.Vars.BudgetMinusVars() {
		val := sol.Value(v)
		if val < eps {
			continue
		}
		key := [2]int{k.Year, k.Odpair}
		rec := budgets[key]
		if rec == nil {
			rec = &BudgetRecord{Year: k.Year, Odpair: k.Odpair}
			budgets[key] = rec
		}
		rec.Underrun = val
	}
	for _, rec := range budgets {
		out.Budgets = append(out.Budgets, *rec)
	}
	sort.Slice(out.Budgets, func(i, j int) bool {
		a, b := out.Budgets[i], out.Budgets[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Odpair < b.Odpair
	})

	return out
}

// WriteYAML serializes the full payload.
func WriteYAML(w io.Writer, r *Results) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(r)
}

// WriteCSV writes the payload in long format, one row per value.
func WriteCSV(w io.Writer, r *Results) error {
	cw := csv.NewWriter(w)
	header := []string{"family", "year", "odpair", "path", "mode", "tech_vehicle", "gen", "element", "ref", "value"}
	if err := cw.Write(header); err != nil {
		return err
	}
	row := func(family string, y, r, k, m, tv, g, e, ref int, v float64) []string {
		itoa := strconv.Itoa
		return []string{
			family, itoa(y), itoa(r), itoa(k), itoa(m), itoa(tv), itoa(g), itoa(e), itoa(ref),
			strconv.FormatFloat(v, 'g', -1, 64),
		}
	}
	for _, f := range r.Flows {
		if err := cw.Write(row("flow", f.Year, f.Odpair, f.Path, f.Mode, f.TechVehicle, f.Gen, 0, 0, f.Value)); err != nil {
			return err
		}
	}
	for _, s := range r.Stocks {
		if err := cw.Write(row("fleet", s.Year, s.Odpair, 0, 0, s.TechVehicle, s.Gen, 0, 0, s.Fleet)); err != nil {
			return err
		}
		if s.Purchases >= eps {
			if err := cw.Write(row("purchases", s.Year, s.Odpair, 0, 0, s.TechVehicle, s.Gen, 0, 0, s.Purchases)); err != nil {
				return err
			}
		}
		if s.Retirements >= eps {
			if err := cw.Write(row("retirements", s.Year, s.Odpair, 0, 0, s.TechVehicle, s.Gen, 0, 0, s.Retirements)); err != nil {
				return err
			}
		}
	}
	for _, e := range r.Energy {
		if err := cw.Write(row("energy", e.Year, e.Odpair, e.Path, 0, e.TechVehicle, 0, e.Element, 0, e.KWh)); err != nil {
			return err
		}
	}
	for _, inf := range r.Infra {
		if err := cw.Write(row("infra_"+inf.Kind, inf.Year, 0, 0, 0, 0, 0, inf.Element, inf.Ref, inf.Added)); err != nil {
			return err
		}
	}
	for _, b := range r.Budgets {
		if err := cw.Write(row("budget_overrun", b.Year, b.Odpair, 0, 0, 0, 0, 0, 0, b.Overrun)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func flowLess(a, b FlowRecord) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Odpair != b.Odpair {
		return a.Odpair < b.Odpair
	}
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	if a.TechVehicle != b.TechVehicle {
		return a.TechVehicle < b.TechVehicle
	}
	return a.Gen < b.Gen
}

func stockLess(a, b StockRecord) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Odpair != b.Odpair {
		return a.Odpair < b.Odpair
	}
	if a.TechVehicle != b.TechVehicle {
		return a.TechVehicle < b.TechVehicle
	}
	return a.Gen < b.Gen
}

func energyLess(a, b EnergyRecord) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Odpair != b.Odpair {
		return a.Odpair < b.Odpair
	}
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	if a.Element != b.Element {
		return a.Element < b.Element
	}
	return a.TechVehicle < b.TechVehicle
}

func infraLess(a, b InfraRecord) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Ref != b.Ref {
		return a.Ref < b.Ref
	}
	return a.Element < b.Element
}
