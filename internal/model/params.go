package model

import "math"

// Params is the scalar model configuration. Per-year arrays in the dataset
// are aligned to Years(); per-generation arrays to Generations(). One unit
// system is fixed here for the whole pipeline: km, kWh, kW, €, demand units
// (tonnes or passengers), calendar years. Nothing downstream rescales.
type Params struct {
	FirstYear  int `yaml:"first_year"`
	Horizon    int `yaml:"horizon"`
	PreHorizon int `yaml:"pre_horizon"`

	DiscountRate float64 `yaml:"discount_rate"`
	Gamma        float64 `yaml:"gamma"` // peak-to-average fueling factor

	AlphaMode float64 `yaml:"alpha_mode"`
	BetaMode  float64 `yaml:"beta_mode"`
	AlphaTech float64 `yaml:"alpha_tech"`
	BetaTech  float64 `yaml:"beta_tech"`

	InvestmentPeriod int     `yaml:"investment_period"`
	BudgetPenalty    float64 `yaml:"budget_penalty"` // € per unit of violation
	RelaxedDemand    bool    `yaml:"relaxed_demand"`

	Break BreakRule `yaml:"break_rule"`
}

func (p Params) LastYear() int { return p.FirstYear + p.Horizon - 1 }

// GenFloor is the oldest vintage the model tracks.
func (p Params) GenFloor() int { return p.FirstYear - p.PreHorizon }

func (p Params) Years() []int {
	ys := make([]int, 0, p.Horizon)
	for y := p.FirstYear; y <= p.LastYear(); y++ {
		ys = append(ys, y)
	}
	return ys
}

func (p Params) Generations() []int {
	gs := make([]int, 0, p.NumGenerations())
	for g := p.GenFloor(); g <= p.LastYear(); g++ {
		gs = append(gs, g)
	}
	return gs
}

func (p Params) NumGenerations() int { return p.PreHorizon + p.Horizon }

// YearIndex maps a calendar year to the offset used by per-year arrays.
func (p Params) YearIndex(y int) int { return y - p.FirstYear }

// GenIndex maps a vintage year to the offset used by per-generation arrays.
func (p Params) GenIndex(g int) int { return g - p.GenFloor() }

// Operable is THE vintage feasibility predicate: a vehicle of generation g
// may be operated in year y iff g <= y (operation starts in the purchase
// year) and g is within the tracked vintage window. Every index set and
// every constraint guard goes through this function; do not re-derive the
// comparison anywhere else.
func (p Params) Operable(y, g int) bool {
	return g <= y && g >= p.GenFloor() && y >= p.FirstYear && y <= p.LastYear()
}

// IsInvestmentYear reports whether infrastructure capacity additions may be
// placed in year y. With InvestmentPeriod <= 1 every year is an investment
// year.
func (p Params) IsInvestmentYear(y int) bool {
	if p.InvestmentPeriod <= 1 {
		return true
	}
	return (y-p.FirstYear)%p.InvestmentPeriod == 0
}

// DiscountFactor discounts year-y money to present value at FirstYear. The
// objective and every cost-bearing constraint share this one definition.
func (p Params) DiscountFactor(y int) float64 {
	return 1.0 / math.Pow(1.0+p.DiscountRate, float64(y-p.FirstYear))
}

// DepreciationFactor is the remaining value fraction of a vehicle of age
// (y-g) with the given lifetime: linear write-down, floored at zero.
func DepreciationFactor(age, lifetime int) float64 {
	if lifetime <= 0 || age >= lifetime {
		return 0
	}
	if age < 0 {
		age = 0
	}
	return 1.0 - float64(age)/float64(lifetime)
}
