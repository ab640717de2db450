package risk

import (
	"github.com/shopspring/decimal"
)

// Scenario is one named shock applied across the whole book.
type Scenario struct {
	Name        string
	ShockPct    float64
	Description string
}

// StressEngine applies the configured shock set to valued positions. It only
// runs when a caller opts in, being the most compute-heavy optional step.
type StressEngine struct {
	scenarios []Scenario
}

// NewStressEngine creates the engine with its scenario set.
func NewStressEngine(scenarios []Scenario) *StressEngine {
	return &StressEngine{scenarios: scenarios}
}

// Run returns the per-scenario P&L delta and the worst-case aggregate loss.
func (s *StressEngine) Run(positions []Position) StressSummary {
	summary := StressSummary{Results: make([]StressResult, 0, len(s.scenarios))}
	worst := decimal.Zero
	for _, sc := range s.scenarios {
		shock := decimal.NewFromFloat(sc.ShockPct)
		impact := decimal.Zero
		for _, p := range positions {
			// A parallel move shifts every mark by the same percentage;
			// direction comes from the signed quantity.
			impact = impact.Add(p.SignedValue().Mul(shock))
		}
		impact = impact.Round(2)
		summary.Results = append(summary.Results, StressResult{
			Scenario:    sc.Name,
			ShockPct:    sc.ShockPct,
			PnLImpact:   impact,
			Description: sc.Description,
		})
		if impact.LessThan(worst) {
			worst = impact
			summary.WorstCaseScenario = sc.Name
		}
	}
	summary.WorstCaseLoss = worst
	return summary
}
