package risk

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/tradegroups"
)

// Exposures computes the gross and net exposure of a set of positions.
// Gross ignores direction; net is the absolute value of the signed sum, so
// offsetting hedges cancel. By the triangle inequality net <= gross.
func Exposures(positions []Position) (gross, net decimal.Decimal) {
	signed := decimal.Zero
	for _, p := range positions {
		gross = gross.Add(p.AbsValue())
		signed = signed.Add(p.SignedValue())
	}
	return gross, signed.Abs()
}

// NettingEngine prices trade group risk on the net residual exposure. The
// traditional method sums each member's independent VaR and overstates risk
// for hedged books; netting first and pricing the residual is what produces
// the correlation benefit.
type NettingEngine struct{}

// NewNettingEngine creates the engine.
func NewNettingEngine() *NettingEngine {
	return &NettingEngine{}
}

// GroupRisk computes the netted risk of one open trade group. positions are
// the marked positions belonging to the group; returnsByProduct holds the
// trailing daily returns per product. The group P&L series is the signed sum
// of member P&L day by day, so a fully hedged group nets to zero VaR.
func (n *NettingEngine) GroupRisk(
	group *tradegroups.TradeGroup,
	positions []Position,
	returnsByProduct map[string][]float64,
	method Method,
) (GroupRiskResult, error) {
	gross, net := Exposures(positions)

	result := GroupRiskResult{
		GroupID:            group.ID,
		GroupName:          group.Name,
		StrategyType:       string(group.StrategyType),
		MemberCount:        len(positions),
		GrossExposure:      gross,
		NetExposure:        net,
		CorrelationBenefit: gross.Sub(net),
		VaR95:              decimal.Zero,
		VaR99:              decimal.Zero,
	}
	if len(positions) == 0 {
		return result, nil
	}

	series := make([][]float64, 0, len(positions))
	for _, p := range positions {
		returns, ok := returnsByProduct[p.ProductCode]
		if !ok {
			continue
		}
		series = append(series, PnLSeries(p.SignedValue(), returns))
	}
	combined := CombinePnL(series...)
	if len(combined) == 0 {
		return GroupRiskResult{}, apperrors.NewDataUnavailable(nil, "no return history for any member of group %s", group.Name)
	}

	varResult, err := method.FromPnL(combined)
	if err != nil {
		return GroupRiskResult{}, err
	}
	result.VaR95 = varResult.VaR95
	result.VaR99 = varResult.VaR99
	result.HistoricalDays = varResult.HistoricalDays
	return result, nil
}
