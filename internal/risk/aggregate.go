package risk

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/tradegroups"
)

// AggregationInput is the read-only snapshot one portfolio aggregation runs
// against. Nothing in it is mutated, so per-group work can fan out freely.
type AggregationInput struct {
	AsOf             time.Time
	Positions        []Position
	Groups           []tradegroups.TradeGroup
	Membership       map[uuid.UUID]uuid.UUID
	ReturnsByProduct map[string][]float64
	Method           Method
}

// Aggregator merges standalone and trade-group risk into one portfolio view
// and produces the traditional-vs-netted comparison.
type Aggregator struct {
	netting *NettingEngine
	logger  *zap.Logger
}

// NewAggregator creates the aggregator.
func NewAggregator(netting *NettingEngine, logger *zap.Logger) *Aggregator {
	return &Aggregator{netting: netting, logger: logger}
}

// Portfolio computes group risk in parallel, waits on all of it, then folds
// the results together with the standalone traditional measure.
func (a *Aggregator) Portfolio(ctx context.Context, in AggregationInput) (*PortfolioRisk, error) {
	grouped, standalone := a.partition(in)

	type groupOutcome struct {
		idx    int
		result GroupRiskResult
		err    error
	}

	outcomes := make([]groupOutcome, len(in.Groups))
	var wg sync.WaitGroup
	for i := range in.Groups {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			group := &in.Groups[i]
			result, err := a.netting.GroupRisk(group, grouped[group.ID], in.ReturnsByProduct, in.Method)
			outcomes[i] = groupOutcome{idx: i, result: result, err: err}
		}(i)
	}

	standaloneRisk, standaloneErr := a.standalone(ctx, standalone, in)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if standaloneErr != nil {
		return nil, standaloneErr
	}

	portfolio := &PortfolioRisk{
		AsOfDate:           in.AsOf,
		Standalone:         standaloneRisk,
		Groups:             make([]GroupRiskResult, 0, len(in.Groups)),
		TradeGroupCount:    len(in.Groups),
		TotalGrossExposure: standaloneRisk.GrossExposure,
		TotalNetExposure:   standaloneRisk.NetExposure,
		TotalVaR95:         standaloneRisk.VaR95,
		TotalVaR99:         standaloneRisk.VaR99,
		CorrelationBenefit: decimal.Zero,
	}
	for _, o := range outcomes {
		if o.err != nil {
			a.logger.Error("group risk calculation failed",
				zap.String("group_id", in.Groups[o.idx].ID.String()),
				zap.Time("as_of", in.AsOf),
				zap.Error(o.err))
			return nil, o.err
		}
		portfolio.Groups = append(portfolio.Groups, o.result)
		portfolio.TotalGrossExposure = portfolio.TotalGrossExposure.Add(o.result.GrossExposure)
		portfolio.TotalNetExposure = portfolio.TotalNetExposure.Add(o.result.NetExposure)
		portfolio.TotalVaR95 = portfolio.TotalVaR95.Add(o.result.VaR95)
		portfolio.TotalVaR99 = portfolio.TotalVaR99.Add(o.result.VaR99)
		portfolio.CorrelationBenefit = portfolio.CorrelationBenefit.Add(o.result.CorrelationBenefit)
	}
	return portfolio, nil
}

// Compare runs the book both ways: every position priced independently
// (traditional) against netting-first (trade-group based).
func (a *Aggregator) Compare(ctx context.Context, in AggregationInput) (*MethodComparison, error) {
	traditional, err := a.traditional(ctx, in.Positions, in)
	if err != nil {
		return nil, err
	}

	portfolio, err := a.Portfolio(ctx, in)
	if err != nil {
		return nil, err
	}

	grouped := MethodExposure{
		GrossExposure: portfolio.Standalone.GrossExposure,
		NetExposure:   portfolio.Standalone.NetExposure,
		VaR95:         portfolio.Standalone.VaR95,
		VaR99:         portfolio.Standalone.VaR99,
	}
	for _, g := range portfolio.Groups {
		// A group contributes only its net residual once hedges cancel.
		grouped.GrossExposure = grouped.GrossExposure.Add(g.NetExposure)
		grouped.NetExposure = grouped.NetExposure.Add(g.NetExposure)
		grouped.VaR95 = grouped.VaR95.Add(g.VaR95)
		grouped.VaR99 = grouped.VaR99.Add(g.VaR99)
	}

	return &MethodComparison{
		AsOfDate:          in.AsOf,
		Traditional:       traditional,
		TradeGroupBased:   grouped,
		RiskOverstatement: traditional.VaR95.Sub(grouped.VaR95),
		ExposureReduction: traditional.GrossExposure.Sub(grouped.GrossExposure),
	}, nil
}

// partition splits positions into per-group buckets and the standalone rest
// using the membership snapshot.
func (a *Aggregator) partition(in AggregationInput) (map[uuid.UUID][]Position, []Position) {
	grouped := make(map[uuid.UUID][]Position, len(in.Groups))
	var standalone []Position
	for _, p := range in.Positions {
		if groupID, ok := in.Membership[p.ContractID]; ok {
			grouped[groupID] = append(grouped[groupID], p)
		} else {
			standalone = append(standalone, p)
		}
	}
	return grouped, standalone
}

// standalone applies the traditional gross-sum measure to ungrouped
// positions.
func (a *Aggregator) standalone(ctx context.Context, positions []Position, in AggregationInput) (StandaloneRisk, error) {
	exposure, err := a.traditional(ctx, positions, in)
	if err != nil {
		return StandaloneRisk{}, err
	}
	return StandaloneRisk{
		PositionCount: len(positions),
		GrossExposure: exposure.GrossExposure,
		NetExposure:   exposure.NetExposure,
		VaR95:         exposure.VaR95,
		VaR99:         exposure.VaR99,
	}, nil
}

// traditional sums each position's independent VaR, ignoring hedging and
// correlation.
func (a *Aggregator) traditional(ctx context.Context, positions []Position, in AggregationInput) (MethodExposure, error) {
	gross, net := Exposures(positions)
	exposure := MethodExposure{
		GrossExposure: gross,
		NetExposure:   net,
		VaR95:         decimal.Zero,
		VaR99:         decimal.Zero,
	}
	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return MethodExposure{}, err
		}
		returns, ok := in.ReturnsByProduct[p.ProductCode]
		if !ok {
			continue
		}
		result, err := in.Method.FromPnL(PnLSeries(p.SignedValue(), returns))
		if err != nil {
			return MethodExposure{}, err
		}
		exposure.VaR95 = exposure.VaR95.Add(result.VaR95)
		exposure.VaR99 = exposure.VaR99.Add(result.VaR99)
	}
	return exposure, nil
}
