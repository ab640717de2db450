package risk

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/config"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/marketdata"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/tradegroups"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/pkg/metrics"
)

// GroupSource is the slice of the trade group service the risk engine needs:
// open groups and the contract membership snapshot.
type GroupSource interface {
	OpenGroups(ctx context.Context) ([]tradegroups.TradeGroup, error)
	Membership() map[uuid.UUID]uuid.UUID
}

// CalculationRequest parameterizes one point-in-time risk calculation.
type CalculationRequest struct {
	AsOf               time.Time
	HistoricalDays     int
	IncludeStressTests bool
}

// Service is the portfolio risk engine. Every calculation is a stateless,
// request-scoped computation over a market-data and contract snapshot.
type Service interface {
	Calculate(ctx context.Context, req CalculationRequest) (*RiskCalculation, error)
	PortfolioSummary(ctx context.Context, asOf time.Time) (*PortfolioSummary, error)
	ProductRisk(ctx context.Context, productCode string, asOf time.Time) (*ProductRisk, error)
	PortfolioWithGroups(ctx context.Context, req CalculationRequest) (*PortfolioRisk, error)
	GroupRisk(ctx context.Context, groupID uuid.UUID, asOf time.Time) (*GroupRiskResult, error)
	CompareMethods(ctx context.Context, asOf time.Time) (*MethodComparison, error)
	Backtest(ctx context.Context, start, end time.Time, lookbackDays int) (*BacktestReport, error)
}

type service struct {
	logger     *zap.Logger
	extractor  *Extractor
	valuer     *Valuer
	prices     marketdata.PriceSource
	catalog    *marketdata.Catalog
	groups     GroupSource
	stress     *StressEngine
	aggregator *Aggregator
	netting    *NettingEngine
	cfg        config.RiskConfig
}

// NewService wires the risk engine together. The catalog is injected rather
// than read from any global accessor.
func NewService(
	logger *zap.Logger,
	extractor *Extractor,
	valuer *Valuer,
	prices marketdata.PriceSource,
	catalog *marketdata.Catalog,
	groups GroupSource,
	cfg config.RiskConfig,
) Service {
	scenarios := make([]Scenario, 0, len(cfg.StressScenarios))
	for _, s := range cfg.StressScenarios {
		scenarios = append(scenarios, Scenario{Name: s.Name, ShockPct: s.ShockPct, Description: s.Description})
	}
	netting := NewNettingEngine()
	return &service{
		logger:     logger,
		extractor:  extractor,
		valuer:     valuer,
		prices:     prices,
		catalog:    catalog,
		groups:     groups,
		stress:     NewStressEngine(scenarios),
		aggregator: NewAggregator(netting, logger),
		netting:    netting,
		cfg:        cfg,
	}
}

func (s *service) Calculate(ctx context.Context, req CalculationRequest) (*RiskCalculation, error) {
	started := time.Now()
	days := s.historicalDays(req.HistoricalDays)

	positions, returns, err := s.snapshot(ctx, req.AsOf, "", days)
	if err != nil {
		metrics.RiskCalculations.WithLabelValues("all", "error").Inc()
		return nil, err
	}

	calc := &RiskCalculation{
		AsOfDate:       req.AsOf,
		PositionCount:  len(positions),
		HistoricalDays: days,
	}

	for _, method := range s.methods(days) {
		result, err := s.portfolioVaR(positions, returns, method)
		if err != nil {
			s.logger.Error("risk calculation failed",
				zap.Time("as_of", req.AsOf),
				zap.Int("historical_days", days),
				zap.Bool("include_stress", req.IncludeStressTests),
				zap.String("method", string(method.Name())),
				zap.Error(err))
			metrics.RiskCalculations.WithLabelValues(string(method.Name()), "error").Inc()
			return nil, err
		}
		calc.Results = append(calc.Results, result)
		metrics.RiskCalculations.WithLabelValues(string(method.Name()), "ok").Inc()
		metrics.RiskCalculationDuration.WithLabelValues(string(method.Name())).Observe(time.Since(started).Seconds())
	}

	if req.IncludeStressTests {
		summary := s.stress.Run(positions)
		calc.Stress = &summary
	}
	return calc, nil
}

func (s *service) PortfolioSummary(ctx context.Context, asOf time.Time) (*PortfolioSummary, error) {
	days := s.cfg.HistoricalDays
	positions, returns, err := s.snapshot(ctx, asOf, "", days)
	if err != nil {
		return nil, err
	}

	gross, net := Exposures(positions)
	result, err := s.portfolioVaR(positions, returns, NewHistoricalSimulation(days))
	if err != nil {
		return nil, err
	}

	netBarrels := decimal.Zero
	for _, p := range positions {
		if product, ok := s.catalog.Lookup(p.ProductCode); ok {
			netBarrels = netBarrels.Add(p.Quantity.Mul(product.BarrelsPerUnit))
		}
	}

	return &PortfolioSummary{
		AsOfDate:       asOf,
		PositionCount:  len(positions),
		GrossExposure:  gross,
		NetExposure:    net,
		NetQuantityBBL: netBarrels,
		VaR95:          result.VaR95,
		VaR99:          result.VaR99,
	}, nil
}

func (s *service) ProductRisk(ctx context.Context, productCode string, asOf time.Time) (*ProductRisk, error) {
	if _, ok := s.catalog.Lookup(productCode); !ok {
		return nil, apperrors.NewNotFound("unknown product %s", productCode)
	}
	days := s.cfg.HistoricalDays
	positions, returns, err := s.snapshot(ctx, asOf, productCode, days)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, apperrors.NewNotFound("no positions for product %s", productCode)
	}

	gross, net := Exposures(positions)
	product := &ProductRisk{
		ProductCode:   productCode,
		AsOfDate:      asOf,
		PositionCount: len(positions),
		GrossExposure: gross,
		NetExposure:   net,
	}
	for _, method := range s.methods(days) {
		result, err := s.portfolioVaR(positions, returns, method)
		if err != nil {
			return nil, err
		}
		product.Results = append(product.Results, result)
	}
	return product, nil
}

func (s *service) PortfolioWithGroups(ctx context.Context, req CalculationRequest) (*PortfolioRisk, error) {
	days := s.historicalDays(req.HistoricalDays)
	in, err := s.aggregationInput(ctx, req.AsOf, days)
	if err != nil {
		return nil, err
	}

	portfolio, err := s.aggregator.Portfolio(ctx, *in)
	if err != nil {
		return nil, err
	}
	if req.IncludeStressTests {
		summary := s.stress.Run(in.Positions)
		portfolio.Stress = &summary
	}
	return portfolio, nil
}

func (s *service) GroupRisk(ctx context.Context, groupID uuid.UUID, asOf time.Time) (*GroupRiskResult, error) {
	days := s.cfg.HistoricalDays
	in, err := s.aggregationInput(ctx, asOf, days)
	if err != nil {
		return nil, err
	}

	for i := range in.Groups {
		if in.Groups[i].ID != groupID {
			continue
		}
		var members []Position
		for _, p := range in.Positions {
			if g, ok := in.Membership[p.ContractID]; ok && g == groupID {
				members = append(members, p)
			}
		}
		result, err := s.netting.GroupRisk(&in.Groups[i], members, in.ReturnsByProduct, in.Method)
		if err != nil {
			return nil, err
		}
		return &result, nil
	}
	return nil, apperrors.NewNotFound("open trade group %s not found", groupID)
}

func (s *service) CompareMethods(ctx context.Context, asOf time.Time) (*MethodComparison, error) {
	in, err := s.aggregationInput(ctx, asOf, s.cfg.HistoricalDays)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Compare(ctx, *in)
}

func (s *service) Backtest(ctx context.Context, start, end time.Time, lookbackDays int) (*BacktestReport, error) {
	if lookbackDays <= 0 {
		lookbackDays = s.cfg.HistoricalDays
	}

	positions, err := s.extractor.Extract(ctx, end, "")
	if err != nil {
		metrics.BacktestRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	positions, err = s.valuer.MarkPositions(ctx, positions)
	if err != nil {
		metrics.BacktestRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	pnl, err := s.portfolioPnLHistory(ctx, positions, start.AddDate(0, 0, -2*lookbackDays), end)
	if err != nil {
		metrics.BacktestRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	report, err := NewBacktester(s.logger).Run(ctx, BacktestInput{
		PnL:             pnl,
		Start:           start,
		End:             end,
		LookbackDays:    lookbackDays,
		ConfidenceLevel: s.cfg.BacktestConfidence,
		KupiecAlpha:     s.cfg.KupiecAlpha,
	})
	if err != nil {
		metrics.BacktestRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.BacktestRuns.WithLabelValues("ok").Inc()
	return report, nil
}

// snapshot extracts, marks and loads return history for one calculation.
func (s *service) snapshot(ctx context.Context, asOf time.Time, productFilter string, days int) ([]Position, map[string][]float64, error) {
	positions, err := s.extractor.Extract(ctx, asOf, productFilter)
	if err != nil {
		return nil, nil, err
	}
	metrics.PositionsExtracted.Observe(float64(len(positions)))

	positions, err = s.valuer.MarkPositions(ctx, positions)
	if err != nil {
		return nil, nil, err
	}

	returns, err := s.returnsByProduct(ctx, positions, asOf, days)
	if err != nil {
		return nil, nil, err
	}
	return positions, returns, nil
}

func (s *service) aggregationInput(ctx context.Context, asOf time.Time, days int) (*AggregationInput, error) {
	positions, returns, err := s.snapshot(ctx, asOf, "", days)
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.OpenGroups(ctx)
	if err != nil {
		return nil, err
	}
	return &AggregationInput{
		AsOf:             asOf,
		Positions:        positions,
		Groups:           groups,
		Membership:       s.groups.Membership(),
		ReturnsByProduct: returns,
		Method:           NewHistoricalSimulation(days),
	}, nil
}

func (s *service) returnsByProduct(ctx context.Context, positions []Position, asOf time.Time, days int) (map[string][]float64, error) {
	out := make(map[string][]float64)
	for _, p := range positions {
		if _, done := out[p.ProductCode]; done {
			continue
		}
		returns, err := s.prices.DailyReturns(ctx, p.ProductCode, asOf, days)
		if err != nil {
			return nil, err
		}
		out[p.ProductCode] = returns
	}
	return out, nil
}

// portfolioVaR runs one method over the combined signed P&L of all
// positions.
func (s *service) portfolioVaR(positions []Position, returns map[string][]float64, method Method) (VaRResult, error) {
	if len(positions) == 0 {
		return VaRResult{
			Method:      method.Name(),
			VaR95:       decimal.Zero,
			VaR99:       decimal.Zero,
			HorizonDays: s.cfg.HorizonDays,
		}, nil
	}
	series := make([][]float64, 0, len(positions))
	for _, p := range positions {
		r, ok := returns[p.ProductCode]
		if !ok {
			continue
		}
		series = append(series, PnLSeries(p.SignedValue(), r))
	}
	combined := CombinePnL(series...)
	if len(combined) == 0 {
		return VaRResult{}, apperrors.NewDataUnavailable(nil, "no return history for any position in the book")
	}
	return method.FromPnL(combined)
}

// portfolioPnLHistory builds the dated portfolio P&L series backing a
// backtest by intersecting per-product dated returns.
func (s *service) portfolioPnLHistory(ctx context.Context, positions []Position, start, end time.Time) ([]DatedPnL, error) {
	valueByProduct := make(map[string]decimal.Decimal)
	for _, p := range positions {
		valueByProduct[p.ProductCode] = valueByProduct[p.ProductCode].Add(p.SignedValue())
	}
	if len(valueByProduct) == 0 {
		return nil, apperrors.NewDataUnavailable(nil, "no positions to backtest")
	}

	// Float addition is not associative, so the accumulation order must be
	// fixed for identical books to produce identical series run to run.
	products := make([]string, 0, len(valueByProduct))
	for product := range valueByProduct {
		products = append(products, product)
	}
	sort.Strings(products)

	pnlByDate := make(map[time.Time]float64)
	countByDate := make(map[time.Time]int)
	for _, product := range products {
		returns, err := s.prices.ReturnsBetween(ctx, product, start, end)
		if err != nil {
			return nil, err
		}
		v, _ := valueByProduct[product].Float64()
		for _, r := range returns {
			pnlByDate[r.Date] += v * r.Return
			countByDate[r.Date]++
		}
	}

	// Keep only dates where every product traded, so partially-quoted days
	// do not distort the portfolio series.
	out := make([]DatedPnL, 0, len(pnlByDate))
	for date, pnl := range pnlByDate {
		if countByDate[date] == len(products) {
			out = append(out, DatedPnL{Date: date, PnL: pnl})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *service) historicalDays(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.cfg.HistoricalDays
}

func (s *service) methods(days int) []Method {
	return []Method{
		NewHistoricalSimulation(days),
		NewEWMAVolatility(days, s.cfg.EWMADecay),
	}
}
