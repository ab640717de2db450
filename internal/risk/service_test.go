package risk

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/config"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/contracts"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/marketdata"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/tradegroups"
)

type stubGroupSource struct {
	groups     []tradegroups.TradeGroup
	membership map[uuid.UUID]uuid.UUID
}

func (s *stubGroupSource) OpenGroups(context.Context) ([]tradegroups.TradeGroup, error) {
	return s.groups, nil
}

func (s *stubGroupSource) Membership() map[uuid.UUID]uuid.UUID {
	if s.membership == nil {
		return map[uuid.UUID]uuid.UUID{}
	}
	return s.membership
}

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		HistoricalDays:     252,
		LookbackWindowDays: 30,
		HorizonDays:        1,
		EWMADecay:          0.94,
		BacktestConfidence: 0.95,
		KupiecAlpha:        0.05,
		StressScenarios: []config.StressScenarioConfig{
			{Name: "-10% Shock", ShockPct: -0.10, Description: "10% decline"},
			{Name: "+10% Shock", ShockPct: 0.10, Description: "10% increase"},
		},
	}
}

// newRiskFixture seeds a sqlite book: one Brent purchase, a settlement on the
// as-of date, and daysOfHistory alternating +/-1% spot days ending the day
// before asOf.
func newRiskFixture(t *testing.T, asOf time.Time, daysOfHistory int, groups *stubGroupSource) (Service, *gorm.DB, uuid.UUID) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, contracts.Migrate(db))
	require.NoError(t, marketdata.Migrate(db))

	contractID := uuid.New()
	require.NoError(t, db.Create(&contracts.PurchaseContract{
		ID: contractID, ProductCode: "BRENT",
		Quantity: decimal.NewFromInt(10_000), Unit: "BBL",
		Price: decimal.NewFromInt(78), Currency: "USD",
		ContractMonth: "2026-03", Active: true,
		TradeDate: asOf.AddDate(0, 0, -daysOfHistory),
	}).Error)

	require.NoError(t, db.Create(&marketdata.SettlementPrice{
		ProductCode: "BRENT", ContractMonth: "2026-03",
		PriceDate: asOf, Price: decimal.NewFromInt(80),
	}).Error)

	price := 80.0
	for i := daysOfHistory; i >= 1; i-- {
		require.NoError(t, db.Create(&marketdata.SpotPrice{
			ProductCode: "BRENT",
			PriceDate:   asOf.AddDate(0, 0, -i),
			Price:       decimal.NewFromFloat(price),
		}).Error)
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.99
		}
	}

	contractRepo := contracts.NewRepository(db)
	prices := marketdata.NewPriceSource(db)
	catalog := marketdata.DefaultCatalog()
	logger := zap.NewNop()

	svc := NewService(
		logger,
		NewExtractor(contractRepo),
		NewValuer(prices, catalog, 30, logger),
		prices,
		catalog,
		groups,
		testRiskConfig(),
	)
	return svc, db, contractID
}

func TestServiceCalculate(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newRiskFixture(t, asOf, 60, &stubGroupSource{})

	calc, err := svc.Calculate(context.Background(), CalculationRequest{
		AsOf:               asOf,
		IncludeStressTests: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calc.PositionCount)
	require.Len(t, calc.Results, 2)
	assert.Equal(t, MethodHistorical, calc.Results[0].Method)
	assert.Equal(t, MethodGarch, calc.Results[1].Method)
	for _, r := range calc.Results {
		assert.True(t, r.VaR95.GreaterThan(decimal.Zero), "%s VaR95 %s", r.Method, r.VaR95)
		assert.True(t, r.VaR99.GreaterThanOrEqual(r.VaR95))
	}

	require.NotNil(t, calc.Stress)
	require.Len(t, calc.Stress.Results, 2)
	// 10,000 BBL marked at the $80 settlement: a 10% shock moves $80k.
	assert.True(t, calc.Stress.Results[0].PnLImpact.Equal(decimal.NewFromInt(-80_000)),
		"impact %s", calc.Stress.Results[0].PnLImpact)
	assert.Equal(t, "-10% Shock", calc.Stress.WorstCaseScenario)
}

func TestServiceCalculateWithoutStress(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newRiskFixture(t, asOf, 60, &stubGroupSource{})

	calc, err := svc.Calculate(context.Background(), CalculationRequest{AsOf: asOf})
	require.NoError(t, err)
	assert.Nil(t, calc.Stress)
}

func TestServiceCalculateFailsWithoutHistory(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newRiskFixture(t, asOf, 1, &stubGroupSource{})

	// One spot day cannot produce a return series; the calculation fails
	// loudly instead of reporting zero risk.
	_, err := svc.Calculate(context.Background(), CalculationRequest{AsOf: asOf})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
}

func TestServicePortfolioSummary(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newRiskFixture(t, asOf, 60, &stubGroupSource{})

	summary, err := svc.PortfolioSummary(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PositionCount)
	assert.True(t, summary.GrossExposure.Equal(decimal.NewFromInt(800_000)))
	assert.True(t, summary.NetExposure.Equal(decimal.NewFromInt(800_000)))
	assert.True(t, summary.NetQuantityBBL.Equal(decimal.NewFromInt(10_000)))
	assert.True(t, summary.VaR95.GreaterThan(decimal.Zero))
}

func TestServiceProductRisk(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newRiskFixture(t, asOf, 60, &stubGroupSource{})

	product, err := svc.ProductRisk(context.Background(), "BRENT", asOf)
	require.NoError(t, err)
	assert.Equal(t, "BRENT", product.ProductCode)
	assert.Equal(t, 1, product.PositionCount)
	require.Len(t, product.Results, 2)

	// Known product with no positions and unknown product both 404.
	_, err = svc.ProductRisk(context.Background(), "WTI", asOf)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.ProductRisk(context.Background(), "NAPHTHA", asOf)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestServicePortfolioWithGroups(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	group := tradegroups.TradeGroup{
		ID: uuid.New(), Name: "brent hedge",
		StrategyType: tradegroups.StrategyHedge, Status: tradegroups.StatusOpen,
	}
	groups := &stubGroupSource{groups: []tradegroups.TradeGroup{group}}
	svc, db, contractID := newRiskFixture(t, asOf, 60, groups)

	// Hedge the purchase with an equal short paper position in the group.
	paperID := uuid.New()
	require.NoError(t, db.Create(&contracts.PaperContract{
		ID: paperID, ProductCode: "BRENT", Side: contracts.SideShort,
		Quantity: decimal.NewFromInt(10_000), Unit: "BBL",
		Price: decimal.NewFromInt(78), Currency: "USD",
		ContractMonth: "2026-03", Active: true,
		TradeDate: asOf.AddDate(0, 0, -30),
	}).Error)
	groups.membership = map[uuid.UUID]uuid.UUID{
		contractID: group.ID,
		paperID:    group.ID,
	}

	portfolio, err := svc.PortfolioWithGroups(context.Background(), CalculationRequest{AsOf: asOf})
	require.NoError(t, err)

	assert.Equal(t, 1, portfolio.TradeGroupCount)
	require.Len(t, portfolio.Groups, 1)
	assert.True(t, portfolio.Groups[0].VaR95.IsZero(), "hedged group VaR %s", portfolio.Groups[0].VaR95)
	assert.True(t, portfolio.Groups[0].CorrelationBenefit.Equal(decimal.NewFromInt(1_600_000)))
	assert.Equal(t, 0, portfolio.Standalone.PositionCount)
	assert.True(t, portfolio.TotalVaR95.IsZero())
}

func TestServiceGroupRiskUnknownGroup(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newRiskFixture(t, asOf, 60, &stubGroupSource{})

	_, err := svc.GroupRisk(context.Background(), uuid.New(), asOf)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestServiceCompareMethods(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newRiskFixture(t, asOf, 60, &stubGroupSource{})

	comparison, err := svc.CompareMethods(context.Background(), asOf)
	require.NoError(t, err)

	// An ungrouped book compares equal both ways.
	assert.True(t, comparison.Traditional.VaR95.Equal(comparison.TradeGroupBased.VaR95))
	assert.True(t, comparison.RiskOverstatement.IsZero())
	assert.True(t, comparison.ExposureReduction.IsZero())
}

func TestServiceBacktest(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newRiskFixture(t, asOf, 200, &stubGroupSource{})

	start := asOf.AddDate(0, 0, -60)
	report, err := svc.Backtest(context.Background(), start, asOf, 30)
	require.NoError(t, err)

	assert.NotEmpty(t, report.Observations)
	assert.GreaterOrEqual(t, report.BreachRate, 0.0)
	assert.LessOrEqual(t, report.BreachRate, 1.0)
	assert.Equal(t, 30, report.LookbackDays)
	// Alternating +/-1% days never breach their own empirical VaR.
	assert.True(t, report.InsideBinomialBand)
}

func TestPortfolioPnLHistoryDeterministic(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, db, _ := newRiskFixture(t, asOf, 40, &stubGroupSource{})

	products := []string{"WTI", "DUBAI", "GASOIL", "NAPHTHA", "FUEL380"}
	for i, code := range products {
		price := 61.337 + float64(i)*7.013
		for d := 40; d >= 1; d-- {
			require.NoError(t, db.Create(&marketdata.SpotPrice{
				ProductCode: code,
				PriceDate:   asOf.AddDate(0, 0, -d),
				Price:       decimal.NewFromFloat(price),
			}).Error)
			price *= 1 + 0.0137*math.Sin(float64(d*(i+3)))
		}
	}

	positions := make([]Position, 0, len(products)+1)
	positions = append(positions, position("BRENT", 10_000, 80))
	for i, code := range products {
		p := position(code, 1, 1)
		p.Quantity = decimal.NewFromFloat(1_000.25 + float64(i)*317.77)
		p.MarkPrice = decimal.NewFromFloat(59.13 + float64(i)*11.49)
		positions = append(positions, p)
	}

	s := svc.(*service)
	start, end := asOf.AddDate(0, 0, -40), asOf

	base, err := s.portfolioPnLHistory(context.Background(), positions, start, end)
	require.NoError(t, err)
	require.NotEmpty(t, base)

	// Float accumulation across products must happen in a fixed order so the
	// same book yields the same bits on every run.
	for run := 0; run < 10; run++ {
		again, err := s.portfolioPnLHistory(context.Background(), positions, start, end)
		require.NoError(t, err)
		require.Len(t, again, len(base))
		for j := range base {
			assert.Equal(t, base[j].Date, again[j].Date)
			assert.Equal(t, math.Float64bits(base[j].PnL), math.Float64bits(again[j].PnL),
				"run %d date %s: %v != %v", run, base[j].Date, base[j].PnL, again[j].PnL)
		}
	}
}
