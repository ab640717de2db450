package risk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/marketdata"
)

// fakePriceSource satisfies marketdata.PriceSource with canned lookups. Any
// unset hook behaves as a missing price.
type fakePriceSource struct {
	settlementOn func(product, month string, date time.Time) (decimal.Decimal, error)
	latestWithin func(product, month string, until time.Time, windowDays int) (decimal.Decimal, time.Time, error)
	spotOn       func(product string, date time.Time) (decimal.Decimal, error)
	dailyReturns func(product string, until time.Time, maxDays int) ([]float64, error)
}

func (f *fakePriceSource) SettlementOn(_ context.Context, product, month string, date time.Time) (decimal.Decimal, error) {
	if f.settlementOn == nil {
		return decimal.Zero, apperrors.NewNotFound("no settlement price for %s %s", product, month)
	}
	return f.settlementOn(product, month, date)
}

func (f *fakePriceSource) LatestSettlementWithin(_ context.Context, product, month string, until time.Time, windowDays int) (decimal.Decimal, time.Time, error) {
	if f.latestWithin == nil {
		return decimal.Zero, time.Time{}, apperrors.NewNotFound("no settlement price for %s %s", product, month)
	}
	return f.latestWithin(product, month, until, windowDays)
}

func (f *fakePriceSource) SpotOn(_ context.Context, product string, date time.Time) (decimal.Decimal, error) {
	if f.spotOn == nil {
		return decimal.Zero, apperrors.NewNotFound("no spot price for %s", product)
	}
	return f.spotOn(product, date)
}

func (f *fakePriceSource) DailyReturns(_ context.Context, product string, until time.Time, maxDays int) ([]float64, error) {
	if f.dailyReturns == nil {
		return nil, apperrors.NewDataUnavailable(nil, "insufficient price history for %s", product)
	}
	return f.dailyReturns(product, until, maxDays)
}

func (f *fakePriceSource) ReturnsBetween(_ context.Context, product string, _, _ time.Time) ([]marketdata.DatedReturn, error) {
	return nil, apperrors.NewDataUnavailable(nil, "insufficient price history for %s", product)
}

func TestValuerPrefersExactSettlement(t *testing.T) {
	prices := &fakePriceSource{
		settlementOn: func(string, string, time.Time) (decimal.Decimal, error) {
			return decimal.NewFromFloat(81.25), nil
		},
		spotOn: func(string, time.Time) (decimal.Decimal, error) {
			t.Fatal("spot must not be consulted when a settlement exists")
			return decimal.Zero, nil
		},
	}
	valuer := NewValuer(prices, marketdata.DefaultCatalog(), 30, zap.NewNop())

	marked, err := valuer.MarkPositions(context.Background(), []Position{position("BRENT", 10_000, 0)})
	require.NoError(t, err)
	assert.True(t, marked[0].MarkPrice.Equal(decimal.NewFromFloat(81.25)))
}

func TestValuerFallsBackToRecentSettlement(t *testing.T) {
	prices := &fakePriceSource{
		latestWithin: func(_, _ string, until time.Time, windowDays int) (decimal.Decimal, time.Time, error) {
			assert.Equal(t, 30, windowDays)
			return decimal.NewFromFloat(79.50), until.AddDate(0, 0, -3), nil
		},
	}
	valuer := NewValuer(prices, marketdata.DefaultCatalog(), 30, zap.NewNop())

	marked, err := valuer.MarkPositions(context.Background(), []Position{position("BRENT", 10_000, 0)})
	require.NoError(t, err)
	assert.True(t, marked[0].MarkPrice.Equal(decimal.NewFromFloat(79.50)))
}

func TestValuerFallsBackToSpotPlusPremium(t *testing.T) {
	prices := &fakePriceSource{
		spotOn: func(string, time.Time) (decimal.Decimal, error) {
			return decimal.NewFromInt(80), nil
		},
	}
	valuer := NewValuer(prices, marketdata.DefaultCatalog(), 30, zap.NewNop())

	// Brent carries a fixed $0.50 premium over spot.
	marked, err := valuer.MarkPositions(context.Background(), []Position{position("BRENT", 10_000, 0)})
	require.NoError(t, err)
	assert.True(t, marked[0].MarkPrice.Equal(decimal.NewFromFloat(80.5)), "got %s", marked[0].MarkPrice)

	// Dubai uses a percentage premium: 80 * 1.005.
	dubai := position("DUBAI", 10_000, 0)
	marked, err = valuer.MarkPositions(context.Background(), []Position{dubai})
	require.NoError(t, err)
	assert.True(t, marked[0].MarkPrice.Equal(decimal.NewFromFloat(80.4)), "got %s", marked[0].MarkPrice)
}

func TestValuerFailsWhenNoPriceAnywhere(t *testing.T) {
	valuer := NewValuer(&fakePriceSource{}, marketdata.DefaultCatalog(), 30, zap.NewNop())

	_, err := valuer.MarkPositions(context.Background(), []Position{position("BRENT", 10_000, 0)})
	require.Error(t, err)
	// The failure is explicit, never a silent zero mark.
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
}

func TestValuerUnknownProduct(t *testing.T) {
	valuer := NewValuer(&fakePriceSource{}, marketdata.DefaultCatalog(), 30, zap.NewNop())

	_, err := valuer.MarkPositions(context.Background(), []Position{position("NAPHTHA", 10_000, 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestValuerPropagatesStoreFailures(t *testing.T) {
	prices := &fakePriceSource{
		settlementOn: func(string, string, time.Time) (decimal.Decimal, error) {
			return decimal.Zero, apperrors.NewDataUnavailable(nil, "price store unreachable")
		},
	}
	valuer := NewValuer(prices, marketdata.DefaultCatalog(), 30, zap.NewNop())

	_, err := valuer.MarkPositions(context.Background(), []Position{position("BRENT", 10_000, 0)})
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
}
