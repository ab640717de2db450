package marketdata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func seedSpots(t *testing.T, db *gorm.DB, product string, start time.Time, prices ...float64) {
	t.Helper()
	for i, p := range prices {
		row := SpotPrice{
			ProductCode: product,
			PriceDate:   start.AddDate(0, 0, i),
			Price:       decimal.NewFromFloat(p),
		}
		require.NoError(t, db.Create(&row).Error)
	}
}

func TestSettlementOn(t *testing.T) {
	db := newTestDB(t)
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&SettlementPrice{
		ProductCode: "BRENT", ContractMonth: "2026-04",
		PriceDate: date, Price: decimal.NewFromFloat(80.25),
	}).Error)
	source := NewPriceSource(db)

	price, err := source.SettlementOn(context.Background(), "BRENT", "2026-04", date)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(80.25)))

	// Timestamps within the day resolve to the same settlement.
	price, err = source.SettlementOn(context.Background(), "BRENT", "2026-04", date.Add(15*time.Hour))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(80.25)))

	_, err = source.SettlementOn(context.Background(), "BRENT", "2026-05", date)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = source.SettlementOn(context.Background(), "BRENT", "2026-04", date.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLatestSettlementWithin(t *testing.T) {
	db := newTestDB(t)
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, d := range []int{-10, -5, -3} {
		require.NoError(t, db.Create(&SettlementPrice{
			ProductCode: "BRENT", ContractMonth: "2026-04",
			PriceDate: asOf.AddDate(0, 0, d),
			Price:     decimal.NewFromInt(int64(80 + d)),
		}).Error)
	}
	source := NewPriceSource(db)

	price, date, err := source.LatestSettlementWithin(context.Background(), "BRENT", "2026-04", asOf, 30)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(77)))
	assert.Equal(t, asOf.AddDate(0, 0, -3), date)

	// A two-day window reaches none of the settlements.
	_, _, err = source.LatestSettlementWithin(context.Background(), "BRENT", "2026-04", asOf, 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSpotOn(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)
	seedSpots(t, db, "BRENT", start, 79, 80, 81)
	source := NewPriceSource(db)

	// Most recent on or before the query date.
	price, err := source.SpotOn(context.Background(), "BRENT", start.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(81)))

	price, err = source.SpotOn(context.Background(), "BRENT", start.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(80)))

	_, err = source.SpotOn(context.Background(), "BRENT", start.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDailyReturnsOldestFirst(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	seedSpots(t, db, "BRENT", start, 100, 102, 99.96, 101.9592)
	source := NewPriceSource(db)

	returns, err := source.DailyReturns(context.Background(), "BRENT", start.AddDate(0, 0, 10), 252)
	require.NoError(t, err)
	require.Len(t, returns, 3)
	assert.InDelta(t, 0.02, returns[0], 1e-9)
	assert.InDelta(t, -0.02, returns[1], 1e-9)
	assert.InDelta(t, 0.02, returns[2], 1e-9)
}

func TestDailyReturnsExcludesAsOfDate(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	seedSpots(t, db, "BRENT", start, 100, 102, 104)
	source := NewPriceSource(db)

	// Only prices strictly before the as-of date contribute.
	returns, err := source.DailyReturns(context.Background(), "BRENT", start.AddDate(0, 0, 2), 252)
	require.NoError(t, err)
	require.Len(t, returns, 1)
	assert.InDelta(t, 0.02, returns[0], 1e-9)
}

func TestDailyReturnsCapsDepth(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	seedSpots(t, db, "BRENT", start, prices...)
	source := NewPriceSource(db)

	returns, err := source.DailyReturns(context.Background(), "BRENT", start.AddDate(0, 0, 60), 10)
	require.NoError(t, err)
	assert.Len(t, returns, 10)
}

func TestDailyReturnsInsufficientHistory(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	seedSpots(t, db, "BRENT", start, 100)
	source := NewPriceSource(db)

	_, err := source.DailyReturns(context.Background(), "BRENT", start.AddDate(0, 0, 5), 252)
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
}

func TestReturnsBetween(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	seedSpots(t, db, "BRENT", start, 100, 102, 99.96, 101.9592, 100)
	source := NewPriceSource(db)

	// The window [start+1, start+3] picks up three dated returns; the price
	// just before the window seeds the first one.
	out, err := source.ReturnsBetween(context.Background(), "BRENT", start.AddDate(0, 0, 1), start.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, start.AddDate(0, 0, 1), out[0].Date)
	assert.InDelta(t, 0.02, out[0].Return, 1e-9)
	assert.Equal(t, start.AddDate(0, 0, 3), out[2].Date)
	assert.InDelta(t, 0.02, out[2].Return, 1e-9)
}

func TestCatalogLookup(t *testing.T) {
	catalog := DefaultCatalog()

	brent, ok := catalog.Lookup("BRENT")
	require.True(t, ok)
	assert.Equal(t, "BBL", brent.Unit)
	assert.True(t, brent.BarrelsPerUnit.Equal(decimal.NewFromInt(1)))

	fuel, ok := catalog.Lookup("FUEL380")
	require.True(t, ok)
	assert.Equal(t, "MT", fuel.Unit)
	assert.True(t, fuel.BarrelsPerUnit.Equal(decimal.NewFromFloat(6.35)))

	_, ok = catalog.Lookup("NAPHTHA")
	assert.False(t, ok)

	assert.Len(t, catalog.Codes(), 5)
}
