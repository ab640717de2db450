package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
)

// PriceSource supplies settlement and spot prices plus historical return
// series. A missing price inside the allowed window surfaces as a
// data-unavailable error so valuation never silently zeroes a mark.
type PriceSource interface {
	// SettlementOn returns the exact settlement price for the contract month
	// on date.
	SettlementOn(ctx context.Context, product, contractMonth string, date time.Time) (decimal.Decimal, error)
	// LatestSettlementWithin returns the most recent settlement on or before
	// until, looking back at most windowDays.
	LatestSettlementWithin(ctx context.Context, product, contractMonth string, until time.Time, windowDays int) (decimal.Decimal, time.Time, error)
	// SpotOn returns the most recent spot price on or before date.
	SpotOn(ctx context.Context, product string, date time.Time) (decimal.Decimal, error)
	// DailyReturns returns up to maxDays trailing daily returns for product,
	// oldest first, derived from spot prices strictly before until.
	DailyReturns(ctx context.Context, product string, until time.Time, maxDays int) ([]float64, error)
	// ReturnsBetween returns dated daily returns in [start, end], oldest
	// first. Used by the backtesting engine.
	ReturnsBetween(ctx context.Context, product string, start, end time.Time) ([]DatedReturn, error)
}

type gormPriceSource struct {
	db *gorm.DB
}

// NewPriceSource creates the gorm-backed price source.
func NewPriceSource(db *gorm.DB) PriceSource {
	return &gormPriceSource{db: db}
}

// Migrate creates the market data tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&SettlementPrice{}, &SpotPrice{})
}

func (s *gormPriceSource) SettlementOn(ctx context.Context, product, contractMonth string, date time.Time) (decimal.Decimal, error) {
	var row SettlementPrice
	err := s.db.WithContext(ctx).
		Where("product_code = ? AND contract_month = ? AND price_date = ?", product, contractMonth, day(date)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, apperrors.NewNotFound("no settlement price for %s %s on %s", product, contractMonth, day(date).Format("2006-01-02"))
	}
	if err != nil {
		return decimal.Zero, apperrors.NewDataUnavailable(err, "loading settlement price for %s %s", product, contractMonth)
	}
	return row.Price, nil
}

func (s *gormPriceSource) LatestSettlementWithin(ctx context.Context, product, contractMonth string, until time.Time, windowDays int) (decimal.Decimal, time.Time, error) {
	floor := day(until).AddDate(0, 0, -windowDays)
	var row SettlementPrice
	err := s.db.WithContext(ctx).
		Where("product_code = ? AND contract_month = ? AND price_date <= ? AND price_date >= ?",
			product, contractMonth, day(until), floor).
		Order("price_date DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, time.Time{}, apperrors.NewNotFound("no settlement price for %s %s within %d days of %s",
			product, contractMonth, windowDays, day(until).Format("2006-01-02"))
	}
	if err != nil {
		return decimal.Zero, time.Time{}, apperrors.NewDataUnavailable(err, "loading settlement prices for %s %s", product, contractMonth)
	}
	return row.Price, row.PriceDate, nil
}

func (s *gormPriceSource) SpotOn(ctx context.Context, product string, date time.Time) (decimal.Decimal, error) {
	var row SpotPrice
	err := s.db.WithContext(ctx).
		Where("product_code = ? AND price_date <= ?", product, day(date)).
		Order("price_date DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, apperrors.NewNotFound("no spot price for %s on or before %s", product, day(date).Format("2006-01-02"))
	}
	if err != nil {
		return decimal.Zero, apperrors.NewDataUnavailable(err, "loading spot price for %s", product)
	}
	return row.Price, nil
}

func (s *gormPriceSource) DailyReturns(ctx context.Context, product string, until time.Time, maxDays int) ([]float64, error) {
	// Need maxDays+1 prices for maxDays returns.
	var rows []SpotPrice
	err := s.db.WithContext(ctx).
		Where("product_code = ? AND price_date < ?", product, day(until)).
		Order("price_date DESC").
		Limit(maxDays + 1).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err, "loading price history for %s", product)
	}
	if len(rows) < 2 {
		return nil, apperrors.NewDataUnavailable(nil, "insufficient price history for %s before %s", product, day(until).Format("2006-01-02"))
	}
	// rows are newest-first; build oldest-first returns.
	returns := make([]float64, 0, len(rows)-1)
	for i := len(rows) - 1; i > 0; i-- {
		prev := rows[i].Price
		curr := rows[i-1].Price
		if prev.IsZero() {
			continue
		}
		r, _ := curr.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	return returns, nil
}

func (s *gormPriceSource) ReturnsBetween(ctx context.Context, product string, start, end time.Time) ([]DatedReturn, error) {
	var rows []SpotPrice
	err := s.db.WithContext(ctx).
		Where("product_code = ? AND price_date >= ? AND price_date <= ?", product, day(start).AddDate(0, 0, -7), day(end)).
		Order("price_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err, "loading price history for %s", product)
	}
	out := make([]DatedReturn, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		if rows[i].PriceDate.Before(day(start)) {
			continue
		}
		prev := rows[i-1].Price
		if prev.IsZero() {
			continue
		}
		r, _ := rows[i].Price.Sub(prev).Div(prev).Float64()
		out = append(out, DatedReturn{Date: rows[i].PriceDate, Return: r})
	}
	return out, nil
}

// day truncates t to midnight UTC so date comparisons are stable across
// callers that pass timestamps.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
