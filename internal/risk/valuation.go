package risk

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/marketdata"
)

// Valuer resolves mark prices through the benchmark precedence chain:
//
//  1. exact settlement price for the contract month on the as-of date
//  2. most recent settlement within the lookback window
//  3. spot price plus the catalog premium formula
//
// When none of the candidates exists the valuation fails; a missing price is
// never reported as zero.
type Valuer struct {
	prices       marketdata.PriceSource
	catalog      *marketdata.Catalog
	lookbackDays int
	logger       *zap.Logger
}

// NewValuer creates the valuation engine.
func NewValuer(prices marketdata.PriceSource, catalog *marketdata.Catalog, lookbackDays int, logger *zap.Logger) *Valuer {
	return &Valuer{prices: prices, catalog: catalog, lookbackDays: lookbackDays, logger: logger}
}

// MarkPositions returns a copy of positions with mark prices resolved. It
// fails on the first position that cannot be priced.
func (v *Valuer) MarkPositions(ctx context.Context, positions []Position) ([]Position, error) {
	marked := make([]Position, len(positions))
	for i, p := range positions {
		price, err := v.markPrice(ctx, p)
		if err != nil {
			v.logger.Error("price resolution failed",
				zap.String("product", p.ProductCode),
				zap.String("contract_month", p.ContractMonth),
				zap.Time("as_of", p.AsOfDate),
				zap.Error(err))
			return nil, err
		}
		p.MarkPrice = price
		marked[i] = p
	}
	return marked, nil
}

func (v *Valuer) markPrice(ctx context.Context, p Position) (decimal.Decimal, error) {
	// 1. Exact settlement on the as-of date.
	price, err := v.prices.SettlementOn(ctx, p.ProductCode, p.ContractMonth, p.AsOfDate)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return decimal.Zero, err
	}

	// 2. Most recent settlement within the lookback window.
	price, _, err = v.prices.LatestSettlementWithin(ctx, p.ProductCode, p.ContractMonth, p.AsOfDate, v.lookbackDays)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return decimal.Zero, err
	}

	// 3. Spot plus catalog premium.
	product, ok := v.catalog.Lookup(p.ProductCode)
	if !ok {
		return decimal.Zero, apperrors.NewNotFound("product %s not in catalog", p.ProductCode)
	}
	spot, err := v.prices.SpotOn(ctx, p.ProductCode, p.AsOfDate)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return decimal.Zero, apperrors.NewDataUnavailable(nil,
				"no price found for %s %s within %d days of %s",
				p.ProductCode, p.ContractMonth, v.lookbackDays, p.AsOfDate.Format("2006-01-02"))
		}
		return decimal.Zero, err
	}
	premium := product.SpotPremiumFixed.Add(spot.Mul(product.SpotPremiumPct))
	return spot.Add(premium), nil
}
