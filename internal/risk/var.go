package risk

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
)

// Normal quantiles for the two supported confidence levels.
const (
	z95 = 1.645
	z99 = 2.326
)

// Method computes VaR at both confidence levels from a money-denominated
// daily P&L series (oldest first). Implementations truncate the series to
// their configured depth and report the depth actually used; a series
// shorter than requested is computed as-is, an empty series is an error.
type Method interface {
	Name() MethodName
	FromPnL(pnl []float64) (VaRResult, error)
}

// HistoricalSimulation revalues the book under each trailing daily return
// and reads VaR off the empirical distribution with nearest-rank
// percentiles (no interpolation, for determinism).
type HistoricalSimulation struct {
	Days int
}

// NewHistoricalSimulation creates the method with the requested trailing
// depth (252 by default upstream).
func NewHistoricalSimulation(days int) *HistoricalSimulation {
	return &HistoricalSimulation{Days: days}
}

func (h *HistoricalSimulation) Name() MethodName { return MethodHistorical }

func (h *HistoricalSimulation) FromPnL(pnl []float64) (VaRResult, error) {
	window := tail(pnl, h.Days)
	if len(window) == 0 {
		return VaRResult{}, apperrors.NewDataUnavailable(nil, "no historical data for VaR calculation")
	}

	sorted := make([]float64, len(window))
	copy(sorted, window)
	sort.Float64s(sorted)

	n := len(sorted)
	idx95 := int(float64(n) * 0.05)
	idx99 := int(float64(n) * 0.01)

	// Nearest-rank loss at the tail; clamping at zero keeps VaR99 >= VaR95
	// even on all-gain windows.
	var95 := math.Max(0, -sorted[idx95])
	var99 := math.Max(0, -sorted[idx99])

	return VaRResult{
		Method:         MethodHistorical,
		VaR95:          money(var95),
		VaR99:          money(var99),
		HorizonDays:    1,
		HistoricalDays: n,
	}, nil
}

// EWMAVolatility forecasts next-day volatility with an exponentially
// weighted moving average of squared P&L (RiskMetrics decay) and scales it
// by the normal quantile. It keeps the legacy Garch method tag on the wire.
type EWMAVolatility struct {
	Days  int
	Decay float64
}

// NewEWMAVolatility creates the parametric method.
func NewEWMAVolatility(days int, decay float64) *EWMAVolatility {
	return &EWMAVolatility{Days: days, Decay: decay}
}

func (e *EWMAVolatility) Name() MethodName { return MethodGarch }

func (e *EWMAVolatility) FromPnL(pnl []float64) (VaRResult, error) {
	window := tail(pnl, e.Days)
	if len(window) == 0 {
		return VaRResult{}, apperrors.NewDataUnavailable(nil, "no historical data for VaR calculation")
	}

	// Weights decay from the most recent observation backwards, then
	// normalize so a short window still sums to one.
	var weightSum, variance float64
	weight := 1 - e.Decay
	for i := len(window) - 1; i >= 0; i-- {
		variance += weight * window[i] * window[i]
		weightSum += weight
		weight *= e.Decay
	}
	if weightSum > 0 {
		variance /= weightSum
	}
	sigma := math.Sqrt(variance)

	return VaRResult{
		Method:         MethodGarch,
		VaR95:          money(z95 * sigma),
		VaR99:          money(z99 * sigma),
		HorizonDays:    1,
		HistoricalDays: len(window),
	}, nil
}

// PnLSeries scales a return series into a money-denominated P&L series for
// one signed exposure. Short positions gain when prices fall.
func PnLSeries(signedValue decimal.Decimal, returns []float64) []float64 {
	value, _ := signedValue.Float64()
	pnl := make([]float64, len(returns))
	for i, r := range returns {
		pnl[i] = value * r
	}
	return pnl
}

// CombinePnL sums per-member P&L series element-wise, truncating to the
// shortest series so dates stay aligned from the most recent backwards.
func CombinePnL(series ...[]float64) []float64 {
	if len(series) == 0 {
		return nil
	}
	minLen := -1
	for _, s := range series {
		if minLen == -1 || len(s) < minLen {
			minLen = len(s)
		}
	}
	if minLen <= 0 {
		return nil
	}
	combined := make([]float64, minLen)
	for _, s := range series {
		offset := len(s) - minLen
		for i := 0; i < minLen; i++ {
			combined[i] += s[offset+i]
		}
	}
	return combined
}

func tail(s []float64, n int) []float64 {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// money converts a float loss into the decimal representation used on the
// wire, rounded to cents.
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
