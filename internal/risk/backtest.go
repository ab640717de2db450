package risk

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
)

// DatedPnL is one day's realized portfolio P&L in money terms.
type DatedPnL struct {
	Date time.Time
	PnL  float64
}

// BacktestInput drives one backtest run. PnL must cover the lookback window
// before Start through End, oldest first.
type BacktestInput struct {
	PnL             []DatedPnL
	Start, End      time.Time
	LookbackDays    int
	ConfidenceLevel float64
	KupiecAlpha     float64
}

// Backtester replays historical VaR predictions against realized P&L. For
// each trading day it fits the model on the trailing window ending the prior
// day, then checks whether the next day's loss breached the prediction.
type Backtester struct {
	logger *zap.Logger
}

// NewBacktester creates the backtesting engine.
func NewBacktester(logger *zap.Logger) *Backtester {
	return &Backtester{logger: logger}
}

// Run walks the replay window, honoring ctx cancellation between days so
// wide date ranges stay interruptible.
func (b *Backtester) Run(ctx context.Context, in BacktestInput) (*BacktestReport, error) {
	if !in.End.After(in.Start) && !in.End.Equal(in.Start) {
		return nil, apperrors.NewValidation("end date %s precedes start date %s",
			in.End.Format("2006-01-02"), in.Start.Format("2006-01-02"))
	}
	if in.LookbackDays < 2 {
		return nil, apperrors.NewValidation("lookback of %d days is too short", in.LookbackDays)
	}
	if len(in.PnL) == 0 {
		return nil, apperrors.NewDataUnavailable(nil, "no P&L history covering backtest window")
	}

	method := NewHistoricalSimulation(in.LookbackDays)
	report := &BacktestReport{
		StartDate:          in.Start,
		EndDate:            in.End,
		LookbackDays:       in.LookbackDays,
		ConfidenceLevel:    in.ConfidenceLevel,
		ExpectedBreachRate: 1 - in.ConfidenceLevel,
	}

	for i, day := range in.PnL {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if day.Date.Before(in.Start) || day.Date.After(in.End) {
			continue
		}

		window := in.PnL[:i]
		if len(window) < 2 {
			continue
		}
		start := 0
		if len(window) > in.LookbackDays {
			start = len(window) - in.LookbackDays
		}
		pnlWindow := make([]float64, 0, len(window)-start)
		for _, w := range window[start:] {
			pnlWindow = append(pnlWindow, w.PnL)
		}

		predicted, err := method.FromPnL(pnlWindow)
		if err != nil {
			return nil, err
		}
		varValue := predicted.VaR95
		if in.ConfidenceLevel >= 0.99 {
			varValue = predicted.VaR99
		}

		realized := money(day.PnL)
		loss := realized.Neg()
		breach := loss.GreaterThan(varValue)
		report.Observations = append(report.Observations, BacktestObservation{
			Date:         day.Date,
			PredictedVaR: varValue,
			RealizedPnL:  realized,
			Breach:       breach,
		})
		if breach {
			report.BreachCount++
		}
	}

	n := len(report.Observations)
	if n == 0 {
		return nil, apperrors.NewDataUnavailable(nil, "no trading days with sufficient history in [%s, %s]",
			in.Start.Format("2006-01-02"), in.End.Format("2006-01-02"))
	}

	report.BreachRate = float64(report.BreachCount) / float64(n)
	report.InsideBinomialBand = insideBinomialBand(report.BreachCount, n, report.ExpectedBreachRate)
	report.KupiecLR = kupiecLR(report.BreachCount, n, report.ExpectedBreachRate)
	report.KupiecPValue = chiSquaredPValue1(report.KupiecLR)
	report.ModelAccepted = report.KupiecPValue > in.KupiecAlpha

	b.logger.Info("backtest completed",
		zap.Int("observations", n),
		zap.Int("breaches", report.BreachCount),
		zap.Float64("breach_rate", report.BreachRate),
		zap.Float64("kupiec_p", report.KupiecPValue))
	return report, nil
}

// insideBinomialBand checks the breach count against a two-sided 95% normal
// approximation of the binomial distribution.
func insideBinomialBand(breaches, n int, p float64) bool {
	mean := float64(n) * p
	sd := math.Sqrt(float64(n) * p * (1 - p))
	if sd == 0 {
		return breaches == 0
	}
	z := (float64(breaches) - mean) / sd
	return math.Abs(z) <= 1.96
}

// kupiecLR is the proportion-of-failures likelihood ratio. Under the null
// (observed rate equals expected) it is chi-squared with one degree of
// freedom.
func kupiecLR(breaches, n int, p float64) float64 {
	x := float64(breaches)
	nn := float64(n)
	observed := x / nn

	logL := func(rate float64) float64 {
		// Guard the log at the boundary; the limit of x*log(x) at 0 is 0.
		var l float64
		if nn-x > 0 {
			l += (nn - x) * math.Log(1-rate)
		}
		if x > 0 {
			l += x * math.Log(rate)
		}
		return l
	}

	if observed <= 0 || observed >= 1 {
		// The alternative log-likelihood vanishes at the boundary.
		return -2 * logL(p)
	}
	return -2 * (logL(p) - logL(observed))
}

// chiSquaredPValue1 is the survival function of chi-squared with one degree
// of freedom, which reduces to erfc(sqrt(x/2)).
func chiSquaredPValue1(x float64) float64 {
	if x <= 0 {
		return 1
	}
	return math.Erfc(math.Sqrt(x / 2))
}
