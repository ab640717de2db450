package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RiskCalculations counts completed risk calculations by method and outcome.
var RiskCalculations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oiltrading_risk_calculations_total",
		Help: "Total number of portfolio risk calculations by method and outcome",
	},
	[]string{"method", "outcome"},
)

// RiskCalculationDuration records the latency distribution of full portfolio
// risk calculations.
var RiskCalculationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "oiltrading_risk_calculation_duration_seconds",
		Help:    "Duration in seconds of portfolio risk calculations",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method"},
)

// BacktestRuns counts backtest executions by outcome.
var BacktestRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oiltrading_backtest_runs_total",
		Help: "Total number of VaR backtest runs by outcome",
	},
	[]string{"outcome"},
)

// TradeGroupMutations counts trade group mutations by operation and outcome.
var TradeGroupMutations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oiltrading_trade_group_mutations_total",
		Help: "Total number of trade group mutations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// PositionsExtracted records how many positions the extractor produced per run.
var PositionsExtracted = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "oiltrading_positions_extracted",
		Help:    "Number of positions extracted per risk calculation",
		Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
	},
)

func init() {
	prometheus.MustRegister(RiskCalculations, RiskCalculationDuration)
	prometheus.MustRegister(BacktestRuns, TradeGroupMutations, PositionsExtracted)
}
