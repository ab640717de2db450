package risk

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/contracts"
)

// MethodName tags a VaR calculation strategy.
type MethodName string

const (
	// MethodHistorical is historical simulation over the trailing return
	// window with nearest-rank percentiles.
	MethodHistorical MethodName = "Historical"
	// MethodGarch is the parametric volatility-forecast method. The
	// estimator is EWMA (RiskMetrics decay); the tag is kept so existing
	// API consumers see the same method name.
	MethodGarch MethodName = "Garch"
)

// Position is an immutable mark-to-market snapshot of one contract's
// exposure, rebuilt on every calculation. Quantity is signed: positive long,
// negative short.
type Position struct {
	ProductCode   string          `json:"productCode"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
	MarkPrice     decimal.Decimal `json:"markPrice"`
	Currency      string          `json:"currency"`
	ContractID    uuid.UUID       `json:"contractId"`
	ContractKind  contracts.Kind  `json:"contractKind"`
	ContractMonth string          `json:"contractMonth"`
	AsOfDate      time.Time       `json:"asOfDate"`
}

// SignedValue is quantity times mark price, preserving direction.
func (p Position) SignedValue() decimal.Decimal {
	return p.Quantity.Mul(p.MarkPrice)
}

// AbsValue is the absolute market value of the position.
func (p Position) AbsValue() decimal.Decimal {
	return p.SignedValue().Abs()
}

// VaRResult is the outcome of one VaR method at both confidence levels.
// HistoricalDays is the depth actually used, which may be below the
// requested depth when history is short.
type VaRResult struct {
	Method         MethodName      `json:"method"`
	VaR95          decimal.Decimal `json:"var95"`
	VaR99          decimal.Decimal `json:"var99"`
	HorizonDays    int             `json:"horizonDays"`
	HistoricalDays int             `json:"historicalDays"`
}

// RiskResult is the single-confidence view of a VaR computation.
type RiskResult struct {
	ConfidenceLevel int             `json:"confidenceLevel"`
	Method          MethodName      `json:"method"`
	Value           decimal.Decimal `json:"value"`
	HorizonDays     int             `json:"horizonDays"`
	HistoricalDays  int             `json:"historicalDays"`
}

// At projects the result to one confidence level (95 or 99).
func (v VaRResult) At(confidence int) RiskResult {
	value := v.VaR95
	if confidence == 99 {
		value = v.VaR99
	}
	return RiskResult{
		ConfidenceLevel: confidence,
		Method:          v.Method,
		Value:           value,
		HorizonDays:     v.HorizonDays,
		HistoricalDays:  v.HistoricalDays,
	}
}

// GroupRiskResult is the netted risk of one open trade group. VaR is priced
// on the net residual exposure, not summed across members.
type GroupRiskResult struct {
	GroupID            uuid.UUID       `json:"groupId"`
	GroupName          string          `json:"groupName"`
	StrategyType       string          `json:"strategyType"`
	MemberCount        int             `json:"memberCount"`
	GrossExposure      decimal.Decimal `json:"grossExposure"`
	NetExposure        decimal.Decimal `json:"netExposure"`
	CorrelationBenefit decimal.Decimal `json:"correlationBenefit"`
	VaR95              decimal.Decimal `json:"var95"`
	VaR99              decimal.Decimal `json:"var99"`
	HistoricalDays     int             `json:"historicalDays"`
}

// StressResult is the P&L impact of one shock scenario.
type StressResult struct {
	Scenario    string          `json:"scenario"`
	ShockPct    float64         `json:"shockPct"`
	PnLImpact   decimal.Decimal `json:"pnlImpact"`
	Description string          `json:"description"`
}

// StressSummary bundles all scenario results with the worst aggregate loss.
type StressSummary struct {
	Results           []StressResult  `json:"results"`
	WorstCaseScenario string          `json:"worstCaseScenario"`
	WorstCaseLoss     decimal.Decimal `json:"worstCaseLoss"`
}

// StandaloneRisk covers positions outside any open trade group, valued with
// the traditional gross-sum method.
type StandaloneRisk struct {
	PositionCount int             `json:"positionCount"`
	GrossExposure decimal.Decimal `json:"grossExposure"`
	NetExposure   decimal.Decimal `json:"netExposure"`
	VaR95         decimal.Decimal `json:"var95"`
	VaR99         decimal.Decimal `json:"var99"`
}

// PortfolioRisk is the combined standalone plus trade-group portfolio view.
type PortfolioRisk struct {
	AsOfDate           time.Time         `json:"asOfDate"`
	TotalGrossExposure decimal.Decimal   `json:"totalGrossExposure"`
	TotalNetExposure   decimal.Decimal   `json:"totalNetExposure"`
	TotalVaR95         decimal.Decimal   `json:"totalVar95"`
	TotalVaR99         decimal.Decimal   `json:"totalVar99"`
	TradeGroupCount    int               `json:"tradeGroupCount"`
	CorrelationBenefit decimal.Decimal   `json:"correlationBenefit"`
	Standalone         StandaloneRisk    `json:"standalone"`
	Groups             []GroupRiskResult `json:"groups"`
	Stress             *StressSummary    `json:"stress,omitempty"`
}

// MethodExposure is one side of the traditional-vs-trade-group comparison.
type MethodExposure struct {
	GrossExposure decimal.Decimal `json:"grossExposure"`
	NetExposure   decimal.Decimal `json:"netExposure"`
	VaR95         decimal.Decimal `json:"var95"`
	VaR99         decimal.Decimal `json:"var99"`
}

// MethodComparison contrasts the traditional gross-sum measure against the
// trade-group netted measure.
type MethodComparison struct {
	AsOfDate          time.Time       `json:"asOfDate"`
	Traditional       MethodExposure  `json:"traditional"`
	TradeGroupBased   MethodExposure  `json:"tradeGroupBased"`
	RiskOverstatement decimal.Decimal `json:"riskOverstatement"`
	ExposureReduction decimal.Decimal `json:"exposureReduction"`
}

// RiskCalculation is the response of the base VaR calculation endpoint.
type RiskCalculation struct {
	AsOfDate       time.Time      `json:"asOfDate"`
	PositionCount  int            `json:"positionCount"`
	HistoricalDays int            `json:"historicalDays"`
	Results        []VaRResult    `json:"results"`
	Stress         *StressSummary `json:"stress,omitempty"`
}

// PortfolioSummary is the traditional portfolio overview. NetQuantityBBL is
// the signed book quantity rolled up to barrels via the catalog conversion
// factors, so MT-denominated fuel positions net against crude.
type PortfolioSummary struct {
	AsOfDate       time.Time       `json:"asOfDate"`
	PositionCount  int             `json:"positionCount"`
	GrossExposure  decimal.Decimal `json:"grossExposure"`
	NetExposure    decimal.Decimal `json:"netExposure"`
	NetQuantityBBL decimal.Decimal `json:"netQuantityBbl"`
	VaR95          decimal.Decimal `json:"var95"`
	VaR99          decimal.Decimal `json:"var99"`
}

// ProductRisk is the product-scoped risk view.
type ProductRisk struct {
	ProductCode   string          `json:"productCode"`
	AsOfDate      time.Time       `json:"asOfDate"`
	PositionCount int             `json:"positionCount"`
	GrossExposure decimal.Decimal `json:"grossExposure"`
	NetExposure   decimal.Decimal `json:"netExposure"`
	Results       []VaRResult     `json:"results"`
}

// BacktestObservation compares one day's VaR prediction with the realized
// P&L. Breach is true when the realized loss exceeded the prediction.
type BacktestObservation struct {
	Date         time.Time       `json:"date"`
	PredictedVaR decimal.Decimal `json:"predictedVar"`
	RealizedPnL  decimal.Decimal `json:"realizedPnl"`
	Breach       bool            `json:"breach"`
}

// BacktestReport summarizes model accuracy over the replay window.
type BacktestReport struct {
	StartDate          time.Time             `json:"startDate"`
	EndDate            time.Time             `json:"endDate"`
	LookbackDays       int                   `json:"lookbackDays"`
	ConfidenceLevel    float64               `json:"confidenceLevel"`
	Observations       []BacktestObservation `json:"observations"`
	BreachCount        int                   `json:"breachCount"`
	BreachRate         float64               `json:"breachRate"`
	ExpectedBreachRate float64               `json:"expectedBreachRate"`
	InsideBinomialBand bool                  `json:"insideBinomialBand"`
	KupiecLR           float64               `json:"kupiecLr"`
	KupiecPValue       float64               `json:"kupiecPValue"`
	ModelAccepted      bool                  `json:"modelAccepted"`
}
