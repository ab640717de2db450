package tradegroups

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/contracts"
)

// StrategyType classifies why positions are managed together.
type StrategyType string

const (
	StrategySpread      StrategyType = "Spread"
	StrategyHedge       StrategyType = "Hedge"
	StrategyArbitrage   StrategyType = "Arbitrage"
	StrategySpeculative StrategyType = "Speculative"
	StrategyOther       StrategyType = "Other"
)

// Valid reports whether s is a known strategy type.
func (s StrategyType) Valid() bool {
	switch s {
	case StrategySpread, StrategyHedge, StrategyArbitrage, StrategySpeculative, StrategyOther:
		return true
	}
	return false
}

// Status is the group lifecycle state. Closed is terminal.
type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

// TradeGroup is a set of positions managed as one strategy. Membership lives
// in Member rows and the contract index, never as back-pointers on the
// contracts themselves.
type TradeGroup struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string           `gorm:"size:128;not null" json:"name"`
	StrategyType      StrategyType     `gorm:"size:16;not null" json:"strategyType"`
	ExpectedRiskLevel *string          `gorm:"size:16" json:"expectedRiskLevel,omitempty"`
	MaxAllowedLoss    *decimal.Decimal `gorm:"type:decimal(20,2)" json:"maxAllowedLoss,omitempty"`
	TargetProfit      *decimal.Decimal `gorm:"type:decimal(20,2)" json:"targetProfit,omitempty"`
	Status            Status           `gorm:"size:8;index;not null" json:"status"`
	Members           []Member         `gorm:"foreignKey:GroupID" json:"members"`

	CreatedBy        string     `gorm:"size:64" json:"createdBy"`
	CreatedAt        time.Time  `json:"createdAt"`
	ClosedBy         *string    `gorm:"size:64" json:"closedBy,omitempty"`
	ClosedAt         *time.Time `json:"closedAt,omitempty"`
	LastUpdatedBy    *string    `gorm:"size:64" json:"lastUpdatedBy,omitempty"`
	LastUpdatedAt    *time.Time `json:"lastUpdatedAt,omitempty"`
	LastUpdateReason *string    `gorm:"size:256" json:"lastUpdateReason,omitempty"`
}

// Open reports whether the group still accepts mutations.
func (g *TradeGroup) Open() bool { return g.Status == StatusOpen }

// Member is one contract's membership in a trade group, ordered by
// assignment time.
type Member struct {
	ID           uint           `gorm:"primaryKey" json:"-"`
	GroupID      uuid.UUID      `gorm:"type:uuid;index;not null" json:"groupId"`
	ContractID   uuid.UUID      `gorm:"type:uuid;index;not null" json:"contractId"`
	ContractKind contracts.Kind `gorm:"size:16;not null" json:"contractKind"`
	Notes        *string        `gorm:"size:256" json:"notes,omitempty"`
	AssignedBy   string         `gorm:"size:64" json:"assignedBy"`
	AssignedAt   time.Time      `json:"assignedAt"`
}
