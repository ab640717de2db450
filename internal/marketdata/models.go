package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementPrice is the daily settlement for a product and contract month.
type SettlementPrice struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ProductCode   string          `gorm:"size:32;index:idx_settle,priority:1;not null" json:"productCode"`
	ContractMonth string          `gorm:"size:7;index:idx_settle,priority:2;not null" json:"contractMonth"`
	PriceDate     time.Time       `gorm:"index:idx_settle,priority:3;not null" json:"priceDate"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// SpotPrice is the daily spot quote for a product.
type SpotPrice struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ProductCode string          `gorm:"size:32;index:idx_spot,priority:1;not null" json:"productCode"`
	PriceDate   time.Time       `gorm:"index:idx_spot,priority:2;not null" json:"priceDate"`
	Price       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// DatedReturn is one daily return observation.
type DatedReturn struct {
	Date   time.Time
	Return float64
}
