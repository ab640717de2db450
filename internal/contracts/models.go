package contracts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind identifies the contract family a position originates from.
type Kind string

const (
	KindPurchase Kind = "Purchase"
	KindSales    Kind = "Sales"
	KindPaper    Kind = "Paper"
)

// Valid reports whether k is a known contract kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindSales, KindPaper:
		return true
	}
	return false
}

// Side is the direction of a paper contract.
type Side string

const (
	SideLong  Side = "Long"
	SideShort Side = "Short"
)

// PurchaseContract is a physical purchase (long) contract row.
type PurchaseContract struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductCode   string          `gorm:"size:32;index;not null" json:"productCode"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Unit          string          `gorm:"size:8;not null" json:"unit"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	Currency      string          `gorm:"size:8;not null;default:USD" json:"currency"`
	ContractMonth string          `gorm:"size:7;index;not null" json:"contractMonth"`
	Active        bool            `gorm:"index;not null" json:"active"`
	TradeDate     time.Time       `gorm:"not null" json:"tradeDate"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// SalesContract is a physical sales (short) contract row.
type SalesContract struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductCode   string          `gorm:"size:32;index;not null" json:"productCode"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Unit          string          `gorm:"size:8;not null" json:"unit"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	Currency      string          `gorm:"size:8;not null;default:USD" json:"currency"`
	ContractMonth string          `gorm:"size:7;index;not null" json:"contractMonth"`
	Active        bool            `gorm:"index;not null" json:"active"`
	TradeDate     time.Time       `gorm:"not null" json:"tradeDate"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// PaperContract is a financially-settled hedge/speculation row.
type PaperContract struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductCode   string          `gorm:"size:32;index;not null" json:"productCode"`
	Side          Side            `gorm:"size:8;not null" json:"side"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Unit          string          `gorm:"size:8;not null" json:"unit"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	Currency      string          `gorm:"size:8;not null;default:USD" json:"currency"`
	ContractMonth string          `gorm:"size:7;index;not null" json:"contractMonth"`
	Active        bool            `gorm:"index;not null" json:"active"`
	TradeDate     time.Time       `gorm:"not null" json:"tradeDate"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Contract is the flattened view the risk engine consumes. Quantity is
// signed: positive for long exposure, negative for short.
type Contract struct {
	ID            uuid.UUID
	Kind          Kind
	ProductCode   string
	Quantity      decimal.Decimal
	Unit          string
	Price         decimal.Decimal
	Currency      string
	ContractMonth string
	TradeDate     time.Time
}

func (p PurchaseContract) flatten() Contract {
	return Contract{
		ID:            p.ID,
		Kind:          KindPurchase,
		ProductCode:   p.ProductCode,
		Quantity:      p.Quantity,
		Unit:          p.Unit,
		Price:         p.Price,
		Currency:      p.Currency,
		ContractMonth: p.ContractMonth,
		TradeDate:     p.TradeDate,
	}
}

func (s SalesContract) flatten() Contract {
	return Contract{
		ID:            s.ID,
		Kind:          KindSales,
		ProductCode:   s.ProductCode,
		Quantity:      s.Quantity.Neg(),
		Unit:          s.Unit,
		Price:         s.Price,
		Currency:      s.Currency,
		ContractMonth: s.ContractMonth,
		TradeDate:     s.TradeDate,
	}
}

func (p PaperContract) flatten() Contract {
	qty := p.Quantity
	if p.Side == SideShort {
		qty = qty.Neg()
	}
	return Contract{
		ID:            p.ID,
		Kind:          KindPaper,
		ProductCode:   p.ProductCode,
		Quantity:      qty,
		Unit:          p.Unit,
		Price:         p.Price,
		Currency:      p.Currency,
		ContractMonth: p.ContractMonth,
		TradeDate:     p.TradeDate,
	}
}
