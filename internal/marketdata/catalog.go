package marketdata

import (
	"github.com/shopspring/decimal"
)

// Product describes one tradable oil product. BarrelsPerUnit converts the
// product's native unit into barrels so exposures across products net in a
// common unit. SpotPremiumFixed/Pct parameterize the spot-plus-premium
// fallback used when no settlement price is available.
type Product struct {
	Code             string
	Name             string
	Unit             string
	LotSize          decimal.Decimal
	BarrelsPerUnit   decimal.Decimal
	SpotPremiumFixed decimal.Decimal
	SpotPremiumPct   decimal.Decimal
}

// Catalog is an immutable product lookup injected into the risk engine at
// construction. It replaces any static known-products accessor.
type Catalog struct {
	products map[string]Product
}

// NewCatalog builds a catalog from the given products.
func NewCatalog(products ...Product) *Catalog {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.Code] = p
	}
	return &Catalog{products: m}
}

// Lookup returns the product for code without exposing the backing map.
func (c *Catalog) Lookup(code string) (Product, bool) {
	p, ok := c.products[code]
	return p, ok
}

// Codes returns all known product codes.
func (c *Catalog) Codes() []string {
	out := make([]string, 0, len(c.products))
	for code := range c.products {
		out = append(out, code)
	}
	return out
}

// DefaultCatalog covers the standard oil-product book: crude benchmarks in
// barrels and fuel/gasoil products in metric tonnes (1 MT of fuel oil is
// approximately 6.35 BBL, gasoil 7.45 BBL).
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Product{
			Code: "BRENT", Name: "Brent Crude", Unit: "BBL",
			LotSize: decimal.NewFromInt(1000), BarrelsPerUnit: decimal.NewFromInt(1),
			SpotPremiumFixed: decimal.NewFromFloat(0.5), SpotPremiumPct: decimal.Zero,
		},
		Product{
			Code: "WTI", Name: "WTI Crude", Unit: "BBL",
			LotSize: decimal.NewFromInt(1000), BarrelsPerUnit: decimal.NewFromInt(1),
			SpotPremiumFixed: decimal.NewFromFloat(0.4), SpotPremiumPct: decimal.Zero,
		},
		Product{
			Code: "DUBAI", Name: "Dubai Crude", Unit: "BBL",
			LotSize: decimal.NewFromInt(1000), BarrelsPerUnit: decimal.NewFromInt(1),
			SpotPremiumFixed: decimal.Zero, SpotPremiumPct: decimal.NewFromFloat(0.005),
		},
		Product{
			Code: "FUEL380", Name: "Fuel Oil 380cst", Unit: "MT",
			LotSize: decimal.NewFromInt(100), BarrelsPerUnit: decimal.NewFromFloat(6.35),
			SpotPremiumFixed: decimal.NewFromInt(2), SpotPremiumPct: decimal.Zero,
		},
		Product{
			Code: "MGO", Name: "Marine Gasoil", Unit: "MT",
			LotSize: decimal.NewFromInt(100), BarrelsPerUnit: decimal.NewFromFloat(7.45),
			SpotPremiumFixed: decimal.NewFromInt(3), SpotPremiumPct: decimal.NewFromFloat(0.002),
		},
	)
}
