package risk

import (
	"context"
	"time"

	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/contracts"
)

// Extractor turns live contracts into a flat list of risk positions. Mark
// prices are left zero; the Valuer fills them in a separate pass.
type Extractor struct {
	contracts contracts.Repository
}

// NewExtractor creates a position extractor over the contract repository.
func NewExtractor(repo contracts.Repository) *Extractor {
	return &Extractor{contracts: repo}
}

// Extract builds positions from all active purchase, sales and paper
// contracts at asOf. productFilter narrows to one product when non-empty.
// A repository failure propagates as data-unavailable.
func (e *Extractor) Extract(ctx context.Context, asOf time.Time, productFilter string) ([]Position, error) {
	rows, err := e.contracts.ActiveContracts(ctx, asOf, productFilter)
	if err != nil {
		return nil, err
	}

	positions := make([]Position, 0, len(rows))
	for _, c := range rows {
		if c.Quantity.IsZero() {
			continue
		}
		positions = append(positions, Position{
			ProductCode:   c.ProductCode,
			Quantity:      c.Quantity,
			Unit:          c.Unit,
			Currency:      c.Currency,
			ContractID:    c.ID,
			ContractKind:  c.Kind,
			ContractMonth: c.ContractMonth,
			AsOfDate:      asOf,
		})
	}
	return positions, nil
}
