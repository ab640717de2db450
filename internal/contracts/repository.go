package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
)

// Repository supplies contract data to the risk engine. Implementations must
// return a data-unavailable error when the backing store cannot be reached,
// never an empty slice masking the failure.
type Repository interface {
	// ActiveContracts returns all contracts live at asOf, flattened into
	// signed-quantity rows. productFilter narrows to one product when
	// non-empty.
	ActiveContracts(ctx context.Context, asOf time.Time, productFilter string) ([]Contract, error)
	// Exists reports whether a contract of the given kind exists.
	Exists(ctx context.Context, id uuid.UUID, kind Kind) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates the gorm-backed contract repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Migrate creates the contract tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&PurchaseContract{}, &SalesContract{}, &PaperContract{})
}

func (r *gormRepository) ActiveContracts(ctx context.Context, asOf time.Time, productFilter string) ([]Contract, error) {
	var out []Contract

	var purchases []PurchaseContract
	q := r.db.WithContext(ctx).Where("active = ? AND trade_date <= ?", true, asOf)
	if productFilter != "" {
		q = q.Where("product_code = ?", productFilter)
	}
	if err := q.Find(&purchases).Error; err != nil {
		return nil, apperrors.NewDataUnavailable(err, "loading purchase contracts")
	}
	for _, p := range purchases {
		out = append(out, p.flatten())
	}

	var sales []SalesContract
	q = r.db.WithContext(ctx).Where("active = ? AND trade_date <= ?", true, asOf)
	if productFilter != "" {
		q = q.Where("product_code = ?", productFilter)
	}
	if err := q.Find(&sales).Error; err != nil {
		return nil, apperrors.NewDataUnavailable(err, "loading sales contracts")
	}
	for _, s := range sales {
		out = append(out, s.flatten())
	}

	var papers []PaperContract
	q = r.db.WithContext(ctx).Where("active = ? AND trade_date <= ?", true, asOf)
	if productFilter != "" {
		q = q.Where("product_code = ?", productFilter)
	}
	if err := q.Find(&papers).Error; err != nil {
		return nil, apperrors.NewDataUnavailable(err, "loading paper contracts")
	}
	for _, p := range papers {
		out = append(out, p.flatten())
	}

	return out, nil
}

func (r *gormRepository) Exists(ctx context.Context, id uuid.UUID, kind Kind) (bool, error) {
	var count int64
	var err error
	switch kind {
	case KindPurchase:
		err = r.db.WithContext(ctx).Model(&PurchaseContract{}).Where("id = ?", id).Count(&count).Error
	case KindSales:
		err = r.db.WithContext(ctx).Model(&SalesContract{}).Where("id = ?", id).Count(&count).Error
	case KindPaper:
		err = r.db.WithContext(ctx).Model(&PaperContract{}).Where("id = ?", id).Count(&count).Error
	default:
		return false, apperrors.NewValidation("unknown contract kind %q", kind)
	}
	if err != nil {
		return false, apperrors.NewDataUnavailable(err, "checking contract %s", id)
	}
	return count > 0, nil
}
