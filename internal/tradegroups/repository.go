package tradegroups

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
)

// Repository persists trade groups and their memberships.
type Repository interface {
	Create(ctx context.Context, group *TradeGroup) error
	Get(ctx context.Context, id uuid.UUID) (*TradeGroup, error)
	List(ctx context.Context) ([]TradeGroup, error)
	ListOpen(ctx context.Context) ([]TradeGroup, error)
	Update(ctx context.Context, group *TradeGroup) error
	AddMember(ctx context.Context, member *Member) error
	GetMember(ctx context.Context, groupID, contractID uuid.UUID) (*Member, error)
	RemoveMember(ctx context.Context, groupID, contractID uuid.UUID) error
	OpenMemberships(ctx context.Context) (map[uuid.UUID]uuid.UUID, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates the gorm-backed trade group repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Migrate creates the trade group tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&TradeGroup{}, &Member{})
}

func (r *gormRepository) Create(ctx context.Context, group *TradeGroup) error {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return apperrors.NewDataUnavailable(err, "creating trade group")
	}
	return nil
}

func (r *gormRepository) Get(ctx context.Context, id uuid.UUID) (*TradeGroup, error) {
	var group TradeGroup
	err := r.db.WithContext(ctx).Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("assigned_at ASC, id ASC")
	}).First(&group, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("trade group %s not found", id)
	}
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err, "loading trade group %s", id)
	}
	return &group, nil
}

func (r *gormRepository) List(ctx context.Context) ([]TradeGroup, error) {
	var groups []TradeGroup
	err := r.db.WithContext(ctx).Preload("Members").Order("created_at ASC").Find(&groups).Error
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err, "listing trade groups")
	}
	return groups, nil
}

func (r *gormRepository) ListOpen(ctx context.Context) ([]TradeGroup, error) {
	var groups []TradeGroup
	err := r.db.WithContext(ctx).Preload("Members").Where("status = ?", StatusOpen).
		Order("created_at ASC").Find(&groups).Error
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err, "listing open trade groups")
	}
	return groups, nil
}

func (r *gormRepository) Update(ctx context.Context, group *TradeGroup) error {
	if err := r.db.WithContext(ctx).Save(group).Error; err != nil {
		return apperrors.NewDataUnavailable(err, "updating trade group %s", group.ID)
	}
	return nil
}

func (r *gormRepository) AddMember(ctx context.Context, member *Member) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return apperrors.NewDataUnavailable(err, "adding member to trade group %s", member.GroupID)
	}
	return nil
}

func (r *gormRepository) GetMember(ctx context.Context, groupID, contractID uuid.UUID) (*Member, error) {
	var member Member
	err := r.db.WithContext(ctx).
		First(&member, "group_id = ? AND contract_id = ?", groupID, contractID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("contract %s is not a member of trade group %s", contractID, groupID)
	}
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err, "loading member of trade group %s", groupID)
	}
	return &member, nil
}

func (r *gormRepository) RemoveMember(ctx context.Context, groupID, contractID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND contract_id = ?", groupID, contractID).
		Delete(&Member{}).Error
	if err != nil {
		return apperrors.NewDataUnavailable(err, "removing member from trade group %s", groupID)
	}
	return nil
}

// OpenMemberships returns contract -> group for every member of an open
// group, used to seed the in-memory index at startup.
func (r *gormRepository) OpenMemberships(ctx context.Context) (map[uuid.UUID]uuid.UUID, error) {
	type row struct {
		ContractID uuid.UUID
		GroupID    uuid.UUID
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&Member{}).
		Select("members.contract_id, members.group_id").
		Joins("JOIN trade_groups ON trade_groups.id = members.group_id").
		Where("trade_groups.status = ?", StatusOpen).
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err, "loading open memberships")
	}
	out := make(map[uuid.UUID]uuid.UUID, len(rows))
	for _, r := range rows {
		out[r.ContractID] = r.GroupID
	}
	return out, nil
}
