package tradegroups

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/contracts"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/pkg/metrics"
)

// CreateRequest carries the fields for a new trade group.
type CreateRequest struct {
	Name              string
	StrategyType      StrategyType
	ExpectedRiskLevel *string
	MaxAllowedLoss    *decimal.Decimal
	TargetProfit      *decimal.Decimal
	CreatedBy         string
}

// UpdateRiskParametersRequest carries a parameter update with its audit
// reason.
type UpdateRiskParametersRequest struct {
	ExpectedRiskLevel *string
	MaxAllowedLoss    *decimal.Decimal
	TargetProfit      *decimal.Decimal
	Reason            string
	UpdatedBy         string
}

// Service manages the trade group lifecycle. All mutations against a closed
// group fail with a conflict; contract membership is guarded by the
// compare-and-set index so a contract belongs to at most one open group.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*TradeGroup, error)
	Get(ctx context.Context, id uuid.UUID) (*TradeGroup, error)
	List(ctx context.Context) ([]TradeGroup, error)
	OpenGroups(ctx context.Context) ([]TradeGroup, error)
	// GroupOf reports the open group holding a contract, if any.
	GroupOf(contractID uuid.UUID) (uuid.UUID, bool)
	// Membership returns a read-only contract -> open group snapshot.
	Membership() map[uuid.UUID]uuid.UUID

	AssignContract(ctx context.Context, groupID, contractID uuid.UUID, kind contracts.Kind, assignedBy string) error
	AssignPaperContract(ctx context.Context, groupID, paperContractID uuid.UUID, notes *string, assignedBy string) error
	RemovePaperContract(ctx context.Context, paperContractID uuid.UUID, reason *string, removedBy string) error
	UpdateRiskParameters(ctx context.Context, groupID uuid.UUID, req UpdateRiskParametersRequest) error
	Close(ctx context.Context, groupID uuid.UUID, closedBy string) error
}

type service struct {
	logger    *zap.Logger
	repo      Repository
	contracts contracts.Repository
	index     *membershipIndex
}

// NewService creates the trade group service and seeds the membership index
// from persisted open groups.
func NewService(ctx context.Context, logger *zap.Logger, repo Repository, contractRepo contracts.Repository) (Service, error) {
	index := newMembershipIndex()
	members, err := repo.OpenMemberships(ctx)
	if err != nil {
		return nil, err
	}
	index.load(members)
	return &service{logger: logger, repo: repo, contracts: contractRepo, index: index}, nil
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*TradeGroup, error) {
	if req.Name == "" {
		metrics.TradeGroupMutations.WithLabelValues("create", "rejected").Inc()
		return nil, apperrors.NewValidation("trade group name is required")
	}
	if !req.StrategyType.Valid() {
		metrics.TradeGroupMutations.WithLabelValues("create", "rejected").Inc()
		return nil, apperrors.NewValidation("unknown strategy type %q", req.StrategyType)
	}

	group := &TradeGroup{
		ID:                uuid.New(),
		Name:              req.Name,
		StrategyType:      req.StrategyType,
		ExpectedRiskLevel: req.ExpectedRiskLevel,
		MaxAllowedLoss:    req.MaxAllowedLoss,
		TargetProfit:      req.TargetProfit,
		Status:            StatusOpen,
		CreatedBy:         req.CreatedBy,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, group); err != nil {
		metrics.TradeGroupMutations.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	metrics.TradeGroupMutations.WithLabelValues("create", "ok").Inc()
	s.logger.Info("trade group created",
		zap.String("group_id", group.ID.String()),
		zap.String("strategy", string(group.StrategyType)))
	return group, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*TradeGroup, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context) ([]TradeGroup, error) {
	return s.repo.List(ctx)
}

func (s *service) OpenGroups(ctx context.Context) ([]TradeGroup, error) {
	return s.repo.ListOpen(ctx)
}

func (s *service) GroupOf(contractID uuid.UUID) (uuid.UUID, bool) {
	return s.index.groupOf(contractID)
}

func (s *service) Membership() map[uuid.UUID]uuid.UUID {
	return s.index.snapshot()
}

func (s *service) AssignContract(ctx context.Context, groupID, contractID uuid.UUID, kind contracts.Kind, assignedBy string) error {
	return s.assign(ctx, groupID, contractID, kind, nil, assignedBy)
}

func (s *service) AssignPaperContract(ctx context.Context, groupID, paperContractID uuid.UUID, notes *string, assignedBy string) error {
	return s.assign(ctx, groupID, paperContractID, contracts.KindPaper, notes, assignedBy)
}

func (s *service) assign(ctx context.Context, groupID, contractID uuid.UUID, kind contracts.Kind, notes *string, assignedBy string) error {
	if !kind.Valid() {
		metrics.TradeGroupMutations.WithLabelValues("assign", "rejected").Inc()
		return apperrors.NewValidation("unknown contract kind %q", kind)
	}

	group, err := s.repo.Get(ctx, groupID)
	if err != nil {
		metrics.TradeGroupMutations.WithLabelValues("assign", "rejected").Inc()
		return err
	}
	if !group.Open() {
		metrics.TradeGroupMutations.WithLabelValues("assign", "rejected").Inc()
		return apperrors.NewConflict("trade group %s is closed", groupID)
	}

	exists, err := s.contracts.Exists(ctx, contractID, kind)
	if err != nil {
		metrics.TradeGroupMutations.WithLabelValues("assign", "error").Inc()
		return err
	}
	if !exists {
		metrics.TradeGroupMutations.WithLabelValues("assign", "rejected").Inc()
		return apperrors.NewNotFound("%s contract %s not found", kind, contractID)
	}

	// CAS on the index is the serialization point; exactly one of two
	// concurrent assignments wins.
	if err := s.index.assign(contractID, groupID); err != nil {
		metrics.TradeGroupMutations.WithLabelValues("assign", "rejected").Inc()
		return err
	}

	member := &Member{
		GroupID:      groupID,
		ContractID:   contractID,
		ContractKind: kind,
		Notes:        notes,
		AssignedBy:   assignedBy,
		AssignedAt:   time.Now().UTC(),
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		// Roll the index back so the contract is assignable again.
		s.index.remove(contractID)
		metrics.TradeGroupMutations.WithLabelValues("assign", "error").Inc()
		return err
	}
	metrics.TradeGroupMutations.WithLabelValues("assign", "ok").Inc()
	s.logger.Info("contract assigned to trade group",
		zap.String("group_id", groupID.String()),
		zap.String("contract_id", contractID.String()),
		zap.String("kind", string(kind)))
	return nil
}

func (s *service) RemovePaperContract(ctx context.Context, paperContractID uuid.UUID, reason *string, removedBy string) error {
	groupID, ok := s.index.groupOf(paperContractID)
	if !ok {
		metrics.TradeGroupMutations.WithLabelValues("remove", "rejected").Inc()
		return apperrors.NewNotFound("paper contract %s is not a member of any open trade group", paperContractID)
	}
	member, err := s.repo.GetMember(ctx, groupID, paperContractID)
	if err != nil {
		metrics.TradeGroupMutations.WithLabelValues("remove", "error").Inc()
		return err
	}
	if member.ContractKind != contracts.KindPaper {
		metrics.TradeGroupMutations.WithLabelValues("remove", "rejected").Inc()
		return apperrors.NewValidation("contract %s is a %s member, not a paper contract", paperContractID, member.ContractKind)
	}
	if err := s.repo.RemoveMember(ctx, groupID, paperContractID); err != nil {
		metrics.TradeGroupMutations.WithLabelValues("remove", "error").Inc()
		return err
	}
	s.index.remove(paperContractID)
	metrics.TradeGroupMutations.WithLabelValues("remove", "ok").Inc()

	fields := []zap.Field{
		zap.String("group_id", groupID.String()),
		zap.String("contract_id", paperContractID.String()),
		zap.String("removed_by", removedBy),
	}
	if reason != nil {
		fields = append(fields, zap.String("reason", *reason))
	}
	s.logger.Info("paper contract removed from trade group", fields...)
	return nil
}

func (s *service) UpdateRiskParameters(ctx context.Context, groupID uuid.UUID, req UpdateRiskParametersRequest) error {
	if req.Reason == "" {
		metrics.TradeGroupMutations.WithLabelValues("update_params", "rejected").Inc()
		return apperrors.NewValidation("update reason is required")
	}
	group, err := s.repo.Get(ctx, groupID)
	if err != nil {
		metrics.TradeGroupMutations.WithLabelValues("update_params", "rejected").Inc()
		return err
	}
	if !group.Open() {
		metrics.TradeGroupMutations.WithLabelValues("update_params", "rejected").Inc()
		return apperrors.NewConflict("trade group %s is closed", groupID)
	}

	if req.ExpectedRiskLevel != nil {
		group.ExpectedRiskLevel = req.ExpectedRiskLevel
	}
	if req.MaxAllowedLoss != nil {
		group.MaxAllowedLoss = req.MaxAllowedLoss
	}
	if req.TargetProfit != nil {
		group.TargetProfit = req.TargetProfit
	}
	now := time.Now().UTC()
	group.LastUpdatedBy = &req.UpdatedBy
	group.LastUpdatedAt = &now
	group.LastUpdateReason = &req.Reason

	if err := s.repo.Update(ctx, group); err != nil {
		metrics.TradeGroupMutations.WithLabelValues("update_params", "error").Inc()
		return err
	}
	metrics.TradeGroupMutations.WithLabelValues("update_params", "ok").Inc()
	s.logger.Info("trade group risk parameters updated",
		zap.String("group_id", groupID.String()),
		zap.String("reason", req.Reason))
	return nil
}

func (s *service) Close(ctx context.Context, groupID uuid.UUID, closedBy string) error {
	group, err := s.repo.Get(ctx, groupID)
	if err != nil {
		metrics.TradeGroupMutations.WithLabelValues("close", "rejected").Inc()
		return err
	}
	if !group.Open() {
		metrics.TradeGroupMutations.WithLabelValues("close", "rejected").Inc()
		return apperrors.NewConflict("trade group %s is already closed", groupID)
	}

	now := time.Now().UTC()
	group.Status = StatusClosed
	group.ClosedBy = &closedBy
	group.ClosedAt = &now
	if err := s.repo.Update(ctx, group); err != nil {
		metrics.TradeGroupMutations.WithLabelValues("close", "error").Inc()
		return err
	}
	// Members of a closed group no longer block reassignment elsewhere.
	s.index.releaseGroup(groupID)
	metrics.TradeGroupMutations.WithLabelValues("close", "ok").Inc()
	s.logger.Info("trade group closed",
		zap.String("group_id", groupID.String()),
		zap.String("closed_by", closedBy))
	return nil
}
