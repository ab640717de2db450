package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/contracts"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/risk"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/tradegroups"
)

type createTradeGroupRequest struct {
	Name              string           `json:"name" binding:"required"`
	StrategyType      string           `json:"strategyType" binding:"required"`
	ExpectedRiskLevel *string          `json:"expectedRiskLevel"`
	MaxAllowedLoss    *decimal.Decimal `json:"maxAllowedLoss"`
	TargetProfit      *decimal.Decimal `json:"targetProfit"`
}

type assignContractRequest struct {
	ContractID   string  `json:"contractId" binding:"required"`
	ContractKind string  `json:"contractKind" binding:"required"`
	Notes        *string `json:"notes"`
}

type assignPaperContractRequest struct {
	PaperContractID string  `json:"paperContractId" binding:"required"`
	Notes           *string `json:"notes"`
}

type removePaperContractRequest struct {
	Reason *string `json:"reason"`
}

type updateRiskParametersRequest struct {
	ExpectedRiskLevel *string          `json:"expectedRiskLevel"`
	MaxAllowedLoss    *decimal.Decimal `json:"maxAllowedLoss"`
	TargetProfit      *decimal.Decimal `json:"targetProfit"`
	Reason            string           `json:"reason" binding:"required"`
}

func (s *Server) handleCreateTradeGroup(c *gin.Context) {
	var req createTradeGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperrors.NewValidation("invalid request body: %v", err))
		return
	}

	group, err := s.groupsSvc.Create(c.Request.Context(), tradegroups.CreateRequest{
		Name:              req.Name,
		StrategyType:      tradegroups.StrategyType(req.StrategyType),
		ExpectedRiskLevel: req.ExpectedRiskLevel,
		MaxAllowedLoss:    req.MaxAllowedLoss,
		TargetProfit:      req.TargetProfit,
		CreatedBy:         s.actor(c),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (s *Server) handleListTradeGroups(c *gin.Context) {
	groups, err := s.groupsSvc.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (s *Server) handleGetTradeGroup(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	group, err := s.groupsSvc.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (s *Server) handleAssignContract(c *gin.Context) {
	groupID, err := pathUUID(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req assignContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperrors.NewValidation("invalid request body: %v", err))
		return
	}
	contractID, err := uuid.Parse(req.ContractID)
	if err != nil {
		s.writeError(c, apperrors.NewValidation("invalid contract id %q", req.ContractID))
		return
	}

	kind := contracts.Kind(req.ContractKind)
	if err := s.groupsSvc.AssignContract(c.Request.Context(), groupID, contractID, kind, s.actor(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groupId": groupID, "contractId": contractID})
}

func (s *Server) handleAssignPaperContract(c *gin.Context) {
	groupID, err := pathUUID(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req assignPaperContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperrors.NewValidation("invalid request body: %v", err))
		return
	}
	paperID, err := uuid.Parse(req.PaperContractID)
	if err != nil {
		s.writeError(c, apperrors.NewValidation("invalid paper contract id %q", req.PaperContractID))
		return
	}

	if err := s.groupsSvc.AssignPaperContract(c.Request.Context(), groupID, paperID, req.Notes, s.actor(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groupId": groupID, "paperContractId": paperID})
}

func (s *Server) handleRemovePaperContract(c *gin.Context) {
	paperID, err := pathUUID(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req removePaperContractRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, apperrors.NewValidation("invalid request body: %v", err))
			return
		}
	}

	if err := s.groupsSvc.RemovePaperContract(c.Request.Context(), paperID, req.Reason, s.actor(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpdateRiskParameters(c *gin.Context) {
	groupID, err := pathUUID(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req updateRiskParametersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperrors.NewValidation("invalid request body: %v", err))
		return
	}

	err = s.groupsSvc.UpdateRiskParameters(c.Request.Context(), groupID, tradegroups.UpdateRiskParametersRequest{
		ExpectedRiskLevel: req.ExpectedRiskLevel,
		MaxAllowedLoss:    req.MaxAllowedLoss,
		TargetProfit:      req.TargetProfit,
		Reason:            req.Reason,
		UpdatedBy:         s.actor(c),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	group, err := s.groupsSvc.Get(c.Request.Context(), groupID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (s *Server) handleCloseTradeGroup(c *gin.Context) {
	groupID, err := pathUUID(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.groupsSvc.Close(c.Request.Context(), groupID, s.actor(c)); err != nil {
		s.writeError(c, err)
		return
	}
	group, err := s.groupsSvc.Get(c.Request.Context(), groupID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (s *Server) handleGroupRisk(c *gin.Context) {
	groupID, err := pathUUID(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	asOf, err := s.dateQuery(c, "asOfDate")
	if err != nil {
		s.writeError(c, err)
		return
	}
	result, err := s.riskSvc.GroupRisk(c.Request.Context(), groupID, asOf)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGroupPortfolioRisk(c *gin.Context) {
	asOf, err := s.dateQuery(c, "asOfDate")
	if err != nil {
		s.writeError(c, err)
		return
	}
	includeStress, err := boolQuery(c, "includeStressTests", false)
	if err != nil {
		s.writeError(c, err)
		return
	}

	portfolio, err := s.riskSvc.PortfolioWithGroups(c.Request.Context(), risk.CalculationRequest{
		AsOf:               asOf,
		IncludeStressTests: includeStress,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NewValidation("invalid %s %q, expected a UUID", name, raw)
	}
	return id, nil
}
