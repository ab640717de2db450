package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/risk"
)

func (s *Server) handleCalculateRisk(c *gin.Context) {
	asOf, err := s.dateQuery(c, "calculationDate")
	if err != nil {
		s.writeError(c, err)
		return
	}
	days, err := intQuery(c, "historicalDays", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}
	includeStress, err := boolQuery(c, "includeStressTests", false)
	if err != nil {
		s.writeError(c, err)
		return
	}

	calc, err := s.riskSvc.Calculate(c.Request.Context(), risk.CalculationRequest{
		AsOf:               asOf,
		HistoricalDays:     days,
		IncludeStressTests: includeStress,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, calc)
}

func (s *Server) handlePortfolioSummary(c *gin.Context) {
	asOf, err := s.dateQuery(c, "asOfDate")
	if err != nil {
		s.writeError(c, err)
		return
	}
	summary, err := s.riskSvc.PortfolioSummary(c.Request.Context(), asOf)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleProductRisk(c *gin.Context) {
	asOf, err := s.dateQuery(c, "asOfDate")
	if err != nil {
		s.writeError(c, err)
		return
	}
	product, err := s.riskSvc.ProductRisk(c.Request.Context(), c.Param("productType"), asOf)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) handleBacktest(c *gin.Context) {
	end, err := s.dateQuery(c, "endDate")
	if err != nil {
		s.writeError(c, err)
		return
	}
	start := end.AddDate(0, 0, -365)
	if raw := c.Query("startDate"); raw != "" {
		start, err = time.Parse("2006-01-02", raw)
		if err != nil {
			s.writeError(c, apperrors.NewValidation("invalid startDate %q, expected YYYY-MM-DD", raw))
			return
		}
	}
	if !start.Before(end) {
		s.writeError(c, apperrors.NewValidation("startDate must precede endDate"))
		return
	}
	lookback, err := intQuery(c, "lookbackDays", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}

	report, err := s.riskSvc.Backtest(c.Request.Context(), start, end, lookback)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handlePortfolioWithGroups(c *gin.Context) {
	asOf, err := s.dateQuery(c, "asOfDate")
	if err != nil {
		s.writeError(c, err)
		return
	}
	days, err := intQuery(c, "historicalDays", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}
	includeStress, err := boolQuery(c, "includeStressTests", false)
	if err != nil {
		s.writeError(c, err)
		return
	}

	// A default-parameter request matches what the nightly job computed, so
	// it can be served straight from the snapshot cache.
	cacheable := days == 0 && !includeStress
	if cacheable {
		cached, err := s.snapshots.Load(c.Request.Context(), asOf)
		if err != nil {
			s.logger.Warn("snapshot cache read failed", zap.Time("as_of", asOf), zap.Error(err))
		} else if cached != nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	portfolio, err := s.riskSvc.PortfolioWithGroups(c.Request.Context(), risk.CalculationRequest{
		AsOf:               asOf,
		HistoricalDays:     days,
		IncludeStressTests: includeStress,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

func (s *Server) handleCompareMethods(c *gin.Context) {
	asOf, err := s.dateQuery(c, "asOfDate")
	if err != nil {
		s.writeError(c, err)
		return
	}
	comparison, err := s.riskSvc.CompareMethods(c.Request.Context(), asOf)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewValidation("invalid %s %q, expected a non-negative integer", name, raw)
	}
	return v, nil
}

func boolQuery(c *gin.Context, name string, def bool) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.NewValidation("invalid %s %q, expected true or false", name, raw)
	}
	return v, nil
}
