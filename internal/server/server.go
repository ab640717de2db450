package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/cache"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/risk"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/tradegroups"
)

// Server is the HTTP front of the risk engine and trade group services.
type Server struct {
	logger    *zap.Logger
	riskSvc   risk.Service
	groupsSvc tradegroups.Service
	snapshots *cache.SnapshotCache
	now       func() time.Time
}

// NewServer creates the HTTP server. snapshots may be nil (cache disabled).
// now supplies the current-date default for endpoints that accept an
// optional as-of date.
func NewServer(logger *zap.Logger, riskSvc risk.Service, groupsSvc tradegroups.Service, snapshots *cache.SnapshotCache, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	return &Server{logger: logger, riskSvc: riskSvc, groupsSvc: groupsSvc, snapshots: snapshots, now: now}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(cors.Default())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		riskGroup := api.Group("/risk")
		{
			riskGroup.GET("/calculate", s.handleCalculateRisk)
			riskGroup.GET("/portfolio-summary", s.handlePortfolioSummary)
			riskGroup.GET("/product/:productType", s.handleProductRisk)
			riskGroup.GET("/backtest", s.handleBacktest)
			riskGroup.GET("/portfolio-with-groups", s.handlePortfolioWithGroups)
			riskGroup.GET("/compare-methods", s.handleCompareMethods)
		}

		groups := api.Group("/trade-groups")
		{
			groups.POST("", s.handleCreateTradeGroup)
			groups.GET("", s.handleListTradeGroups)
			groups.GET("/portfolio-risk", s.handleGroupPortfolioRisk)
			groups.DELETE("/paper-contracts/:id", s.handleRemovePaperContract)
			groups.GET("/:id", s.handleGetTradeGroup)
			groups.GET("/:id/risk", s.handleGroupRisk)
			groups.POST("/:id/contracts", s.handleAssignContract)
			groups.POST("/:id/paper-contracts", s.handleAssignPaperContract)
			groups.PUT("/:id/risk-parameters", s.handleUpdateRiskParameters)
			groups.POST("/:id/close", s.handleCloseTradeGroup)
		}
	}

	return router
}

// writeError maps a domain error onto its HTTP status. Internal causes stay
// in the logs, not the response body.
func (s *Server) writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// actor identifies the caller for audit fields. Authentication lives in an
// upstream gateway; the identity arrives as a header.
func (s *Server) actor(c *gin.Context) string {
	if user := c.GetHeader("X-User"); user != "" {
		return user
	}
	return "system"
}

// dateQuery parses an optional YYYY-MM-DD query parameter, defaulting to the
// clock's current date.
func (s *Server) dateQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		now := s.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidation("invalid %s %q, expected YYYY-MM-DD", name, raw)
	}
	return t, nil
}
