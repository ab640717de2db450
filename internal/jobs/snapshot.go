package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/cache"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/risk"
)

// SnapshotScheduler runs the end-of-day portfolio risk snapshot on a cron
// schedule and writes the result to the cache.
type SnapshotScheduler struct {
	logger *zap.Logger
	svc    risk.Service
	cache  *cache.SnapshotCache
	cron   *cron.Cron
}

// NewSnapshotScheduler creates the scheduler; Start arms it.
func NewSnapshotScheduler(logger *zap.Logger, svc risk.Service, snapshots *cache.SnapshotCache) *SnapshotScheduler {
	return &SnapshotScheduler{
		logger: logger,
		svc:    svc,
		cache:  snapshots,
		cron:   cron.New(),
	}
}

// Start registers the snapshot job with the given cron spec and begins
// scheduling.
func (s *SnapshotScheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.runOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("risk snapshot job scheduled", zap.String("spec", spec))
	return nil
}

// Stop halts scheduling, waiting for a running job to finish.
func (s *SnapshotScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *SnapshotScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	snapshot, err := s.svc.PortfolioWithGroups(ctx, risk.CalculationRequest{
		AsOf:               asOf,
		IncludeStressTests: true,
	})
	if err != nil {
		s.logger.Error("scheduled risk snapshot failed", zap.Time("as_of", asOf), zap.Error(err))
		return
	}

	if err := s.cache.Store(ctx, snapshot); err != nil {
		s.logger.Error("storing risk snapshot failed", zap.Time("as_of", asOf), zap.Error(err))
		return
	}
	s.logger.Info("risk snapshot stored",
		zap.Time("as_of", asOf),
		zap.String("total_var95", snapshot.TotalVaR95.String()),
		zap.Int("trade_groups", snapshot.TradeGroupCount))
}
