package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/risk"
)

// SnapshotCache stores daily portfolio risk snapshots in redis so dashboards
// and the scheduler can read the latest result without recomputing. A nil
// cache is valid and turns every operation into a no-op.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates the snapshot cache. Returns nil when address is empty, which
// callers treat as cache-disabled.
func New(address, password string, db int, ttl time.Duration) *SnapshotCache {
	if address == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return &SnapshotCache{client: client, ttl: ttl}
}

func key(asOf time.Time) string {
	return fmt.Sprintf("oilrisk:portfolio:%s", asOf.Format("2006-01-02"))
}

// Store saves the portfolio snapshot for its as-of date.
func (c *SnapshotCache) Store(ctx context.Context, snapshot *risk.PortfolioRisk) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return c.client.Set(ctx, key(snapshot.AsOfDate), payload, c.ttl).Err()
}

// Load returns the snapshot for asOf, or (nil, nil) on a cache miss.
func (c *SnapshotCache) Load(ctx context.Context, asOf time.Time) (*risk.PortfolioRisk, error) {
	if c == nil {
		return nil, nil
	}
	payload, err := c.client.Get(ctx, key(asOf)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snapshot risk.PortfolioRisk
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// Close releases the redis connection.
func (c *SnapshotCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
