package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/risk"
)

func TestNewWithoutAddressDisablesCache(t *testing.T) {
	cache := New("", "", 0, time.Hour)
	assert.Nil(t, cache)
}

func TestNilCacheIsNoOp(t *testing.T) {
	var cache *SnapshotCache

	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Store(context.Background(), &risk.PortfolioRisk{AsOfDate: asOf}))

	snapshot, err := cache.Load(context.Background(), asOf)
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	assert.NoError(t, cache.Close())
}
