package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRetentionDropsOldest(t *testing.T) {
	h := newHistory(3)
	base := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		h.addPnL(base.Add(time.Duration(i)*time.Second), decimal.NewFromInt(int64(i)))
	}

	require.Len(t, h.pnl, 3)
	assert.True(t, h.pnl[0].Value.Equal(decimal.NewFromInt(2)))
	assert.True(t, h.pnl[2].Value.Equal(decimal.NewFromInt(4)))
}

func TestHistoryOrderSeriesResequencesArrivals(t *testing.T) {
	h := newHistory(100)
	base := time.Unix(1700000000, 0)
	t1 := base.Add(1 * time.Second)
	t2 := base.Add(2 * time.Second)
	t3 := base.Add(3 * time.Second)

	// network reordering: t3 arrives first, then t1, then t2
	h.addOrderCreated(t3)
	h.addOrderCreated(t1)
	h.addOrderCreated(t2)

	require.Len(t, h.orders, 3)
	assert.Equal(t, t1, h.orders[0].Time)
	assert.Equal(t, t2, h.orders[1].Time)
	assert.Equal(t, t3, h.orders[2].Time)

	// counts are ranks in time order, so the series is non-decreasing
	for i, point := range h.orders {
		assert.True(t, point.Value.Equal(decimal.NewFromInt(int64(i+1))))
		if i > 0 {
			assert.False(t, point.Time.Before(h.orders[i-1].Time))
			assert.True(t, point.Value.GreaterThan(h.orders[i-1].Value))
		}
	}
}

func TestHistoryOrderSeriesBounded(t *testing.T) {
	h := newHistory(10)
	base := time.Unix(1700000000, 0)
	for i := 0; i < 25; i++ {
		h.addOrderCreated(base.Add(time.Duration(i) * time.Second))
	}

	require.Len(t, h.orders, 10)
	// oldest 15 timestamps were truncated
	assert.Equal(t, base.Add(15*time.Second), h.orders[0].Time)
}

func TestCopyPointsDoesNotAlias(t *testing.T) {
	h := newHistory(10)
	h.addVolume(time.Now(), decimal.NewFromInt(1))

	snapshot := copyPoints(h.volume)
	h.addVolume(time.Now(), decimal.NewFromInt(2))

	require.Len(t, snapshot, 1)
	assert.True(t, snapshot[0].Value.Equal(decimal.NewFromInt(1)))
}
