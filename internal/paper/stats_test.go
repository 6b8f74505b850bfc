package paper

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tradesFromPnL(pnls ...float64) []Trade {
	out := make([]Trade, len(pnls))
	base := time.Now()
	for i, p := range pnls {
		out[i] = Trade{RealizedPnL: p, ClosedAt: base.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func TestComputeStatsBasics(t *testing.T) {
	stats := ComputeStats(25000, tradesFromPnL(100, -50, 75, 75, -25))

	assert.Equal(t, 5, stats.TotalTrades)
	assert.Equal(t, 3, stats.Wins)
	assert.Equal(t, 2, stats.Losses)
	assert.InDelta(t, 60, stats.WinRate, 1e-9)
	assert.InDelta(t, 250.0/75.0, stats.ProfitFactor, 1e-9)
	assert.InDelta(t, 250.0/3.0, stats.AverageWin, 1e-9)
	assert.InDelta(t, 37.5, stats.AverageLoss, 1e-9, "亏损均值取正值口径")
	assert.Equal(t, 2, stats.BestStreak)
	assert.Equal(t, 0, stats.CurrentStreak)
	assert.InDelta(t, 175, stats.TotalPnL, 1e-9)
}

func TestComputeStatsProfitFactorInfinity(t *testing.T) {
	stats := ComputeStats(10000, tradesFromPnL(50, 30))
	assert.True(t, math.IsInf(stats.ProfitFactor, 1))

	// JSON 里非有限值输出 null
	raw, err := json.Marshal(stats)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded["profit_factor"])
}

func TestComputeStatsMaxDrawdown(t *testing.T) {
	// 10000 → 11000 → 9900：峰值 11000 回撤到 9900 = 10%
	stats := ComputeStats(10000, tradesFromPnL(1000, -1100))
	assert.InDelta(t, 10, stats.MaxDrawdown, 1e-9)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(10000, nil)
	assert.Equal(t, 0, stats.TotalTrades)
	assert.Equal(t, 0.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.ProfitFactor)
}

func TestComputeStatsZeroPnLNeitherWinNorLoss(t *testing.T) {
	stats := ComputeStats(10000, tradesFromPnL(0, 100))
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 0, stats.Losses)
	assert.Equal(t, 2, stats.TotalTrades)
}
