package session

import (
	"testing"
	"time"

	"replaylab/internal/indicator"
	"replaylab/internal/market"
	"replaylab/internal/paper"
	"replaylab/internal/replay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScenario(t *testing.T) *market.Scenario {
	t.Helper()
	base := int64(1_716_552_000_000)
	closes := []float64{100, 101, 102, 101, 103, 104, 105, 103, 106, 107}
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Timestamp: base + int64(i)*60_000,
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return &market.Scenario{
		ID:     "test",
		Symbol: "DEMO",
		Bars:   bars,
		DecisionPoint: market.DecisionPoint{
			Index:         6,
			CorrectAction: market.ActionLong,
		},
		ChartTimeframe: "1m",
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(Options{
		Scenario:       testScenario(t),
		InitialBalance: 25000,
		StartIndex:     0,
		Speed:          1,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSessionRejectsStartBeyondDecision(t *testing.T) {
	_, err := New(Options{
		Scenario:       testScenario(t),
		InitialBalance: 25000,
		StartIndex:     8,
	})
	assert.Error(t, err)
}

func TestSessionDecisionFlow(t *testing.T) {
	s := newTestSession(t)

	// 未到决策点不允许提交
	_, err := s.SubmitDecision("long")
	assert.ErrorIs(t, err, ErrDecisionNotPending)

	for i := 0; i < 6; i++ {
		require.NoError(t, s.Controller().StepForward())
	}
	require.Equal(t, replay.StateDecisionPending, s.Controller().State())

	res, err := s.SubmitDecision("long")
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, replay.StateResolved, s.Controller().State())

	stored, ok := s.Evaluation()
	require.True(t, ok)
	assert.Equal(t, res, stored)

	// 提交后回放解除封锁，可走到结尾
	for s.Controller().State() != replay.StateComplete {
		require.NoError(t, s.Controller().StepForward())
	}
}

func TestSessionRevealWithoutDecision(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 6; i++ {
		require.NoError(t, s.Controller().StepForward())
	}
	action, err := s.RevealAnswer()
	require.NoError(t, err)
	assert.Equal(t, market.ActionLong, action)

	_, ok := s.Evaluation()
	assert.False(t, ok, "揭示答案不等于提交决策")
}

func TestSessionMarksPricesOnAdvance(t *testing.T) {
	s := newTestSession(t)
	_, err := s.OpenPosition(paper.OrderRequest{
		Side: paper.SideLong, Quantity: 10, Price: 100,
	})
	require.NoError(t, err)

	require.NoError(t, s.Controller().StepForward()) // close=101
	pos := s.Account().OpenPositions()[0]
	assert.InDelta(t, 10, pos.UnrealizedPnL, 1e-9)
}

func TestSessionAutoExitOnStop(t *testing.T) {
	s := newTestSession(t)
	_, err := s.OpenPosition(paper.OrderRequest{
		Side: paper.SideLong, Quantity: 10, Price: 100, StopLoss: 101,
	})
	require.NoError(t, err)

	// 下一根 close=101 触发止损
	require.NoError(t, s.Controller().StepForward())
	assert.Empty(t, s.Account().OpenPositions())
	trades := s.Account().Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, string(paper.ExitStopLoss), trades[0].ExitReason)
}

func TestSessionStepBackDoesNotTriggerExits(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Controller().StepForward()) // close=101
	require.NoError(t, s.Controller().StepForward()) // close=102

	_, err := s.OpenPosition(paper.OrderRequest{
		Side: paper.SideLong, Quantity: 10, Price: 102, StopLoss: 101.5,
	})
	require.NoError(t, err)

	// 回退露出更早的 close=101，不得拿它套在 102 开的仓位上触发止损
	require.NoError(t, s.Controller().StepBack())
	assert.Empty(t, s.Account().Trades())
	require.Len(t, s.Account().OpenPositions(), 1)
	assert.InDelta(t, 0, s.Account().OpenPositions()[0].UnrealizedPnL, 1e-9)

	// 重走旧区间也不盯市，继续前进到新索引才恢复
	require.NoError(t, s.Controller().StepForward()) // 回到 close=102
	assert.Empty(t, s.Account().Trades())
	require.NoError(t, s.Controller().StepForward()) // close=101，首次越过水位线
	trades := s.Account().Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, string(paper.ExitStopLoss), trades[0].ExitReason)
	assert.InDelta(t, -10, trades[0].RealizedPnL, 1e-9)
	assert.Equal(t, int64(60_000), trades[0].HoldingTimeMs)
}

func TestSessionSubscriberCallbacks(t *testing.T) {
	var indices []int
	var seriesLens []int
	s, err := New(Options{
		Scenario:       testScenario(t),
		InitialBalance: 25000,
		StartIndex:     0,
		Speed:          1,
		OnBarsChanged:  func(index int) { indices = append(indices, index) },
		OnIndicatorsChanged: func(series indicator.Series) {
			seriesLens = append(seriesLens, len(series.EMAFast))
		},
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Controller().StepForward())
	require.NoError(t, s.Controller().StepForward())
	require.NoError(t, s.Controller().StepBack())

	// 前进与回退都要通知订阅方
	assert.Equal(t, []int{1, 2, 1}, indices)
	assert.Equal(t, []int{2, 3, 2}, seriesLens)
}

func TestSessionVisibleBarsGrowWithReplay(t *testing.T) {
	s := newTestSession(t)
	assert.Len(t, s.VisibleBars(), 1)
	require.NoError(t, s.Controller().StepForward())
	assert.Len(t, s.VisibleBars(), 2)

	series := s.Indicators()
	assert.Len(t, series.EMAFast, 2)
	assert.Len(t, series.VWAP, 2)
}

func TestSessionClosePositionUsesVisibleClose(t *testing.T) {
	s := newTestSession(t)
	pos, err := s.OpenPosition(paper.OrderRequest{
		Side: paper.SideLong, Quantity: 10, Price: 100,
	})
	require.NoError(t, err)
	require.NoError(t, s.Controller().StepForward()) // close=101

	trade, err := s.ClosePosition(pos.ID)
	require.NoError(t, err)
	assert.InDelta(t, 101, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 10, trade.RealizedPnL, 1e-9)
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	s := newTestSession(t)
	m.Add(s)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, []string{s.ID()}, m.IDs())

	require.NoError(t, m.Remove(s.ID()))
	_, err = m.Get(s.ID())
	assert.Error(t, err)
	assert.Error(t, m.Remove(s.ID()))
}

func TestSessionOpenDefaultsToBarTime(t *testing.T) {
	s := newTestSession(t)
	pos, err := s.OpenPosition(paper.OrderRequest{Side: paper.SideLong, Quantity: 1, Price: 100})
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(s.Scenario().Bars[0].Timestamp), pos.OpenedAt)
}
