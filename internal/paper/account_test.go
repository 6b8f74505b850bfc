package paper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPositionRejectsInsufficientBuyingPower(t *testing.T) {
	acc := NewAccount(1000)
	_, err := acc.OpenPosition(OrderRequest{
		Symbol: "DEMO", Side: SideLong, Quantity: 100, Price: 50,
	})
	require.ErrorIs(t, err, ErrInsufficientBuyingPower)

	// 拒绝后账户不发生任何变化
	snap := acc.Snapshot()
	assert.Equal(t, 1000.0, snap.Balance)
	assert.Equal(t, 1000.0, snap.Equity)
	assert.Equal(t, 1000.0, snap.BuyingPower)
	assert.Empty(t, acc.OpenPositions())
}

func TestUnrealizedPnLLongAndShort(t *testing.T) {
	acc := NewAccount(25000)
	_, err := acc.OpenPosition(OrderRequest{Symbol: "DEMO", Side: SideLong, Quantity: 100, Price: 50})
	require.NoError(t, err)

	acc.MarkPrice(55)
	pos := acc.OpenPositions()[0]
	assert.InDelta(t, 500, pos.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 10, pos.UnrealizedPnLPercent, 1e-9)

	// 空头镜像
	acc2 := NewAccount(25000)
	_, err = acc2.OpenPosition(OrderRequest{Symbol: "DEMO", Side: SideShort, Quantity: 100, Price: 50})
	require.NoError(t, err)
	acc2.MarkPrice(55)
	pos = acc2.OpenPositions()[0]
	assert.InDelta(t, -500, pos.UnrealizedPnL, 1e-9)
}

func TestCloseRestoresBalanceConsistency(t *testing.T) {
	acc := NewAccount(25000)
	pos, err := acc.OpenPosition(OrderRequest{Symbol: "DEMO", Side: SideLong, Quantity: 100, Price: 50})
	require.NoError(t, err)

	before := acc.Snapshot()
	assert.InDelta(t, 20000, before.Balance, 1e-9)

	trade, err := acc.ClosePosition(pos.ID, 55, ExitManual, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 500, trade.RealizedPnL, 1e-9)

	after := acc.Snapshot()
	// balance_after == balance_before + 返还名义 + 已实现盈亏
	assert.InDelta(t, before.Balance+5000+500, after.Balance, 1e-9)
	assert.InDelta(t, after.Balance, after.Equity, 1e-9, "无持仓时 equity == balance")
}

func TestEquityIncludesOpenPositions(t *testing.T) {
	acc := NewAccount(25000)
	_, err := acc.OpenPosition(OrderRequest{Symbol: "DEMO", Side: SideLong, Quantity: 100, Price: 50})
	require.NoError(t, err)
	acc.MarkPrice(52)
	snap := acc.Snapshot()
	// equity = 初始资金 + 总浮动盈亏
	assert.InDelta(t, 25200, snap.Equity, 1e-9)
}

func TestEvaluateExitsStopPriority(t *testing.T) {
	acc := NewAccount(25000)
	_, err := acc.OpenPosition(OrderRequest{
		Symbol: "DEMO", Side: SideLong, Quantity: 10, Price: 100,
		StopLoss: 95, TakeProfit: 95, // 同价同时命中
	})
	require.NoError(t, err)

	trades := acc.EvaluateExits(95, time.Now())
	require.Len(t, trades, 1)
	assert.Equal(t, string(ExitStopLoss), trades[0].ExitReason, "平手时止损优先")
	assert.Empty(t, acc.OpenPositions())
}

func TestEvaluateExitsLeavesUntouchedPositions(t *testing.T) {
	acc := NewAccount(25000)
	_, err := acc.OpenPosition(OrderRequest{
		Symbol: "DEMO", Side: SideLong, Quantity: 10, Price: 100, StopLoss: 90,
	})
	require.NoError(t, err)
	_, err = acc.OpenPosition(OrderRequest{
		Symbol: "DEMO", Side: SideLong, Quantity: 10, Price: 100, StopLoss: 98,
	})
	require.NoError(t, err)

	trades := acc.EvaluateExits(97, time.Now())
	require.Len(t, trades, 1)
	assert.Len(t, acc.OpenPositions(), 1)
}

func TestCloseUnknownPosition(t *testing.T) {
	acc := NewAccount(1000)
	_, err := acc.ClosePosition("missing", 10, ExitManual, time.Now())
	assert.Error(t, err)
}

func TestCheckExitConditionsClosePriceOnly(t *testing.T) {
	pos := Position{Side: SideLong, StopLoss: 95, TakeProfit: 110}
	assert.False(t, CheckExitConditions(pos, 100).ShouldExit)
	assert.Equal(t, ExitStopLoss, CheckExitConditions(pos, 95).Reason)
	assert.Equal(t, ExitTakeProfit, CheckExitConditions(pos, 110).Reason)

	short := Position{Side: SideShort, StopLoss: 105, TakeProfit: 90}
	assert.Equal(t, ExitStopLoss, CheckExitConditions(short, 105).Reason)
	assert.Equal(t, ExitTakeProfit, CheckExitConditions(short, 90).Reason)

	// 未设置的条件永不触发
	bare := Position{Side: SideLong}
	assert.False(t, CheckExitConditions(bare, 0.0001).ShouldExit)
}
