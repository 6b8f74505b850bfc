package paper

import (
	"time"
)

// Side 是持仓方向。
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

func (s Side) direction() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Position 是一笔未平仓持仓。数量为整数股，创建后仅 UpdatePositionPrice 改写
// 行情相关字段，平仓时整体转为 Trade。
type Position struct {
	ID                   string    `json:"id"`
	Symbol               string    `json:"symbol"`
	Side                 Side      `json:"side"`
	Quantity             int64     `json:"quantity"`
	EntryPrice           float64   `json:"entry_price"`
	CurrentPrice         float64   `json:"current_price"`
	StopLoss             float64   `json:"stop_loss,omitempty"`
	TakeProfit           float64   `json:"take_profit,omitempty"`
	OpenedAt             time.Time `json:"opened_at"`
	UnrealizedPnL        float64   `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64   `json:"unrealized_pnl_percent"`
}

// Notional 返回开仓名义价值 entry*qty。
func (p *Position) Notional() float64 {
	return p.EntryPrice * float64(p.Quantity)
}

// UpdatePositionPrice 按最新价刷新浮动盈亏（多头 +1 / 空头 -1）。
func UpdatePositionPrice(p *Position, price float64) {
	p.CurrentPrice = price
	p.UnrealizedPnL = (price - p.EntryPrice) * float64(p.Quantity) * p.Side.direction()
	if notional := p.Notional(); notional > 0 {
		p.UnrealizedPnLPercent = p.UnrealizedPnL / notional * 100
	} else {
		p.UnrealizedPnLPercent = 0
	}
}

// Trade 是一笔已平仓记录，追加后不可变。
type Trade struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id,omitempty"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price"`
	Quantity      int64     `json:"quantity"`
	RealizedPnL   float64   `json:"realized_pnl"`
	HoldingTimeMs int64     `json:"holding_time_ms"`
	ExitReason    string    `json:"exit_reason,omitempty"`
	ClosedAt      time.Time `json:"closed_at"`
}
