package paper

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInsufficientBuyingPower 表示名义价值超过可用购买力，订单被整体拒绝。
var ErrInsufficientBuyingPower = errors.New("insufficient buying power")

// AccountSnapshot 是对外暴露的资金三元组。
type AccountSnapshot struct {
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buying_power"`
}

// OrderRequest 描述一笔模拟开仓请求。数量为整数股，全部成交或全部拒绝。
type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	At         time.Time `json:"-"`
}

// Account 持有模拟账户的资金与持仓生命周期。无杠杆：购买力不超过现金余额。
//
// 记账口径：开仓同时从 balance 与 buyingPower 扣减名义价值，平仓时
// balance += 返还名义 + 已实现盈亏；持仓期间
// equity = balance + Σ(名义 + 浮动盈亏)，即始终等于初始资金加总盈亏。
type Account struct {
	mu sync.Mutex

	initialBalance float64
	balance        float64
	buyingPower    float64
	positions      []*Position
	trades         []Trade
}

// NewAccount 以初始资金创建账户。
func NewAccount(initialBalance float64) *Account {
	if initialBalance < 0 {
		initialBalance = 0
	}
	return &Account{
		initialBalance: initialBalance,
		balance:        initialBalance,
		buyingPower:    initialBalance,
	}
}

// InitialBalance 返回初始资金。
func (a *Account) InitialBalance() float64 {
	return a.initialBalance
}

// OpenPosition 开仓。名义价值超出购买力时返回 ErrInsufficientBuyingPower，
// 账户不发生任何变化（全有或全无）。
func (a *Account) OpenPosition(req OrderRequest) (Position, error) {
	if req.Quantity <= 0 {
		return Position{}, fmt.Errorf("quantity 必须 > 0")
	}
	if req.Price <= 0 {
		return Position{}, fmt.Errorf("price 必须 > 0")
	}
	if req.Side != SideLong && req.Side != SideShort {
		return Position{}, fmt.Errorf("side %q 非法", req.Side)
	}
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	notional := req.Price * float64(req.Quantity)

	a.mu.Lock()
	defer a.mu.Unlock()
	if notional > a.buyingPower {
		return Position{}, fmt.Errorf("%w: 需要 %.2f，可用 %.2f", ErrInsufficientBuyingPower, notional, a.buyingPower)
	}
	pos := &Position{
		ID:           uuid.NewString(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Quantity:     req.Quantity,
		EntryPrice:   req.Price,
		CurrentPrice: req.Price,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		OpenedAt:     at,
	}
	a.balance -= notional
	a.buyingPower -= notional
	a.positions = append(a.positions, pos)
	return *pos, nil
}

// MarkPrice 将所有未平仓持仓按最新收盘价刷新浮动盈亏。
// 同一持仓的价格更新必须按 K 线顺序进入，调用方（回放会话）负责保证。
func (a *Account) MarkPrice(price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.positions {
		UpdatePositionPrice(p, price)
	}
}

// EvaluateExits 对全部持仓评估止损/止盈并平掉命中的仓位，返回产生的成交记录。
func (a *Account) EvaluateExits(price float64, at time.Time) []Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	var closed []Trade
	remaining := a.positions[:0]
	for _, p := range a.positions {
		check := CheckExitConditions(*p, price)
		if !check.ShouldExit {
			remaining = append(remaining, p)
			continue
		}
		closed = append(closed, a.closeLocked(p, price, check.Reason, at))
	}
	a.positions = remaining
	return closed
}

// ClosePosition 以给定价格平掉指定持仓：结算盈亏、返还名义价值、追加成交记录。
func (a *Account) ClosePosition(id string, exitPrice float64, reason ExitReason, at time.Time) (Trade, error) {
	if exitPrice <= 0 {
		return Trade{}, fmt.Errorf("exit price 必须 > 0")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, p := range a.positions {
		if p.ID != id {
			continue
		}
		a.positions = append(a.positions[:i], a.positions[i+1:]...)
		return a.closeLocked(p, exitPrice, reason, at), nil
	}
	return Trade{}, fmt.Errorf("position %s 不存在", id)
}

func (a *Account) closeLocked(p *Position, exitPrice float64, reason ExitReason, at time.Time) Trade {
	if at.IsZero() {
		at = time.Now()
	}
	if reason == "" {
		reason = ExitManual
	}
	notional := p.Notional()
	realized := (exitPrice - p.EntryPrice) * float64(p.Quantity) * p.Side.direction()
	a.balance += notional + realized
	a.buyingPower += notional + realized
	trade := Trade{
		ID:            uuid.NewString(),
		Symbol:        p.Symbol,
		Side:          p.Side,
		EntryPrice:    p.EntryPrice,
		ExitPrice:     exitPrice,
		Quantity:      p.Quantity,
		RealizedPnL:   realized,
		HoldingTimeMs: at.Sub(p.OpenedAt).Milliseconds(),
		ExitReason:    string(reason),
		ClosedAt:      at,
	}
	a.trades = append(a.trades, trade)
	return trade
}

// Snapshot 返回资金快照，equity 为现金加上全部持仓的市值（名义 + 浮动盈亏）。
func (a *Account) Snapshot() AccountSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	equity := a.balance
	for _, p := range a.positions {
		equity += p.Notional() + p.UnrealizedPnL
	}
	return AccountSnapshot{
		Balance:     a.balance,
		Equity:      equity,
		BuyingPower: a.buyingPower,
	}
}

// OpenPositions 返回未平仓持仓的拷贝。
func (a *Account) OpenPositions() []Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Position, 0, len(a.positions))
	for _, p := range a.positions {
		out = append(out, *p)
	}
	return out
}

// Trades 返回已平仓记录（追加顺序）。
func (a *Account) Trades() []Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Trade, len(a.trades))
	copy(out, a.trades)
	return out
}

// Stats 按需从成交流水重算统计，不做冗余存储。
func (a *Account) Stats() AccountStats {
	a.mu.Lock()
	trades := make([]Trade, len(a.trades))
	copy(trades, a.trades)
	initial := a.initialBalance
	a.mu.Unlock()
	return ComputeStats(initial, trades)
}
