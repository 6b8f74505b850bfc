package paper

import (
	"math"

	"github.com/shopspring/decimal"
)

// ExitReason 标记退出条件命中的原因。
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitManual     ExitReason = "manual"
)

// ExitCheck 是退出条件评估结果。
type ExitCheck struct {
	ShouldExit bool       `json:"should_exit"`
	Reason     ExitReason `json:"reason,omitempty"`
}

// CheckExitConditions 仅用收盘价评估止损/止盈（不建模 K 线内路径）。
//
// 多头：price <= stopLoss 触发止损，price >= takeProfit 触发止盈；空头镜像。
// 同一次更新两者同时命中时止损优先（先保本金），这是固定可测的平手规则。
// 纯函数，不修改持仓。
func CheckExitConditions(p Position, price float64) ExitCheck {
	if stopHit(p.Side, price, p.StopLoss) {
		return ExitCheck{ShouldExit: true, Reason: ExitStopLoss}
	}
	if targetHit(p.Side, price, p.TakeProfit) {
		return ExitCheck{ShouldExit: true, Reason: ExitTakeProfit}
	}
	return ExitCheck{}
}

func stopHit(side Side, price, stop float64) bool {
	if stop <= 0 || price <= 0 {
		return false
	}
	switch side {
	case SideShort:
		return decimalGTE(price, stop)
	default:
		return decimalLTE(price, stop)
	}
}

func targetHit(side Side, price, target float64) bool {
	if target <= 0 || price <= 0 {
		return false
	}
	switch side {
	case SideShort:
		return decimalLTE(price, target)
	default:
		return decimalGTE(price, target)
	}
}

// 价格比较走 decimal，规避浮点边界上的误触发。

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func decimalLTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }
func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }
