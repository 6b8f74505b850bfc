package paper

import (
	"encoding/json"
	"math"
)

// AccountStats 是从成交流水重放得到的账户统计。
type AccountStats struct {
	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"` // 无亏损且有盈利时为 +Inf
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"` // 取正值口径
	MaxDrawdown   float64 `json:"max_drawdown"` // 峰谷百分比
	TotalPnL      float64 `json:"total_pnl"`
	CurrentStreak int     `json:"current_streak"`
	BestStreak    int     `json:"best_streak"`
}

// ComputeStats 按时间顺序重放成交流水，计算胜率、盈亏比、最大回撤与连胜。
//
// 回撤基于 initialBalance 起步的资金曲线逐笔累加盈亏得到；profitFactor
// 在亏损合计为 0 且有盈利时定义为 +Inf。
func ComputeStats(initialBalance float64, trades []Trade) AccountStats {
	stats := AccountStats{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return stats
	}
	var sumWin, sumLoss float64
	equity := initialBalance
	peak := initialBalance
	streak := 0
	for _, t := range trades {
		stats.TotalPnL += t.RealizedPnL
		switch {
		case t.RealizedPnL > 0:
			stats.Wins++
			sumWin += t.RealizedPnL
			streak++
			if streak > stats.BestStreak {
				stats.BestStreak = streak
			}
		case t.RealizedPnL < 0:
			stats.Losses++
			sumLoss += -t.RealizedPnL
			streak = 0
		}
		equity += t.RealizedPnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak * 100
			if dd > stats.MaxDrawdown {
				stats.MaxDrawdown = dd
			}
		}
	}
	stats.CurrentStreak = streak
	stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
	switch {
	case sumLoss > 0:
		stats.ProfitFactor = sumWin / sumLoss
	case sumWin > 0:
		stats.ProfitFactor = math.Inf(1)
	}
	if stats.Wins > 0 {
		stats.AverageWin = sumWin / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AverageLoss = sumLoss / float64(stats.Losses)
	}
	return stats
}

// MarshalJSON 将非有限的 profit factor 序列化为 null，其余字段原样输出。
func (s AccountStats) MarshalJSON() ([]byte, error) {
	type alias AccountStats
	payload := struct {
		alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{alias: alias(s)}
	if !math.IsInf(s.ProfitFactor, 0) && !math.IsNaN(s.ProfitFactor) {
		pf := s.ProfitFactor
		payload.ProfitFactor = &pf
	}
	return json.Marshal(payload)
}
