package indicator

import (
	"replaylab/internal/market"
)

// Settings 描述计算指标序列所需的最小配置。
type Settings struct {
	EMAFast int `json:"ema_fast"`
	EMASlow int `json:"ema_slow"`
}

func (s Settings) normalized() Settings {
	if s.EMAFast <= 0 {
		s.EMAFast = 9
	}
	if s.EMASlow <= 0 {
		s.EMASlow = 21
	}
	return s
}

// Series 是输出给渲染端的指标数组集合，所有数组与可见 K 线前缀 1:1 对齐。
type Series struct {
	EMAFast    []float64    `json:"ema_fast"`
	EMASlow    []float64    `json:"ema_slow"`
	VWAP       []float64    `json:"vwap"`
	VWAPUpper1 []float64    `json:"vwap_upper_1"`
	VWAPLower1 []float64    `json:"vwap_lower_1"`
	VWAPUpper2 []float64    `json:"vwap_upper_2"`
	VWAPLower2 []float64    `json:"vwap_lower_2"`
	Trend      []TrendState `json:"trend"`
}

// Compute 对给定前缀一次性计算全部指标序列。纯函数：相同输入恒返回相同输出。
func Compute(bars []market.Bar, cfg Settings) Series {
	cfg = cfg.normalized()
	closes := market.Closes(bars)
	ribbon := Ribbon(closes, cfg.EMAFast, cfg.EMASlow)
	bands := VWAP(bars)
	out := Series{
		EMAFast:    EMA(closes, cfg.EMAFast),
		EMASlow:    EMA(closes, cfg.EMASlow),
		VWAP:       bands.VWAP,
		VWAPUpper1: bands.Upper1,
		VWAPLower1: bands.Lower1,
		VWAPUpper2: bands.Upper2,
		VWAPLower2: bands.Lower2,
		Trend:      make([]TrendState, len(bars)),
	}
	for i, p := range ribbon {
		out.Trend[i] = p.State
	}
	return out
}
