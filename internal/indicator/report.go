package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"replaylab/internal/market"
)

// ReportValue 保存单个辅助指标的最新值与状态标签。
type ReportValue struct {
	Latest float64 `json:"latest"`
	State  string  `json:"state,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// ContextReport 是决策点附近展示的辅助指标读数（RSI/MACD/ATR），
// 只作为场景上下文信息，不参与回放核心的任何判定。
type ContextReport struct {
	Symbol string                 `json:"symbol"`
	Count  int                    `json:"count"`
	Values map[string]ReportValue `json:"values"`
}

// ComputeContextReport 用 talib 计算辅助指标并返回结构化报告。
func ComputeContextReport(symbol string, bars []market.Bar) (ContextReport, error) {
	rep := ContextReport{
		Symbol: symbol,
		Count:  len(bars),
		Values: make(map[string]ReportValue),
	}
	if len(bars) == 0 {
		return rep, fmt.Errorf("no bars")
	}
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	// RSI
	rsi := lastValid(talib.Rsi(closes, 14))
	state := "neutral"
	switch {
	case rsi >= 70:
		state = "overbought"
	case rsi > 0 && rsi <= 30:
		state = "oversold"
	}
	rep.Values["rsi"] = ReportValue{Latest: rsi, State: state, Note: "period=14"}

	// MACD
	_, signal, hist := talib.Macd(closes, 12, 26, 9)
	histVal := lastValid(hist)
	macdState := "flat"
	switch {
	case histVal > 0:
		macdState = "bullish"
	case histVal < 0:
		macdState = "bearish"
	}
	rep.Values["macd"] = ReportValue{
		Latest: histVal,
		State:  macdState,
		Note:   fmt.Sprintf("signal=%.4f", lastValid(signal)),
	}

	// ATR
	atr := lastValid(talib.Atr(highs, lows, closes, 14))
	rep.Values["atr"] = ReportValue{Latest: atr, State: "volatility", Note: "period=14"}

	return rep, nil
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v != 0 {
			return v
		}
	}
	return 0
}
