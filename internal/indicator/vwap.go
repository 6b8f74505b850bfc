package indicator

import (
	"math"
	"time"

	"replaylab/internal/market"
)

// VWAPBands 保存逐根的 VWAP 与 ±1σ/±2σ 通道，数组与输入前缀 1:1 对齐。
type VWAPBands struct {
	VWAP   []float64 `json:"vwap"`
	Upper1 []float64 `json:"vwap_upper_1"`
	Lower1 []float64 `json:"vwap_lower_1"`
	Upper2 []float64 `json:"vwap_upper_2"`
	Lower2 []float64 `json:"vwap_lower_2"`
}

// VWAP 计算成交量加权均价及标准差通道。
//
// 累计和在 UTC 日历日切换时归零（会话边界不跨日携带）；累计成交量为 0 时
// 以 typical price 兜底。通道宽度取自会话内 (tp-vwap) 的总体标准差。
func VWAP(bars []market.Bar) VWAPBands {
	n := len(bars)
	out := VWAPBands{
		VWAP:   make([]float64, n),
		Upper1: make([]float64, n),
		Lower1: make([]float64, n),
		Upper2: make([]float64, n),
		Lower2: make([]float64, n),
	}
	var (
		sumPV, sumV   float64
		sumDev, sumD2 float64
		count         int
		curDay        string
	)
	for i, b := range bars {
		day := time.UnixMilli(b.Timestamp).UTC().Format("2006-01-02")
		if day != curDay {
			curDay = day
			sumPV, sumV, sumDev, sumD2 = 0, 0, 0, 0
			count = 0
		}
		tp := b.TypicalPrice()
		sumPV += tp * b.Volume
		sumV += b.Volume
		vwap := tp
		if sumV > 0 {
			vwap = sumPV / sumV
		}
		dev := tp - vwap
		sumDev += dev
		sumD2 += dev * dev
		count++
		mean := sumDev / float64(count)
		variance := sumD2/float64(count) - mean*mean
		if variance < 0 {
			variance = 0
		}
		sd := math.Sqrt(variance)
		out.VWAP[i] = vwap
		out.Upper1[i] = vwap + sd
		out.Lower1[i] = vwap - sd
		out.Upper2[i] = vwap + 2*sd
		out.Lower2[i] = vwap - 2*sd
	}
	return out
}
