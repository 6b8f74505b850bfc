package indicator

// TrendState 是快慢 EMA 相对位置给出的逐根趋势分类。
type TrendState string

const (
	TrendBullish TrendState = "bullish"
	TrendBearish TrendState = "bearish"
	TrendNeutral TrendState = "neutral"
)

// RibbonPoint 暴露单根 K 线的快慢 EMA 以及供填充着色使用的上下沿。
type RibbonPoint struct {
	Fast  float64    `json:"fast"`
	Slow  float64    `json:"slow"`
	Upper float64    `json:"upper"`
	Lower float64    `json:"lower"`
	State TrendState `json:"state"`
}

// Ribbon 按快/慢 EMA 逐根分类趋势：fast>slow 看多，fast<slow 看空，相等中性。
// 引擎只分类不渲染。
func Ribbon(closes []float64, fastPeriod, slowPeriod int) []RibbonPoint {
	if len(closes) == 0 {
		return nil
	}
	if fastPeriod <= 0 {
		fastPeriod = 9
	}
	if slowPeriod <= 0 {
		slowPeriod = 21
	}
	fast := EMA(closes, fastPeriod)
	slow := EMA(closes, slowPeriod)
	out := make([]RibbonPoint, len(closes))
	for i := range closes {
		p := RibbonPoint{Fast: fast[i], Slow: slow[i]}
		switch {
		case fast[i] > slow[i]:
			p.State = TrendBullish
			p.Upper, p.Lower = fast[i], slow[i]
		case fast[i] < slow[i]:
			p.State = TrendBearish
			p.Upper, p.Lower = slow[i], fast[i]
		default:
			p.State = TrendNeutral
			p.Upper, p.Lower = fast[i], slow[i]
		}
		out[i] = p
	}
	return out
}
