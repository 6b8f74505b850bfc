package paper

import "math"

// PositionSize 是风险法仓位计算结果。
type PositionSize struct {
	RiskAmount    float64 `json:"risk_amount"`
	PerShareRisk  float64 `json:"per_share_risk"`
	Shares        int64   `json:"shares"`
	PositionValue float64 `json:"position_value"`
}

// CalculatePositionSize 按账户风险比例推导股数。
//
// riskAmount = balance*riskPercent/100；perShareRisk = |entry-stop|；
// shares = floor(riskAmount/perShareRisk)。perShareRisk 为 0 时返回 0 股
// （除零兜底，不报错）。
func CalculatePositionSize(balance, riskPercent, entryPrice, stopLoss float64) PositionSize {
	out := PositionSize{
		RiskAmount:   balance * riskPercent / 100,
		PerShareRisk: math.Abs(entryPrice - stopLoss),
	}
	if out.PerShareRisk == 0 {
		return out
	}
	out.Shares = int64(math.Floor(out.RiskAmount / out.PerShareRisk))
	out.PositionValue = float64(out.Shares) * entryPrice
	return out
}

// RewardRiskRatio 计算 R:R = |target-entry| / |entry-stop|，分母为 0 时返回 0。
func RewardRiskRatio(entry, target, stop float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}
