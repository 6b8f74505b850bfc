package indicator

// EMA 计算指数移动平均，输出长度与输入一致（无空洞）。
//
// 种子段（index < period）为截至当前的简单均值；自 index=period 起使用
// 标准递推 ema[i] = (v[i]-ema[i-1])*k + ema[i-1]，k = 2/(period+1)。
// period=1 时输出等于输入。
func EMA(values []float64, period int) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	if period < 1 {
		period = 1
	}
	out := make([]float64, n)
	k := 2.0 / float64(period+1)
	sum := 0.0
	for i, v := range values {
		if i < period {
			sum += v
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (v-out[i-1])*k + out[i-1]
	}
	return out
}
