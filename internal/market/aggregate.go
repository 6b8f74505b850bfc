package market

// Aggregate 将基础分辨率 K 线按目标周期聚合为粗粒度序列。
//
// 分桶规则为 floor(timestamp/bucketMs)*bucketMs；桶内 open 取首根、close 取末根、
// high/low 取极值、volume 求和。末尾的不完整桶同样输出（回放时前缀会逐步增长，
// 不允许窥视未来数据）。空输入返回空输出，函数为纯函数且保持顺序。
func Aggregate(bars []Bar, target Timeframe) []Bar {
	if len(bars) == 0 {
		return nil
	}
	step := target.DurationMillis()
	if step <= 0 {
		out := make([]Bar, len(bars))
		copy(out, bars)
		return out
	}
	var out []Bar
	var cur Bar
	var curBucket int64
	started := false
	for _, b := range bars {
		bucket := target.BucketStart(b.Timestamp)
		if !started || bucket != curBucket {
			if started {
				out = append(out, cur)
			}
			started = true
			curBucket = bucket
			cur = Bar{
				Timestamp: bucket,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			}
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	out = append(out, cur)
	return out
}
