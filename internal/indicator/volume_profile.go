package indicator

import (
	"replaylab/internal/market"
)

// ProfileLevel 是单个价格桶的成交量统计。
type ProfileLevel struct {
	Price  float64 `json:"price"` // 桶中心价
	Volume float64 `json:"volume"`
}

// VolumeProfile 是按价格分桶的成交量直方图。
type VolumeProfile struct {
	Levels          []ProfileLevel `json:"levels"`
	PointOfControl  float64        `json:"point_of_control"`
	HighVolumeNodes []float64      `json:"high_volume_nodes,omitempty"`
	LowVolumeNodes  []float64      `json:"low_volume_nodes,omitempty"`
}

// ComputeVolumeProfile 以 typical price 将区间内成交量分桶，并标记
// point-of-control（最大量桶）与高/低量节点（相对均值 1.5x / 0.5x）。
func ComputeVolumeProfile(bars []market.Bar, buckets int) VolumeProfile {
	if len(bars) == 0 {
		return VolumeProfile{}
	}
	if buckets <= 0 {
		buckets = 24
	}
	lo, hi := bars[0].TypicalPrice(), bars[0].TypicalPrice()
	for _, b := range bars[1:] {
		tp := b.TypicalPrice()
		if tp < lo {
			lo = tp
		}
		if tp > hi {
			hi = tp
		}
	}
	if hi <= lo {
		// 全部成交集中在单一价位
		total := 0.0
		for _, b := range bars {
			total += b.Volume
		}
		lv := ProfileLevel{Price: lo, Volume: total}
		return VolumeProfile{Levels: []ProfileLevel{lv}, PointOfControl: lo}
	}
	width := (hi - lo) / float64(buckets)
	vols := make([]float64, buckets)
	for _, b := range bars {
		idx := int((b.TypicalPrice() - lo) / width)
		if idx >= buckets {
			idx = buckets - 1
		}
		vols[idx] += b.Volume
	}
	prof := VolumeProfile{Levels: make([]ProfileLevel, buckets)}
	var total float64
	maxIdx := 0
	for i, v := range vols {
		price := lo + (float64(i)+0.5)*width
		prof.Levels[i] = ProfileLevel{Price: price, Volume: v}
		total += v
		if v > vols[maxIdx] {
			maxIdx = i
		}
	}
	prof.PointOfControl = prof.Levels[maxIdx].Price
	mean := total / float64(buckets)
	for _, lv := range prof.Levels {
		switch {
		case mean > 0 && lv.Volume >= mean*1.5:
			prof.HighVolumeNodes = append(prof.HighVolumeNodes, lv.Price)
		case mean > 0 && lv.Volume <= mean*0.5:
			prof.LowVolumeNodes = append(prof.LowVolumeNodes, lv.Price)
		}
	}
	return prof
}
