package market

import (
	"errors"
	"fmt"
)

// ErrInvalidBarSequence 表示时间戳非单调递增或 OHLC 结构非法。
var ErrInvalidBarSequence = errors.New("invalid bar sequence")

// Bar 是基础分辨率的 OHLCV K 线，Timestamp 为毫秒。
type Bar struct {
	Timestamp int64   `json:"time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// TypicalPrice 返回 (h+l+c)/3，供 VWAP 等指标使用。
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// ValidateBars 校验序列不变式：时间戳严格递增、high/low 包住 open/close、volume 非负。
func ValidateBars(bars []Bar) error {
	var prev int64
	for i, b := range bars {
		if i > 0 && b.Timestamp <= prev {
			return fmt.Errorf("%w: bar#%d 时间戳 %d 未递增（上一根 %d）", ErrInvalidBarSequence, i, b.Timestamp, prev)
		}
		if err := validateOHLC(i, b); err != nil {
			return err
		}
		prev = b.Timestamp
	}
	return nil
}

func validateOHLC(idx int, b Bar) error {
	hi := b.Open
	if b.Close > hi {
		hi = b.Close
	}
	lo := b.Open
	if b.Close < lo {
		lo = b.Close
	}
	switch {
	case b.High < hi:
		return fmt.Errorf("%w: bar#%d high=%.8f 小于 max(open,close)=%.8f", ErrInvalidBarSequence, idx, b.High, hi)
	case b.Low > lo:
		return fmt.Errorf("%w: bar#%d low=%.8f 大于 min(open,close)=%.8f", ErrInvalidBarSequence, idx, b.Low, lo)
	case b.Volume < 0:
		return fmt.Errorf("%w: bar#%d volume=%.8f 为负", ErrInvalidBarSequence, idx, b.Volume)
	}
	return nil
}

// Closes 抽取收盘价序列。
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
