package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minuteBars(start int64, closes ...float64) []Bar {
	out := make([]Bar, len(closes))
	for i, c := range closes {
		out[i] = Bar{
			Timestamp: start + int64(i)*60_000,
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		}
	}
	return out
}

func TestAggregatePreservesVolume(t *testing.T) {
	bars := minuteBars(1_716_552_000_000, 10, 11, 12, 13, 14, 15, 16)
	tf, err := ParseTimeframe("5m")
	require.NoError(t, err)

	agg := Aggregate(bars, tf)
	require.Len(t, agg, 2)

	var src, dst float64
	for _, b := range bars {
		src += b.Volume
	}
	for _, b := range agg {
		dst += b.Volume
	}
	assert.Equal(t, src, dst)
}

func TestAggregateBucketSemantics(t *testing.T) {
	start := int64(1_716_552_000_000) // 对齐到 5m 边界
	bars := minuteBars(start, 10, 12, 9, 11, 13, 20)
	tf, err := ParseTimeframe("5m")
	require.NoError(t, err)

	agg := Aggregate(bars, tf)
	require.Len(t, agg, 2)

	first := agg[0]
	assert.Equal(t, start, first.Timestamp)
	assert.Equal(t, 9.5, first.Open)   // 首根 open
	assert.Equal(t, 13.0, first.Close) // 末根 close
	assert.Equal(t, 14.0, first.High)
	assert.Equal(t, 8.0, first.Low)
	assert.Equal(t, 500.0, first.Volume)

	// 末尾不完整桶照常输出
	second := agg[1]
	assert.Equal(t, start+5*60_000, second.Timestamp)
	assert.Equal(t, 100.0, second.Volume)
}

func TestAggregatePreEpochTimestamps(t *testing.T) {
	// 1970 年之前的时间戳为负数，桶起点同样为负，完整桶不能丢。
	start := int64(-600_000)
	bars := minuteBars(start, 10, 11, 12, 13, 14, 15, 16)
	tf, err := ParseTimeframe("5m")
	require.NoError(t, err)

	agg := Aggregate(bars, tf)
	require.Len(t, agg, 2)
	assert.Equal(t, start, agg[0].Timestamp)
	assert.Equal(t, 500.0, agg[0].Volume)
	assert.Equal(t, int64(-300_000), agg[1].Timestamp)
	assert.Equal(t, 16.0, agg[1].Close)
}

func TestAggregateEmptyInput(t *testing.T) {
	tf, err := ParseTimeframe("1h")
	require.NoError(t, err)
	assert.Nil(t, Aggregate(nil, tf))
}

func TestAggregateIsPure(t *testing.T) {
	bars := minuteBars(1_716_552_000_000, 10, 11, 12)
	tf, _ := ParseTimeframe("5m")
	a := Aggregate(bars, tf)
	b := Aggregate(bars, tf)
	assert.Equal(t, a, b)
	assert.Equal(t, 10.0, bars[0].Close, "输入不应被修改")
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe(" 15M ")
	require.NoError(t, err)
	assert.Equal(t, "15m", tf.Key)
	assert.Equal(t, 15*time.Minute, tf.Duration)

	_, err = ParseTimeframe("7m")
	assert.Error(t, err)
}

func TestBucketStartAlignsDown(t *testing.T) {
	tf, _ := ParseTimeframe("5m")
	base := int64(1_716_552_000_000)
	assert.Equal(t, base, tf.BucketStart(base))
	assert.Equal(t, base, tf.BucketStart(base+4*60_000+59_999))
	assert.Equal(t, base+5*60_000, tf.BucketStart(base+5*60_000))
}
