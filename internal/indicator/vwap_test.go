package indicator

import (
	"testing"
	"time"

	"replaylab/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barAt(ts int64, h, l, c, v float64) market.Bar {
	return market.Bar{Timestamp: ts, Open: c, High: h, Low: l, Close: c, Volume: v}
}

func TestVWAPSingleBarEqualsTypicalPrice(t *testing.T) {
	b := barAt(1_716_552_000_000, 12, 10, 11, 500)
	out := VWAP([]market.Bar{b})
	require.Len(t, out.VWAP, 1)
	assert.InDelta(t, b.TypicalPrice(), out.VWAP[0], 1e-12)
	// 单根无偏差，通道收敛到 VWAP 本身
	assert.InDelta(t, out.VWAP[0], out.Upper1[0], 1e-12)
	assert.InDelta(t, out.VWAP[0], out.Lower2[0], 1e-12)
}

func TestVWAPCumulative(t *testing.T) {
	base := int64(1_716_552_000_000)
	bars := []market.Bar{
		barAt(base, 12, 10, 11, 100),
		barAt(base+60_000, 14, 12, 13, 300),
	}
	out := VWAP(bars)
	tp0, tp1 := bars[0].TypicalPrice(), bars[1].TypicalPrice()
	want := (tp0*100 + tp1*300) / 400
	assert.InDelta(t, want, out.VWAP[1], 1e-12)
}

func TestVWAPResetsAtUTCMidnight(t *testing.T) {
	// 两根跨 UTC 日界的 K 线：第二根的 VWAP 必须只用当日数据
	day1 := time.Date(2024, 5, 24, 23, 59, 0, 0, time.UTC).UnixMilli()
	day2 := time.Date(2024, 5, 25, 0, 0, 0, 0, time.UTC).UnixMilli()
	bars := []market.Bar{
		barAt(day1, 200, 198, 199, 1000),
		barAt(day2, 102, 98, 100, 500),
	}
	out := VWAP(bars)
	assert.InDelta(t, bars[1].TypicalPrice(), out.VWAP[1], 1e-12)
}

func TestVWAPZeroVolumeFallsBackToTypicalPrice(t *testing.T) {
	b := barAt(1_716_552_000_000, 12, 10, 11, 0)
	out := VWAP([]market.Bar{b})
	assert.InDelta(t, b.TypicalPrice(), out.VWAP[0], 1e-12)
}
