package replay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock 手工触发的假时钟：AfterFunc 只登记回调，由测试决定何时 fire。
type manualClock struct {
	mu      sync.Mutex
	pending []func()
}

func (c *manualClock) Now() time.Time { return time.Unix(0, 0) }

func (c *manualClock) AfterFunc(_ time.Duration, fn func()) Timer {
	c.mu.Lock()
	c.pending = append(c.pending, fn)
	c.mu.Unlock()
	return &manualTimer{}
}

// fire 触发最早登记的回调。
func (c *manualClock) fire() bool {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return false
	}
	fn := c.pending[0]
	c.pending = c.pending[1:]
	c.mu.Unlock()
	fn()
	return true
}

type manualTimer struct{}

func (manualTimer) Stop() bool { return true }

func newTestController(t *testing.T, clk Clock, decision int) *Controller {
	t.Helper()
	c, err := NewController(Config{
		BarCount:      100,
		StartIndex:    10,
		DecisionIndex: decision,
		BaseInterval:  time.Second,
		Speed:         1,
		Clock:         clk,
	})
	require.NoError(t, err)
	return c
}

func TestStepForwardStopsAtDecisionPoint(t *testing.T) {
	c := newTestController(t, &manualClock{}, 75)

	for i := 0; i < 65; i++ {
		require.NoError(t, c.StepForward(), "step %d", i)
	}
	snap := c.Snapshot()
	assert.Equal(t, 75, snap.CurrentIndex)
	assert.Equal(t, StateDecisionPending, snap.State)

	// 决策未提交前禁止任何推进
	assert.ErrorIs(t, c.StepForward(), ErrInvalidTransition)
	assert.ErrorIs(t, c.Play(), ErrInvalidTransition)
}

func TestAutoPlayPausesOnDecisionPoint(t *testing.T) {
	clk := &manualClock{}
	c := newTestController(t, clk, 13)

	require.NoError(t, c.Play())
	assert.Equal(t, StatePlaying, c.State())
	for clk.fire() {
	}
	snap := c.Snapshot()
	assert.Equal(t, 13, snap.CurrentIndex)
	assert.Equal(t, StateDecisionPending, snap.State)
}

func TestStaleTickIsDiscardedAfterPause(t *testing.T) {
	clk := &manualClock{}
	c := newTestController(t, clk, -1)

	require.NoError(t, c.Play())
	require.NoError(t, c.Pause())

	// 暂停后仍可能有挂起的 tick 到达，它必须被丢弃
	for clk.fire() {
	}
	snap := c.Snapshot()
	assert.Equal(t, 10, snap.CurrentIndex)
	assert.Equal(t, StatePaused, snap.State)
}

func TestResolveUnblocksPlayback(t *testing.T) {
	c := newTestController(t, &manualClock{}, 12)
	require.NoError(t, c.StepForward())
	require.NoError(t, c.StepForward())
	require.Equal(t, StateDecisionPending, c.State())

	require.NoError(t, c.Resolve())
	assert.Equal(t, StateResolved, c.State())
	assert.NoError(t, c.StepForward())
	assert.Equal(t, 13, c.CurrentIndex())
}

func TestStepBackClampsAtStartIndex(t *testing.T) {
	c := newTestController(t, &manualClock{}, -1)
	require.NoError(t, c.StepForward())
	require.NoError(t, c.StepBack())
	assert.Equal(t, 10, c.CurrentIndex())

	// 起始位置再退不报错也不动
	require.NoError(t, c.StepBack())
	assert.Equal(t, 10, c.CurrentIndex())
}

func TestResetReturnsToIdle(t *testing.T) {
	c := newTestController(t, &manualClock{}, 12)
	require.NoError(t, c.StepForward())
	require.NoError(t, c.StepForward())
	require.Equal(t, StateDecisionPending, c.State())

	c.Reset()
	snap := c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 10, snap.CurrentIndex)
	assert.False(t, snap.OutcomeKnown)

	// 重置后再次推进仍会在决策点停下
	require.NoError(t, c.StepForward())
	require.NoError(t, c.StepForward())
	assert.Equal(t, StateDecisionPending, c.State())
}

func TestSpeedClamped(t *testing.T) {
	c := newTestController(t, &manualClock{}, -1)
	c.SetSpeed(0.01)
	assert.Equal(t, MinSpeed, c.Speed())
	c.SetSpeed(99)
	assert.Equal(t, MaxSpeed, c.Speed())
	c.SetSpeed(2)
	assert.Equal(t, 2.0, c.Speed())
}

func TestCompleteAtLastBar(t *testing.T) {
	clk := &manualClock{}
	c, err := NewController(Config{
		BarCount:      5,
		StartIndex:    0,
		DecisionIndex: -1,
		Clock:         clk,
	})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, c.StepForward())
	}
	assert.Equal(t, StateComplete, c.State())
	assert.ErrorIs(t, c.StepForward(), ErrInvalidTransition)
}

func TestOnAdvanceCallbackOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	clk := &manualClock{}
	c, err := NewController(Config{
		BarCount:      20,
		StartIndex:    0,
		DecisionIndex: -1,
		Clock:         clk,
		OnAdvance: func(idx int) {
			mu.Lock()
			seen = append(seen, idx)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NoError(t, c.Play())
	for i := 0; i < 5; i++ {
		require.True(t, clk.fire())
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
}
