package replay

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidTransition 表示当前状态不允许该操作（例如 DecisionPending 时继续播放）。
var ErrInvalidTransition = errors.New("invalid transition")

// State 是回放状态机的取值。
type State string

const (
	StateIdle            State = "idle"
	StatePlaying         State = "playing"
	StatePaused          State = "paused"
	StateDecisionPending State = "decision_pending"
	StateResolved        State = "resolved"
	StateComplete        State = "complete"
)

const (
	MinSpeed = 0.25
	MaxSpeed = 10.0

	defaultBaseInterval = time.Second
)

// Config 描述一次回放会话的参数。DecisionIndex < 0 表示场景没有决策点。
type Config struct {
	BarCount      int
	StartIndex    int
	DecisionIndex int
	BaseInterval  time.Duration
	Speed         float64
	Clock         Clock

	// OnAdvance 在 currentIndex 变化后回调（已释放内部锁）。
	OnAdvance func(index int)
	// OnStateChange 在状态迁移后回调（已释放内部锁）。
	OnStateChange func(prev, next State)
}

// Controller 以可取消的定时器逐根推进 K 线回放。
//
// 并发约束：所有状态变更都在内部互斥锁内完成；每次暂停/重置/调速都会递增
// 代际计数并停掉旧定时器，过期 tick 到达后发现代际不符直接丢弃，保证取消后
// 不会再有任何推进落地。
type Controller struct {
	mu sync.Mutex

	clock         Clock
	barCount      int
	startIndex    int
	decisionIndex int
	baseInterval  time.Duration

	state        State
	current      int
	speed        float64
	outcomeKnown bool

	timer Timer
	gen   uint64

	onAdvance     func(int)
	onStateChange func(prev, next State)
}

// NewController 构造回放控制器，初始状态为 Idle、索引为起始位置。
func NewController(cfg Config) (*Controller, error) {
	if cfg.BarCount <= 0 {
		return nil, fmt.Errorf("bar count 必须 > 0")
	}
	if cfg.StartIndex < 0 || cfg.StartIndex >= cfg.BarCount {
		return nil, fmt.Errorf("start index %d 超出范围 [0,%d)", cfg.StartIndex, cfg.BarCount)
	}
	if cfg.DecisionIndex >= cfg.BarCount {
		return nil, fmt.Errorf("decision index %d 超出范围", cfg.DecisionIndex)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = defaultBaseInterval
	}
	speed := clampSpeed(cfg.Speed)
	return &Controller{
		clock:         cfg.Clock,
		barCount:      cfg.BarCount,
		startIndex:    cfg.StartIndex,
		decisionIndex: cfg.DecisionIndex,
		baseInterval:  cfg.BaseInterval,
		state:         StateIdle,
		current:       cfg.StartIndex,
		speed:         speed,
		onAdvance:     cfg.OnAdvance,
		onStateChange: cfg.OnStateChange,
	}, nil
}

func clampSpeed(s float64) float64 {
	if s <= 0 {
		return 1
	}
	if s < MinSpeed {
		return MinSpeed
	}
	if s > MaxSpeed {
		return MaxSpeed
	}
	return s
}

// Snapshot 是对外暴露的只读状态。
type Snapshot struct {
	State         State   `json:"state"`
	CurrentIndex  int     `json:"current_index"`
	StartIndex    int     `json:"start_index"`
	DecisionIndex int     `json:"decision_index"`
	BarCount      int     `json:"bar_count"`
	Speed         float64 `json:"speed"`
	OutcomeKnown  bool    `json:"outcome_known"`
}

// Snapshot 返回当前状态快照。
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:         c.state,
		CurrentIndex:  c.current,
		StartIndex:    c.startIndex,
		DecisionIndex: c.decisionIndex,
		BarCount:      c.barCount,
		Speed:         c.speed,
		OutcomeKnown:  c.outcomeKnown,
	}
}

// State 返回当前状态。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentIndex 返回当前可见前缀的末尾索引。
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Play 开始或恢复自动播放。DecisionPending 下禁止恢复，需先提交决策或揭示答案。
func (c *Controller) Play() error {
	c.mu.Lock()
	notify := newNotifier(c)
	defer notify.fire()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle, StatePaused, StateResolved:
	case StateDecisionPending:
		return fmt.Errorf("%w: 决策未提交，不能继续播放", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: %s 状态不能播放", ErrInvalidTransition, c.state)
	}
	if c.current >= c.barCount-1 {
		// 已到末尾：结果已知则直接收尾
		if c.outcomeKnown || c.decisionIndex < 0 {
			notify.state(c.setState(StateComplete))
			return nil
		}
		return fmt.Errorf("%w: 已到序列末尾", ErrInvalidTransition)
	}
	notify.state(c.setState(StatePlaying))
	c.scheduleLocked()
	return nil
}

// Pause 暂停自动播放并取消挂起的 tick。
func (c *Controller) Pause() error {
	c.mu.Lock()
	notify := newNotifier(c)
	defer notify.fire()
	defer c.mu.Unlock()

	if c.state != StatePlaying {
		return fmt.Errorf("%w: %s 状态不能暂停", ErrInvalidTransition, c.state)
	}
	c.cancelTimerLocked()
	notify.state(c.setState(StatePaused))
	return nil
}

// StepForward 手动前进一根，仅在非播放状态下允许；跨过决策点的行为与自动播放一致。
func (c *Controller) StepForward() error {
	c.mu.Lock()
	notify := newNotifier(c)
	defer notify.fire()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle, StatePaused, StateResolved:
	case StatePlaying:
		return fmt.Errorf("%w: 播放中不能手动步进", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: %s 状态不能步进", ErrInvalidTransition, c.state)
	}
	if c.current >= c.barCount-1 {
		return fmt.Errorf("%w: 已到序列末尾", ErrInvalidTransition)
	}
	c.advanceLocked(notify)
	return nil
}

// StepBack 手动后退一根，不会越过起始位置，也不改变状态。
func (c *Controller) StepBack() error {
	c.mu.Lock()
	notify := newNotifier(c)
	defer notify.fire()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle, StatePaused, StateResolved:
	case StatePlaying:
		return fmt.Errorf("%w: 播放中不能手动步进", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: %s 状态不能步进", ErrInvalidTransition, c.state)
	}
	if c.current <= c.startIndex {
		return nil
	}
	c.current--
	notify.advance(c.current)
	return nil
}

// Reset 从任意状态回到 Idle 起始位置，清空决策状态并释放定时器。
func (c *Controller) Reset() {
	c.mu.Lock()
	notify := newNotifier(c)
	defer notify.fire()
	defer c.mu.Unlock()

	c.cancelTimerLocked()
	c.outcomeKnown = false
	if c.current != c.startIndex {
		c.current = c.startIndex
		notify.advance(c.current)
	}
	if c.state != StateIdle {
		notify.state(c.setState(StateIdle))
	}
}

// SetSpeed 调整播放倍速（夹取到 0.25x–10x）。播放中会原子替换挂起的定时器。
func (c *Controller) SetSpeed(multiplier float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = clampSpeed(multiplier)
	if c.state == StatePlaying {
		c.cancelTimerLocked()
		c.scheduleLocked()
	}
}

// Speed 返回当前倍速。
func (c *Controller) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Resolve 在 DecisionPending 下标记决策已提交，进入 Resolved。
func (c *Controller) Resolve() error {
	return c.markOutcome("决策已提交")
}

// Reveal 在 DecisionPending 下直接揭示答案（未提交决策），同样进入 Resolved。
func (c *Controller) Reveal() error {
	return c.markOutcome("答案已揭示")
}

func (c *Controller) markOutcome(reason string) error {
	c.mu.Lock()
	notify := newNotifier(c)
	defer notify.fire()
	defer c.mu.Unlock()

	if c.state != StateDecisionPending {
		return fmt.Errorf("%w: %s 状态不能结算决策（%s）", ErrInvalidTransition, c.state, reason)
	}
	c.outcomeKnown = true
	next := StateResolved
	if c.current >= c.barCount-1 {
		next = StateComplete
	}
	notify.state(c.setState(next))
	return nil
}

// Close 释放挂起的定时器；关闭后控制器不再推进。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
}

// ---- 内部状态机 ----

func (c *Controller) setState(next State) (State, State) {
	prev := c.state
	c.state = next
	return prev, next
}

// advanceLocked 前进一根。跨过决策点时强制停在决策索引上并转入 DecisionPending。
func (c *Controller) advanceLocked(notify *notifier) {
	next := c.current + 1
	if next >= c.barCount {
		next = c.barCount - 1
	}
	if c.decisionIndex >= 0 && !c.outcomeKnown && next >= c.decisionIndex {
		if c.decisionIndex > c.current {
			c.current = c.decisionIndex
			notify.advance(c.current)
		}
		c.cancelTimerLocked()
		notify.state(c.setState(StateDecisionPending))
		return
	}
	if next != c.current {
		c.current = next
		notify.advance(c.current)
	}
	if c.current >= c.barCount-1 {
		c.cancelTimerLocked()
		notify.state(c.setState(StateComplete))
		return
	}
	if c.state == StatePlaying {
		c.scheduleLocked()
	}
}

// scheduleLocked 以 baseInterval/speed 安排下一 tick，并绑定当前代际。
func (c *Controller) scheduleLocked() {
	interval := time.Duration(float64(c.baseInterval) / c.speed)
	if interval <= 0 {
		interval = time.Millisecond
	}
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(interval, func() { c.tick(gen) })
}

func (c *Controller) cancelTimerLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	notify := newNotifier(c)
	if gen != c.gen || c.state != StatePlaying {
		// 过期 tick：取消之后到达的一律丢弃
		c.mu.Unlock()
		return
	}
	c.advanceLocked(notify)
	c.mu.Unlock()
	notify.fire()
}

// notifier 收集锁内产生的回调，统一在锁外触发，避免回调重入造成死锁。
type notifier struct {
	c        *Controller
	advances []int
	states   [][2]State
}

func newNotifier(c *Controller) *notifier { return &notifier{c: c} }

func (n *notifier) advance(idx int) { n.advances = append(n.advances, idx) }

func (n *notifier) state(prev, next State) {
	if prev != next {
		n.states = append(n.states, [2]State{prev, next})
	}
}

func (n *notifier) fire() {
	if n.c.onAdvance != nil {
		for _, idx := range n.advances {
			n.c.onAdvance(idx)
		}
	}
	if n.c.onStateChange != nil {
		for _, tr := range n.states {
			n.c.onStateChange(tr[0], tr[1])
		}
	}
	n.advances = nil
	n.states = nil
}
