package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"replaylab/internal/indicator"
	"replaylab/internal/logger"
	"replaylab/internal/market"
	"replaylab/internal/paper"
	"replaylab/internal/practice"
	"replaylab/internal/replay"
	"replaylab/internal/store/gormstore"

	"github.com/google/uuid"
)

// ErrDecisionNotPending 表示当前回放不在等待决策的位置。
var ErrDecisionNotPending = errors.New("decision not pending")

// Options 描述一次练习会话的创建参数。
type Options struct {
	Scenario       *market.Scenario
	InitialBalance float64
	BaseInterval   time.Duration
	Speed          float64
	StartIndex     int
	Indicator      indicator.Settings
	Clock          replay.Clock

	// Results 非空时，成交与终态会尽力持久化；失败只告警不中断练习。
	Results *gormstore.GormStore

	// 渲染协作方的订阅回调：可见前缀每次变化（前进或回退）都会触发。
	OnBarsChanged       func(index int)
	OnIndicatorsChanged func(series indicator.Series)
}

// Session 将剧本、回放控制器与模拟账户绑定为一次练习。
//
// 回放每推进一根 K 线，就用该根收盘价刷新持仓浮动盈亏并评估止损/止盈；
// 学员在决策点提交方向判断后回放才允许继续。
type Session struct {
	id       string
	scenario *market.Scenario
	ctrl     *replay.Controller
	account  *paper.Account
	indCfg   indicator.Settings
	results  *gormstore.GormStore

	onBarsChanged       func(int)
	onIndicatorsChanged func(indicator.Series)

	mu         sync.Mutex
	lastMarked int
	evaluation *practice.Result
	startedAt  time.Time
	finishedAt time.Time
	saved      bool
}

// New 创建会话。起始索引默认取决策点之前约三分之一处，最少从 0 开始。
func New(opts Options) (*Session, error) {
	sc := opts.Scenario
	if sc == nil {
		return nil, fmt.Errorf("scenario 不能为空")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	start := opts.StartIndex
	if start < 0 || start >= len(sc.Bars) {
		return nil, fmt.Errorf("start index %d 超出范围 [0,%d)", start, len(sc.Bars))
	}
	if start > sc.DecisionPoint.Index {
		return nil, fmt.Errorf("start index %d 不能越过决策点 %d", start, sc.DecisionPoint.Index)
	}

	s := &Session{
		id:                  uuid.NewString(),
		scenario:            sc,
		account:             paper.NewAccount(opts.InitialBalance),
		indCfg:              opts.Indicator,
		results:             opts.Results,
		onBarsChanged:       opts.OnBarsChanged,
		onIndicatorsChanged: opts.OnIndicatorsChanged,
		lastMarked:          start,
		startedAt:           time.Now(),
	}
	ctrl, err := replay.NewController(replay.Config{
		BarCount:      len(sc.Bars),
		StartIndex:    start,
		DecisionIndex: sc.DecisionPoint.Index,
		BaseInterval:  opts.BaseInterval,
		Speed:         opts.Speed,
		Clock:         opts.Clock,
		OnAdvance:     s.onAdvance,
		OnStateChange: s.onStateChange,
	})
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl
	return s, nil
}

// ID 返回会话标识。
func (s *Session) ID() string { return s.id }

// Scenario 返回绑定的剧本（只读）。
func (s *Session) Scenario() *market.Scenario { return s.scenario }

// Controller 返回回放控制器。
func (s *Session) Controller() *replay.Controller { return s.ctrl }

// Account 返回模拟账户。
func (s *Session) Account() *paper.Account { return s.account }

// onAdvance 在可见前缀每次变化后执行。只有索引首次越过水位线时才盯市与
// 评估离场：回退/重置不得把更早的收盘价套到持仓上（持仓更新必须保持
// K 线时间顺序）。订阅回调无论方向都会触发。
func (s *Session) onAdvance(index int) {
	if index < 0 || index >= len(s.scenario.Bars) {
		return
	}
	if s.shouldMark(index) {
		bar := s.scenario.Bars[index]
		at := time.UnixMilli(bar.Timestamp)
		s.account.MarkPrice(bar.Close)
		for _, t := range s.account.EvaluateExits(bar.Close, at) {
			s.persistTrade(t)
		}
	}
	if s.onBarsChanged != nil {
		s.onBarsChanged(index)
	}
	if s.onIndicatorsChanged != nil {
		s.onIndicatorsChanged(indicator.Compute(s.scenario.Bars[:index+1], s.indCfg))
	}
}

// shouldMark 推进水位线。水位线单调不减，重置后重走旧区间也不会重复触发。
func (s *Session) shouldMark(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index <= s.lastMarked {
		return false
	}
	s.lastMarked = index
	return true
}

func (s *Session) onStateChange(_, next replay.State) {
	if next == replay.StateComplete {
		s.finalize()
	}
}

// VisibleBars 返回当前可见的 K 线前缀。
func (s *Session) VisibleBars() []market.Bar {
	end := s.ctrl.CurrentIndex() + 1
	out := make([]market.Bar, end)
	copy(out, s.scenario.Bars[:end])
	return out
}

// Indicators 对当前可见前缀计算指标序列。
func (s *Session) Indicators() indicator.Series {
	return indicator.Compute(s.VisibleBars(), s.indCfg)
}

// ContextReport 计算当前可见前缀的辅助指标读数。
func (s *Session) ContextReport() (indicator.ContextReport, error) {
	return indicator.ComputeContextReport(s.scenario.Symbol, s.VisibleBars())
}

// SubmitDecision 在决策点提交方向判断：评估正误并允许回放继续。
func (s *Session) SubmitDecision(action string) (practice.Result, error) {
	if s.ctrl.State() != replay.StateDecisionPending {
		return practice.Result{}, fmt.Errorf("%w: 当前状态 %s", ErrDecisionNotPending, s.ctrl.State())
	}
	res, err := practice.Evaluate(market.Action(action), s.scenario.DecisionPoint.CorrectAction)
	if err != nil {
		return practice.Result{}, err
	}
	if err := s.ctrl.Resolve(); err != nil {
		return practice.Result{}, err
	}
	s.mu.Lock()
	s.evaluation = &res
	s.mu.Unlock()
	return res, nil
}

// RevealAnswer 不提交决策直接揭示正确动作，回放同样解除封锁。
func (s *Session) RevealAnswer() (market.Action, error) {
	if err := s.ctrl.Reveal(); err != nil {
		return "", err
	}
	return s.scenario.DecisionPoint.CorrectAction, nil
}

// Evaluation 返回已提交的决策结果。
func (s *Session) Evaluation() (practice.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evaluation == nil {
		return practice.Result{}, false
	}
	return *s.evaluation, true
}

// OpenPosition 按当前可见的最新收盘价盯市的前提下开仓。
func (s *Session) OpenPosition(req paper.OrderRequest) (paper.Position, error) {
	if req.At.IsZero() {
		idx := s.ctrl.CurrentIndex()
		req.At = time.UnixMilli(s.scenario.Bars[idx].Timestamp)
	}
	return s.account.OpenPosition(req)
}

// ClosePosition 以当前可见最新收盘价手动平仓。
func (s *Session) ClosePosition(positionID string) (paper.Trade, error) {
	idx := s.ctrl.CurrentIndex()
	bar := s.scenario.Bars[idx]
	trade, err := s.account.ClosePosition(positionID, bar.Close, paper.ExitManual, time.UnixMilli(bar.Timestamp))
	if err != nil {
		return paper.Trade{}, err
	}
	s.persistTrade(trade)
	return trade, nil
}

// persistTrade 尽力写入结果库；失败仅告警，不影响练习流程。
func (s *Session) persistTrade(t paper.Trade) {
	if s.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.results.SaveTrade(ctx, s.id, t); err != nil {
		logger.Warnf("持久化成交失败 session=%s trade=%s: %v", s.id, t.ID, err)
	}
}

// finalize 在回放结束时写入会话终态，只写一次。
func (s *Session) finalize() {
	s.mu.Lock()
	if s.saved {
		s.mu.Unlock()
		return
	}
	s.saved = true
	s.finishedAt = time.Now()
	var eval practice.Result
	if s.evaluation != nil {
		eval = *s.evaluation
	}
	started := s.startedAt
	finished := s.finishedAt
	s.mu.Unlock()

	if s.results == nil {
		return
	}
	snap := s.account.Snapshot()
	result := gormstore.SessionResult{
		SessionID:      s.id,
		ScenarioID:     s.scenario.ID,
		Symbol:         s.scenario.Symbol,
		Evaluation:     eval,
		InitialBalance: s.account.InitialBalance(),
		FinalEquity:    snap.Equity,
		Stats:          s.account.Stats(),
		StartedAt:      started,
		FinishedAt:     finished,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.results.SaveSessionResult(ctx, result); err != nil {
		logger.Warnf("持久化会话结果失败 session=%s: %v", s.id, err)
	}
}

// Close 停止回放并释放定时器。
func (s *Session) Close() {
	s.ctrl.Close()
}
