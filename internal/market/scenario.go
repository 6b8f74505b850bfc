package market

import (
	"fmt"
	"strings"
)

// Action 是练习场景允许的决策动作。
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionWait  Action = "wait"
)

// NormalizeAction 统一动作名称：大小写不敏感，hold 视为 wait。
func NormalizeAction(a string) Action {
	s := strings.ToLower(strings.TrimSpace(a))
	if s == "hold" {
		return ActionWait
	}
	return Action(s)
}

// Valid 返回动作是否为合法取值。
func (a Action) Valid() bool {
	switch a {
	case ActionLong, ActionShort, ActionWait:
		return true
	default:
		return false
	}
}

// KeyLevel 是内容管线给出的关键价位参考数据，核心只读不改。
type KeyLevel struct {
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	Strength int     `json:"strength"`
	Label    string  `json:"label,omitempty"`
}

// DecisionPoint 标记场景中要求学员做出判断的 K 线位置。
type DecisionPoint struct {
	Index         int    `json:"index"`
	Time          int64  `json:"time,omitempty"`
	CorrectAction Action `json:"correct_action"`
}

// Scenario 是一段练习剧本：历史 K 线 + 关键价位 + 决策点。加载后只读。
type Scenario struct {
	ID             string        `json:"id"`
	Symbol         string        `json:"symbol"`
	Bars           []Bar         `json:"bars"`
	KeyLevels      []KeyLevel    `json:"key_levels,omitempty"`
	DecisionPoint  DecisionPoint `json:"decision_point"`
	ChartTimeframe string        `json:"chart_timeframe"`
}

// Validate 校验场景数据完整性（K 线不变式 + 决策点落在序列内）。
func (s *Scenario) Validate() error {
	if s == nil {
		return fmt.Errorf("scenario 不能为空")
	}
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("scenario %s: symbol 不能为空", s.ID)
	}
	if len(s.Bars) == 0 {
		return fmt.Errorf("scenario %s: 缺少 K 线数据", s.ID)
	}
	if err := ValidateBars(s.Bars); err != nil {
		return fmt.Errorf("scenario %s: %w", s.ID, err)
	}
	dp := s.DecisionPoint
	if dp.Index < 0 || dp.Index >= len(s.Bars) {
		return fmt.Errorf("scenario %s: decision index %d 超出范围 [0,%d)", s.ID, dp.Index, len(s.Bars))
	}
	if !dp.CorrectAction.Valid() {
		return fmt.Errorf("scenario %s: correct_action %q 非法", s.ID, dp.CorrectAction)
	}
	return nil
}

// ResolveDecisionIndex 将按时间给出的决策点换算成索引：取第一根时间戳 >= time 的 K 线。
func ResolveDecisionIndex(bars []Bar, ts int64) (int, bool) {
	for i, b := range bars {
		if b.Timestamp >= ts {
			return i, true
		}
	}
	return 0, false
}
