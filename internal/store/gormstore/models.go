package gormstore

import (
	"gorm.io/datatypes"
)

// SessionModel 持久化一次练习会话的最终结果。
type SessionModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	SessionID      string         `gorm:"column:session_id;uniqueIndex"`
	ScenarioID     string         `gorm:"column:scenario_id;index"`
	Symbol         string         `gorm:"column:symbol"`
	Decision       string         `gorm:"column:decision"`
	CorrectAction  string         `gorm:"column:correct_action"`
	IsCorrect      int            `gorm:"column:is_correct"`
	InitialBalance float64        `gorm:"column:initial_balance"`
	FinalEquity    float64        `gorm:"column:final_equity"`
	StatsJSON      datatypes.JSON `gorm:"column:stats_json;type:TEXT"`
	StartedAtUnix  int64          `gorm:"column:started_at"`
	FinishedAtUnix int64          `gorm:"column:finished_at"`
	CreatedAtUnix  int64          `gorm:"column:created_at"`
}

func (SessionModel) TableName() string { return "practice_sessions" }

// TradeModel 持久化会话内的单笔已平仓记录。
type TradeModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	TradeID       string  `gorm:"column:trade_id;uniqueIndex"`
	SessionID     string  `gorm:"column:session_id;index"`
	Symbol        string  `gorm:"column:symbol"`
	Side          string  `gorm:"column:side"`
	EntryPrice    float64 `gorm:"column:entry_price"`
	ExitPrice     float64 `gorm:"column:exit_price"`
	Quantity      int64   `gorm:"column:quantity"`
	RealizedPnL   float64 `gorm:"column:realized_pnl"`
	HoldingTimeMs int64   `gorm:"column:holding_time_ms"`
	ExitReason    string  `gorm:"column:exit_reason"`
	ClosedAtUnix  int64   `gorm:"column:closed_at"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (TradeModel) TableName() string { return "practice_trades" }
