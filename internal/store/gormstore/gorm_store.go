package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"replaylab/internal/paper"
	"replaylab/internal/practice"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SessionResult 是写入结果库的会话终态。
type SessionResult struct {
	SessionID      string
	ScenarioID     string
	Symbol         string
	Evaluation     practice.Result
	InitialBalance float64
	FinalEquity    float64
	Stats          paper.AccountStats
	StartedAt      time.Time
	FinishedAt     time.Time
}

// GormStore 用 Gorm + SQLite 持久化练习结果与成交流水。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 打开（必要时创建）结果库并完成迁移。
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 结果库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SessionModel{}, &TradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP reads
	// while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// Close 关闭底层连接。
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveTrade 追加一笔成交记录（trade_id 去重，重复写入覆盖）。
func (s *GormStore) SaveTrade(ctx context.Context, sessionID string, t paper.Trade) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	m := TradeModel{
		TradeID:       t.ID,
		SessionID:     sessionID,
		Symbol:        t.Symbol,
		Side:          string(t.Side),
		EntryPrice:    t.EntryPrice,
		ExitPrice:     t.ExitPrice,
		Quantity:      t.Quantity,
		RealizedPnL:   t.RealizedPnL,
		HoldingTimeMs: t.HoldingTimeMs,
		ExitReason:    t.ExitReason,
		ClosedAtUnix:  t.ClosedAt.UnixMilli(),
		CreatedAtUnix: time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trade_id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

// SaveSessionResult 写入会话终态（session_id 去重，重复写入覆盖）。
func (s *GormStore) SaveSessionResult(ctx context.Context, r SessionResult) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	statsJSON, err := json.Marshal(r.Stats)
	if err != nil {
		return fmt.Errorf("序列化 stats 失败: %w", err)
	}
	isCorrect := 0
	if r.Evaluation.IsCorrect {
		isCorrect = 1
	}
	m := SessionModel{
		SessionID:      r.SessionID,
		ScenarioID:     r.ScenarioID,
		Symbol:         r.Symbol,
		Decision:       string(r.Evaluation.Decision),
		CorrectAction:  string(r.Evaluation.CorrectAction),
		IsCorrect:      isCorrect,
		InitialBalance: r.InitialBalance,
		FinalEquity:    r.FinalEquity,
		StatsJSON:      datatypes.JSON(statsJSON),
		StartedAtUnix:  r.StartedAt.UnixMilli(),
		FinishedAtUnix: r.FinishedAt.UnixMilli(),
		CreatedAtUnix:  time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

// ListSessionTrades 按平仓顺序返回会话成交流水。
func (s *GormStore) ListSessionTrades(ctx context.Context, sessionID string) ([]paper.Trade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var models []TradeModel
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("closed_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]paper.Trade, 0, len(models))
	for _, m := range models {
		out = append(out, paper.Trade{
			ID:            m.TradeID,
			SessionID:     m.SessionID,
			Symbol:        m.Symbol,
			Side:          paper.Side(m.Side),
			EntryPrice:    m.EntryPrice,
			ExitPrice:     m.ExitPrice,
			Quantity:      m.Quantity,
			RealizedPnL:   m.RealizedPnL,
			HoldingTimeMs: m.HoldingTimeMs,
			ExitReason:    m.ExitReason,
			ClosedAt:      time.UnixMilli(m.ClosedAtUnix),
		})
	}
	return out, nil
}

// ListRecentSessions 返回最近 limit 条会话记录。
func (s *GormStore) ListRecentSessions(ctx context.Context, limit int) ([]SessionModel, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	if limit <= 0 {
		limit = 50
	}
	var models []SessionModel
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	return models, err
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
