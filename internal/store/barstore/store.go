package barstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"replaylab/internal/market"

	_ "modernc.org/sqlite"
)

// Manifest 记录某个剧本 K 线文件的统计信息。
type Manifest struct {
	ScenarioID string `json:"scenario_id"`
	Symbol     string `json:"symbol"`
	Timeframe  string `json:"timeframe"`
	MinTime    int64  `json:"min_time"`
	MaxTime    int64  `json:"max_time"`
	Rows       int64  `json:"rows"`
	ImportedAt int64  `json:"imported_at"`
	Path       string `json:"path"`
}

// Store 以每剧本一个 SQLite 文件的方式缓存 K 线，供重复练习时免去 JSON 重解析。
type Store struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *Store) db(scenarioID string) (*sql.DB, string, error) {
	scenarioID = strings.TrimSpace(scenarioID)
	if scenarioID == "" {
		return nil, "", fmt.Errorf("scenario id 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[scenarioID]; ok && db != nil {
		return db, s.dbPath(scenarioID), nil
	}
	path := s.dbPath(scenarioID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db, scenarioID); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	s.dbs[scenarioID] = db
	return db, path, nil
}

func (s *Store) dbPath(scenarioID string) string {
	return filepath.Join(s.root, "bars", scenarioID+".db")
}

// ImportBars 批量写入剧本 K 线（重复 open_time 将被覆盖）。
func (s *Store) ImportBars(ctx context.Context, scenarioID, symbol, timeframe string, bars []market.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	db, _, err := s.db(scenarioID)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(open_time) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if err := s.refreshManifest(ctx, db, symbol, timeframe); err != nil {
		return count, err
	}
	return count, nil
}

// ListBars 返回剧本全部 K 线（按 open_time ASC）。
func (s *Store) ListBars(ctx context.Context, scenarioID string) ([]market.Bar, error) {
	db, _, err := s.db(scenarioID)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, open, high, low, close, volume
		FROM bars ORDER BY open_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []market.Bar
	for rows.Next() {
		var b market.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// RangeBars 返回 start~end 范围内的 K 线（开盘时间闭区间）。
func (s *Store) RangeBars(ctx context.Context, scenarioID string, start, end int64) ([]market.Bar, error) {
	if start > 0 && end > 0 && end < start {
		start, end = end, start
	}
	if start <= 0 || end <= 0 {
		return nil, fmt.Errorf("start/end 需 > 0")
	}
	db, _, err := s.db(scenarioID)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, open, high, low, close, volume
		FROM bars
		WHERE open_time BETWEEN ? AND ?
		ORDER BY open_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []market.Bar
	for rows.Next() {
		var b market.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

func (s *Store) Manifest(ctx context.Context, scenarioID string) (Manifest, error) {
	db, path, err := s.db(scenarioID)
	if err != nil {
		return Manifest{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT scenario_id,symbol,timeframe,min_time,max_time,rows,imported_at FROM manifest WHERE id=1`)
	var m Manifest
	if err := row.Scan(&m.ScenarioID, &m.Symbol, &m.Timeframe, &m.MinTime, &m.MaxTime, &m.Rows, &m.ImportedAt); err != nil {
		return Manifest{}, err
	}
	m.Path = path
	return m, nil
}

func (s *Store) refreshManifest(ctx context.Context, db *sql.DB, symbol, timeframe string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE manifest
		SET symbol = ?,
		    timeframe = ?,
		    min_time = (SELECT COALESCE(MIN(open_time), 0) FROM bars),
		    max_time = (SELECT COALESCE(MAX(open_time), 0) FROM bars),
		    rows = (SELECT COUNT(1) FROM bars),
		    imported_at = ?
		WHERE id = 1`, strings.ToUpper(symbol), strings.ToLower(timeframe), now)
	return err
}

func ensureSchema(db *sql.DB, scenarioID string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			open_time INTEGER PRIMARY KEY,
			open      REAL NOT NULL,
			high      REAL NOT NULL,
			low       REAL NOT NULL,
			close     REAL NOT NULL,
			volume    REAL NOT NULL,
			inserted_at INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000)
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id=1),
			scenario_id TEXT NOT NULL,
			symbol TEXT NOT NULL DEFAULT '',
			timeframe TEXT NOT NULL DEFAULT '',
			min_time INTEGER,
			max_time INTEGER,
			rows INTEGER DEFAULT 0,
			imported_at INTEGER
		);`,
		`INSERT INTO manifest (id, scenario_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET scenario_id=excluded.scenario_id;`,
	}
	for i, stmt := range stmts {
		var err error
		if i == len(stmts)-1 {
			_, err = db.Exec(stmt, scenarioID)
		} else {
			_, err = db.Exec(stmt)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
