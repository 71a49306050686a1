package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// EventType 表示运行日志事件类型。
type EventType string

const (
	EventBacktest    EventType = "backtest"
	EventProjection  EventType = "projection"
	EventOrderSubmit EventType = "order_submit"
	EventPriceUpdate EventType = "price_update"
	EventError       EventType = "error"
)

// Journal 持久化每次运行产生的事件，按运行ID归组。
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewJournal 初始化运行日志，创建所需表结构。
func NewJournal(store *Store, logger *zap.Logger) (*Journal, error) {
	if store == nil {
		return nil, fmt.Errorf("store: 底层存储不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	j := &Journal{db: store.DB(), logger: logger}
	if err := j.initSchema(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS run_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
CREATE INDEX IF NOT EXISTS idx_run_events_type ON run_events(event_type);
`
	if _, err := j.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化运行日志表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (j *Journal) Record(ctx context.Context, runID string, eventType EventType, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("store: 序列化事件失败: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, event_type, payload, created_at) VALUES (?, ?, ?, ?)`,
		runID, string(eventType), string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: 写入事件失败: %w", err)
	}
	return nil
}

// MustRecord 写入事件，失败时仅记录告警，不中断主流程。
func (j *Journal) MustRecord(ctx context.Context, runID string, eventType EventType, payload interface{}) {
	if err := j.Record(ctx, runID, eventType, payload); err != nil {
		j.logger.Warn("记录运行事件失败",
			zap.String("run_id", runID),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

// RecordError 记录异常事件。
func (j *Journal) RecordError(ctx context.Context, runID string, message string, cause error) {
	payload := map[string]interface{}{
		"message": message,
	}
	if cause != nil {
		payload["error"] = cause.Error()
	}
	j.MustRecord(ctx, runID, EventError, payload)
}
