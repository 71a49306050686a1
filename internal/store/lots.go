package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"infinite-buy/internal/config"
	"infinite-buy/internal/strategy"
)

// LotStore 持久化在持批次快照，供次日运行恢复策略中段状态。
type LotStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLotStore 初始化批次快照存储。
func NewLotStore(store *Store, logger *zap.Logger) (*LotStore, error) {
	if store == nil {
		return nil, fmt.Errorf("store: 底层存储不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &LotStore{db: store.DB(), logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LotStore) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS lot_snapshots (
	symbol TEXT NOT NULL,
	lot_id INTEGER NOT NULL,
	buy_date TEXT NOT NULL,
	buy_price REAL NOT NULL,
	quantity INTEGER NOT NULL,
	days_held INTEGER NOT NULL,
	saved_at TEXT NOT NULL,
	PRIMARY KEY (symbol, lot_id)
);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化批次快照表失败: %w", err)
	}
	return nil
}

// SaveLots 覆盖写入某一标的的全部在持批次。删除与写入在同一事务内完成，
// 避免中途失败留下半份快照。
func (s *LotStore) SaveLots(ctx context.Context, symbol string, lots []strategy.Lot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lot_snapshots WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("store: 清理旧批次快照失败: %w", err)
	}

	savedAt := time.Now().UTC().Format(time.RFC3339)
	for _, lot := range lots {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO lot_snapshots (symbol, lot_id, buy_date, buy_price, quantity, days_held, saved_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			symbol, lot.ID, lot.BuyDate.Format(config.DateLayout),
			lot.BuyPrice, lot.Quantity, lot.DaysHeld, savedAt,
		); err != nil {
			return fmt.Errorf("store: 写入批次快照失败 (lot %d): %w", lot.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: 提交批次快照失败: %w", err)
	}

	s.logger.Info("批次快照已保存",
		zap.String("symbol", symbol),
		zap.Int("lots", len(lots)),
	)
	return nil
}

// LoadLots 按批次ID升序读取某一标的的在持批次。
func (s *LotStore) LoadLots(ctx context.Context, symbol string) ([]strategy.Lot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT lot_id, buy_date, buy_price, quantity, days_held
FROM lot_snapshots
WHERE symbol = ?
ORDER BY lot_id`, symbol)
	if err != nil {
		return nil, fmt.Errorf("store: 查询批次快照失败: %w", err)
	}
	defer rows.Close()

	var lots []strategy.Lot
	for rows.Next() {
		var (
			lot     strategy.Lot
			dateStr string
		)
		if err := rows.Scan(&lot.ID, &dateStr, &lot.BuyPrice, &lot.Quantity, &lot.DaysHeld); err != nil {
			return nil, fmt.Errorf("store: 读取批次快照失败: %w", err)
		}
		lot.BuyDate, err = time.Parse(config.DateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("store: 解析批次买入日期 %q 失败: %w", dateStr, err)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历批次快照失败: %w", err)
	}

	return lots, nil
}
