package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"infinite-buy/internal/config"
	"infinite-buy/internal/market"
	"infinite-buy/internal/report"
)

// PriceStore 维护本地日线行情缓存。
type PriceStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPriceStore 初始化行情缓存，创建所需表结构。
func NewPriceStore(store *Store, logger *zap.Logger) (*PriceStore, error) {
	if store == nil {
		return nil, fmt.Errorf("store: 底层存储不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &PriceStore{db: store.DB(), logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PriceStore) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS prices (
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume INTEGER,
	PRIMARY KEY (symbol, date)
);
CREATE INDEX IF NOT EXISTS idx_prices_date ON prices(symbol, date);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化行情表失败: %w", err)
	}
	return nil
}

// SavePrices 以覆盖方式写入日线数据。
func (s *PriceStore) SavePrices(ctx context.Context, symbol string, bars []market.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO prices (symbol, date, open, high, low, close, volume)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: 预编译写入语句失败: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx,
			symbol,
			bar.Date.Format(config.DateLayout),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		); err != nil {
			return fmt.Errorf("store: 写入行情失败 (%s): %w", bar.Date.Format(config.DateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: 提交行情事务失败: %w", err)
	}

	s.logger.Debug("行情缓存已更新",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
	)
	return nil
}

// GetPrices 返回闭区间内按日期升序的日线序列，OHLC 对齐到 0.01 美元。
// 区间内没有数据时返回空序列。
func (s *PriceStore) GetPrices(ctx context.Context, symbol string, start, end time.Time) (market.Series, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT date, open, high, low, close, COALESCE(volume, 0)
FROM prices
WHERE symbol = ? AND date BETWEEN ? AND ?
ORDER BY date`,
		symbol,
		start.Format(config.DateLayout),
		end.Format(config.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("store: 查询行情失败: %w", err)
	}
	defer rows.Close()

	var series market.Series
	for rows.Next() {
		var (
			dateStr string
			bar     market.PriceBar
		)
		if err := rows.Scan(&dateStr, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("store: 读取行情行失败: %w", err)
		}
		bar.Date, err = time.Parse(config.DateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("store: 解析行情日期 %q 失败: %w", dateStr, err)
		}
		bar.Open = report.RoundToCents(bar.Open)
		bar.High = report.RoundToCents(bar.High)
		bar.Low = report.RoundToCents(bar.Low)
		bar.Close = report.RoundToCents(bar.Close)
		series = append(series, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历行情结果失败: %w", err)
	}

	return series, nil
}
