package store

import (
	"context"
	"fmt"
	"time"
)

const tsLayout = "2006-01-02T15:04:05Z"

// FillRecord 为成交流水中的一行，写入后不再修改。
type FillRecord struct {
	ID            int64   `db:"id" json:"id"`
	TS            string  `db:"ts" json:"ts"`
	Mode          string  `db:"mode" json:"mode"`
	Strategy      string  `db:"strategy" json:"strategy"`
	Symbol        string  `db:"symbol" json:"symbol"`
	Side          string  `db:"side" json:"side"`
	Qty           float64 `db:"qty" json:"qty"`
	Price         float64 `db:"price" json:"price"`
	Fee           float64 `db:"fee" json:"fee"`
	PnL           float64 `db:"pnl" json:"pnl"`
	SlippageBps   float64 `db:"slippage_bps" json:"slippage_bps"`
	ClientOrderID string  `db:"client_order_id" json:"client_order_id"`
	Note          string  `db:"note" json:"note"`
}

// Timestamp 格式化成交时间。
func Timestamp(ts time.Time) string {
	return ts.UTC().Format(tsLayout)
}

// AppendFill 追加一条成交流水。
func (s *Store) AppendFill(ctx context.Context, rec FillRecord) error {
	if rec.TS == "" {
		rec.TS = Timestamp(time.Now())
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO fills (ts, mode, strategy, symbol, side, qty, price, fee, pnl, slippage_bps, client_order_id, note)
		 VALUES (:ts, :mode, :strategy, :symbol, :side, :qty, :price, :fee, :pnl, :slippage_bps, :client_order_id, :note)`,
		rec,
	)
	if err != nil {
		return fmt.Errorf("store: 写入成交流水失败: %w", err)
	}
	return nil
}

// ListFills 按写入顺序倒序返回最近的成交。
func (s *Store) ListFills(ctx context.Context, limit int) ([]FillRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	fills := make([]FillRecord, 0, limit)
	if err := s.db.SelectContext(ctx, &fills,
		`SELECT id, ts, mode, strategy, symbol, side, qty, price, fee, pnl, slippage_bps, client_order_id, note
		 FROM fills ORDER BY id DESC LIMIT ?`, limit,
	); err != nil {
		return nil, fmt.Errorf("store: 查询成交流水失败: %w", err)
	}
	return fills, nil
}
