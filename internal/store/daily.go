package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("store: record not found")

const dayLayout = "2006-01-02"

// DailyState 为单个 UTC 自然日的交易聚合。
type DailyState struct {
	Day            string  `db:"day" json:"day"`
	Trades         int     `db:"trades" json:"trades"`
	RealizedPnLUSD float64 `db:"realized_pnl_usd" json:"realized_pnl_usd"`
	Halted         bool    `db:"halted" json:"halted"`
}

// DayKey 返回 ts 所在 UTC 自然日的主键。
func DayKey(ts time.Time) string {
	return ts.UTC().Format(dayLayout)
}

// LoadDailyState 读取指定日的聚合，不存在时以零值创建。
func (s *Store) LoadDailyState(ctx context.Context, day string) (DailyState, error) {
	var state DailyState

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return state, fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily (day, trades, realized_pnl_usd, halted) VALUES (?, 0, 0, 0)`,
		day,
	); err != nil {
		return state, fmt.Errorf("store: 初始化日度记录失败: %w", err)
	}

	if err = tx.GetContext(ctx, &state,
		`SELECT day, trades, realized_pnl_usd, halted FROM daily WHERE day = ?`, day,
	); err != nil {
		return state, fmt.Errorf("store: 查询日度记录失败: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return state, fmt.Errorf("store: 提交事务失败: %w", err)
	}

	return state, nil
}

// GetDailyState 只读查询指定日的聚合。
func (s *Store) GetDailyState(ctx context.Context, day string) (DailyState, error) {
	var state DailyState
	err := s.db.GetContext(ctx, &state,
		`SELECT day, trades, realized_pnl_usd, halted FROM daily WHERE day = ?`, day,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return DailyState{Day: day}, ErrNotFound
	}
	if err != nil {
		return state, fmt.Errorf("store: 查询日度记录失败: %w", err)
	}
	return state, nil
}

// SaveDailyState 按日主键覆盖写入聚合，多次写入同一状态结果一致。
func (s *Store) SaveDailyState(ctx context.Context, state DailyState) error {
	if state.Day == "" {
		return errors.New("store: day 不能为空")
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO daily (day, trades, realized_pnl_usd, halted)
		 VALUES (:day, :trades, :realized_pnl_usd, :halted)
		 ON CONFLICT(day) DO UPDATE SET
			trades = excluded.trades,
			realized_pnl_usd = excluded.realized_pnl_usd,
			halted = excluded.halted`,
		state,
	)
	if err != nil {
		return fmt.Errorf("store: 写入日度记录失败: %w", err)
	}
	return nil
}

// SaveDailyProgress 只更新成交次数与已实现盈亏，保留停机标记不变，
// 避免覆盖周期执行期间通过控制接口设置的停机。
func (s *Store) SaveDailyProgress(ctx context.Context, day string, trades int, pnl float64) error {
	if day == "" {
		return errors.New("store: day 不能为空")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily (day, trades, realized_pnl_usd, halted) VALUES (?, ?, ?, 0)
		 ON CONFLICT(day) DO UPDATE SET
			trades = excluded.trades,
			realized_pnl_usd = excluded.realized_pnl_usd`,
		day, trades, pnl,
	)
	if err != nil {
		return fmt.Errorf("store: 写入日度进度失败: %w", err)
	}
	return nil
}

// SetHalted 只修改指定日的停机标记，记录不存在时先创建。
func (s *Store) SetHalted(ctx context.Context, day string, halted bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily (day, trades, realized_pnl_usd, halted) VALUES (?, 0, 0, 0)`,
		day,
	); err != nil {
		return fmt.Errorf("store: 初始化日度记录失败: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE daily SET halted = ? WHERE day = ?`, halted, day); err != nil {
		return fmt.Errorf("store: 更新停机标记失败: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: 提交事务失败: %w", err)
	}
	return nil
}
