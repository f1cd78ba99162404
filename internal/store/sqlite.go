package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"rqe/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily (
	day TEXT PRIMARY KEY,
	trades INTEGER NOT NULL,
	realized_pnl_usd REAL NOT NULL,
	halted INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	mode TEXT NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty REAL NOT NULL,
	price REAL NOT NULL,
	fee REAL NOT NULL,
	pnl REAL NOT NULL,
	slippage_bps REAL NOT NULL DEFAULT 0,
	client_order_id TEXT NOT NULL DEFAULT '',
	note TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fills_ts ON fills(ts);
`

// Store 封装 SQLite 连接，负责日度聚合与成交流水。
type Store struct {
	db *sqlx.DB
}

// NewSQLite 根据配置初始化 SQLite 存储并完成建表。
func NewSQLite(cfg config.DatabaseConfig) (*Store, error) {
	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	} else {
		if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
	}

	conn, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 数据库失败: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if cfg.InMemory || maxOpen <= 0 {
		// 内存库每个连接都是独立数据库
		maxOpen = 1
	}
	maxIdle := cfg.MaxIdleConns
	lifetime := cfg.ConnMaxLifetime
	if cfg.InMemory {
		// 连接关闭即丢失数据
		maxIdle = 1
		lifetime = 0
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxIdle)
	conn.SetConnMaxLifetime(lifetime)

	if !cfg.InMemory {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("设置 SQLite WAL 模式失败: %w", err)
		}
	}

	if _, err := conn.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite 同步级别失败: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	return &Store{db: conn}, nil
}

// DB 返回底层 *sql.DB，供监控事件等模块共享连接。
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("创建目录 %q 失败: %w", path, err)
	}
	return nil
}
