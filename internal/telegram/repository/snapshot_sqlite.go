package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSnapshotStore 以 SQLite 表保存集合快照（payload 为 JSON 文本）
type SQLiteSnapshotStore struct {
	conn *sql.DB
	path string
}

// NewSQLiteSnapshotStore 打开（或创建）dataDir 下的 task_bot.db
func NewSQLiteSnapshotStore(dataDir string) (*SQLiteSnapshotStore, error) {
	if err := os.MkdirAll(dataDir, defaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "task_bot.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// 单写者
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	store := &SQLiteSnapshotStore{conn: conn, path: dbPath}
	if err := store.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteSnapshotStore) initSchema() error {
	_, err := s.conn.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
	name TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`)
	return err
}

// Load 读取集合快照
func (s *SQLiteSnapshotStore) Load(ctx context.Context, name string, out any) (bool, error) {
	var payload string
	err := s.conn.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot %s: %w", name, err)
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("%w: snapshot %s: %v", ErrDecodeFailed, name, err)
	}
	return true, nil
}

// Save 整体替换集合快照
func (s *SQLiteSnapshotStore) Save(ctx context.Context, name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncodeFailed, name, err)
	}

	_, err = s.conn.ExecContext(ctx, `
INSERT INTO snapshots (name, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		name, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *SQLiteSnapshotStore) Close(ctx context.Context) error {
	return s.conn.Close()
}

// Ping 检查数据库连接
func (s *SQLiteSnapshotStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}
