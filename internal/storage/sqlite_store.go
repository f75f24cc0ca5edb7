// internal/storage/sqlite_store.go
package storage

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

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
)`

// 单条语句的超时时间
const sqliteOpTimeout = 10 * time.Second

// SQLiteStore 把所有集合放进同一张 documents 表，语义与 FileStorage 相同
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite 在 dataDir 下打开 personachat.db
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return OpenSQLitePath(filepath.Join(dataDir, "personachat.db"))
}

// OpenSQLitePath 打开指定路径的数据库并建表
func OpenSQLitePath(path string) (*SQLiteStore, error) {
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), sqliteOpTimeout)
}

// Put 插入或覆盖文档
func (s *SQLiteStore) Put(collection, id string, v interface{}) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	ctx, cancel := opContext()
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		collection, id, string(body), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get 读取文档
func (s *SQLiteStore) Get(collection, id string, v interface{}) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}

	ctx, cancel := opContext()
	defer cancel()

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("解析JSON失败 %s/%s: %w", collection, id, err)
	}
	return nil
}

// List 返回集合中的全部ID
func (s *SQLiteStore) List(collection string) ([]string, error) {
	if err := validateKey(collection, "_"); err != nil {
		return nil, err
	}

	ctx, cancel := opContext()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("list documents %s: %w", collection, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete 删除文档
func (s *SQLiteStore) Delete(collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}

	ctx, cancel := opContext()
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// Exists 检查文档是否存在
func (s *SQLiteStore) Exists(collection, id string) bool {
	if validateKey(collection, id) != nil {
		return false
	}

	ctx, cancel := opContext()
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&one)
	return err == nil
}

// Close 关闭数据库连接
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
