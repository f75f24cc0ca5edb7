// internal/storage/store.go
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound 表示文档不存在
var ErrNotFound = errors.New("document not found")

// ErrInvalidID 表示文档ID不能作为存储键使用
var ErrInvalidID = errors.New("invalid document id")

// Store 是按集合组织的JSON文档存储。
// 每次调用只是一次独立的读或写，跨调用的读改写不加锁，后写者覆盖先写者。
type Store interface {
	// Get 读取文档并解码到 v，不存在时返回 ErrNotFound
	Get(collection, id string, v interface{}) error
	// Put 编码 v 并整体覆盖文档
	Put(collection, id string, v interface{}) error
	// List 返回集合中所有文档ID，按字典序排列
	List(collection string) ([]string, error)
	// Delete 删除文档，不存在时返回 ErrNotFound
	Delete(collection, id string) error
	// Exists 检查文档是否存在
	Exists(collection, id string) bool
	// Close 释放底层资源
	Close() error
}

// Open 按后端名称打开存储，支持 file 与 sqlite
func Open(backend, dataDir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "file":
		store, err := NewFileStorage(dataDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		store, err := OpenSQLite(dataDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("未知的存储后端: %s", backend)
	}
}

// validateKey 确保集合名和ID可以安全地用作文件名
func validateKey(collection, id string) error {
	for _, part := range []string{collection, id} {
		if part == "" || part == "." || part == ".." ||
			strings.ContainsAny(part, `/\`) || strings.ContainsRune(part, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidID, part)
		}
	}
	return nil
}
