// internal/storage/file_storage.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStorage 把每个文档保存为 <BaseDir>/<collection>/<id>.json
type FileStorage struct {
	BaseDir string

	// 文件级别锁 path -> *sync.RWMutex，只覆盖单次读或写
	fileLocks sync.Map
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &FileStorage{BaseDir: baseDir}, nil
}

func (s *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := s.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (s *FileStorage) docPath(collection, id string) string {
	return filepath.Join(s.BaseDir, collection, id+".json")
}

// Put 以临时文件加重命名的方式原子写入
func (s *FileStorage) Put(collection, id string, v interface{}) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}

	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	fullPath := s.docPath(collection, id)
	lock := s.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return nil
}

// Get 读取并解析JSON文档
func (s *FileStorage) Get(collection, id string, v interface{}) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}

	fullPath := s.docPath(collection, id)
	lock := s.getFileLock(fullPath)
	lock.RLock()
	content, err := os.ReadFile(fullPath)
	lock.RUnlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("读取文件失败: %w", err)
	}

	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("解析JSON失败 %s/%s: %w", collection, id, err)
	}
	return nil
}

// List 列出集合目录下的全部 .json 文档
func (s *FileStorage) List(collection string) ([]string, error) {
	if err := validateKey(collection, "_"); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.BaseDir, collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete 删除文档
func (s *FileStorage) Delete(collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}

	fullPath := s.docPath(collection, id)
	lock := s.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// Exists 检查文档是否存在
func (s *FileStorage) Exists(collection, id string) bool {
	if validateKey(collection, id) != nil {
		return false
	}
	info, err := os.Stat(s.docPath(collection, id))
	return err == nil && !info.IsDir()
}

// Close 文件存储没有需要释放的资源
func (s *FileStorage) Close() error {
	return nil
}
