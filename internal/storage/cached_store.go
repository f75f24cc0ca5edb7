// internal/storage/cached_store.go
package storage

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// CachedStore 在任意 Store 之上缓存已编码的文档。
// 只有经过它写入的变更会使缓存失效，绕过它修改底层数据要等条目过期。
type CachedStore struct {
	Store

	cache      map[string]*cacheEntry
	mutex      sync.Mutex
	maxSize    int           // 最大缓存条目数
	expiration time.Duration // 缓存过期时间
}

type cacheEntry struct {
	data      []byte
	createdAt time.Time
	lastRead  time.Time
}

// NewCachedStore 包装底层存储
func NewCachedStore(inner Store, maxSize int, expiration time.Duration) *CachedStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}

	return &CachedStore{
		Store:      inner,
		cache:      make(map[string]*cacheEntry),
		maxSize:    maxSize,
		expiration: expiration,
	}
}

func cacheKey(collection, id string) string {
	return collection + "/" + id
}

// Get 优先从缓存解码，未命中时读底层存储并缓存
func (s *CachedStore) Get(collection, id string, v interface{}) error {
	key := cacheKey(collection, id)

	s.mutex.Lock()
	entry, ok := s.cache[key]
	if ok && time.Since(entry.createdAt) > s.expiration {
		delete(s.cache, key)
		ok = false
	}
	if ok {
		entry.lastRead = time.Now()
	}
	s.mutex.Unlock()

	if ok {
		return json.Unmarshal(entry.data, v)
	}

	if err := s.Store.Get(collection, id, v); err != nil {
		return err
	}
	s.remember(key, v)
	return nil
}

// Put 写入底层存储并刷新缓存
func (s *CachedStore) Put(collection, id string, v interface{}) error {
	if err := s.Store.Put(collection, id, v); err != nil {
		s.forget(cacheKey(collection, id))
		return err
	}
	s.remember(cacheKey(collection, id), v)
	return nil
}

// Delete 删除文档并移除缓存
func (s *CachedStore) Delete(collection, id string) error {
	s.forget(cacheKey(collection, id))
	return s.Store.Delete(collection, id)
}

// Exists 缓存命中时不访问底层存储
func (s *CachedStore) Exists(collection, id string) bool {
	s.mutex.Lock()
	entry, ok := s.cache[cacheKey(collection, id)]
	fresh := ok && time.Since(entry.createdAt) <= s.expiration
	s.mutex.Unlock()

	return fresh || s.Store.Exists(collection, id)
}

// Len 返回当前缓存条目数
func (s *CachedStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.cache)
}

// ClearCache 清空缓存
func (s *CachedStore) ClearCache() {
	s.mutex.Lock()
	s.cache = make(map[string]*cacheEntry)
	s.mutex.Unlock()
}

func (s *CachedStore) remember(key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	now := time.Now()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cache[key] = &cacheEntry{data: data, createdAt: now, lastRead: now}
	if len(s.cache) > s.maxSize {
		s.cleanupLRU(max(1, s.maxSize/5))
	}
}

func (s *CachedStore) forget(key string) {
	s.mutex.Lock()
	delete(s.cache, key)
	s.mutex.Unlock()
}

// cleanupLRU 删除最久未读的条目，调用方需持有锁
func (s *CachedStore) cleanupLRU(count int) {
	type keyAge struct {
		key  string
		time time.Time
	}

	entries := make([]keyAge, 0, len(s.cache))
	for k, v := range s.cache {
		entries = append(entries, keyAge{k, v.lastRead})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].time.Before(entries[j].time)
	})

	for i := 0; i < min(count, len(entries)); i++ {
		delete(s.cache, entries[i].key)
	}
}

