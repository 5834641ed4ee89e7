package flowstore

import (
	"sync"

	"packetlens/pkg/model"
)

// DefaultCapacity 默认容量上限
const DefaultCapacity = 5000

// Store 有界的抓包记录存储，按插入顺序保存，超出容量从头部 FIFO 淘汰
// 记录插入后不再修改
type Store struct {
	mu    sync.RWMutex
	cap   int
	items []model.FlowRecord
}

// New 创建指定容量的存储
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{cap: capacity}
}

// Append 追加一条记录，超出容量时淘汰最旧的记录
func (s *Store) Append(rec model.FlowRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, rec)
	if drop := len(s.items) - s.cap; drop > 0 {
		s.items = append(s.items[:0], s.items[drop:]...)
	}
}

// All 返回插入顺序的稳定快照
func (s *Store) All() []model.FlowRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FlowRecord, len(s.items))
	copy(out, s.items)
	return out
}

// Get 按 ID 查找记录
func (s *Store) Get(id string) (model.FlowRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.items {
		if s.items[i].ID == id {
			return s.items[i], true
		}
	}
	return model.FlowRecord{}, false
}

// Load 整体替换存储内容，导入用；超出容量时只保留最新的记录
func (s *Store) Load(recs []model.FlowRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if drop := len(recs) - s.cap; drop > 0 {
		recs = recs[drop:]
	}
	s.items = append(s.items[:0:0], recs...)
}

// Clear 清空存储
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// Len 当前记录数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
