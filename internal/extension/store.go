package extension

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// ExtensionStore 扩展对象的持久化记录
type ExtensionStore struct {
	Name    string `gorm:"column:name;primaryKey;size:255" json:"name"`
	Data    []byte `gorm:"column:data" json:"data"`
	Version int64  `gorm:"column:version;not null" json:"version"`
}

// TableName 指定表名
func (ExtensionStore) TableName() string {
	return "extension_stores"
}

// Store 扩展存储接口
type Store interface {
	// Create 新建记录，version 被置为1
	Create(ctx context.Context, name string, data []byte) (*ExtensionStore, error)
	// Update 更新记录，version 必须与当前一致，成功后version+1
	Update(ctx context.Context, name string, version int64, data []byte) (*ExtensionStore, error)
	// Delete 删除记录，version 为0时不校验版本
	Delete(ctx context.Context, name string, version int64) error
	Get(ctx context.Context, name string) (*ExtensionStore, error)
	// List 按名称前缀列出，结果按名称排序
	List(ctx context.Context, prefix string) ([]*ExtensionStore, error)
}

// MemoryStore 内存存储，默认实现
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*ExtensionStore
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*ExtensionStore)}
}

func (s *MemoryStore) Create(_ context.Context, name string, data []byte) (*ExtensionStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[name]; exists {
		return nil, ErrAlreadyExists.WithMessage("extension %s already exists", name)
	}
	record := &ExtensionStore{Name: name, Data: cloneBytes(data), Version: 1}
	s.records[name] = record
	return cloneRecord(record), nil
}

func (s *MemoryStore) Update(_ context.Context, name string, version int64, data []byte) (*ExtensionStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[name]
	if !exists {
		return nil, ErrExtensionMissing.WithMessage("extension %s not found", name)
	}
	if record.Version != version {
		return nil, ErrVersionConflict.WithMessage("extension %s version conflict: expected %d, got %d", name, record.Version, version)
	}
	record.Data = cloneBytes(data)
	record.Version++
	return cloneRecord(record), nil
}

func (s *MemoryStore) Delete(_ context.Context, name string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[name]
	if !exists {
		return ErrExtensionMissing.WithMessage("extension %s not found", name)
	}
	if version != 0 && record.Version != version {
		return ErrVersionConflict.WithMessage("extension %s version conflict: expected %d, got %d", name, record.Version, version)
	}
	delete(s.records, name)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) (*ExtensionStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[name]
	if !exists {
		return nil, ErrExtensionMissing.WithMessage("extension %s not found", name)
	}
	return cloneRecord(record), nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]*ExtensionStore, error) {
	s.mu.RLock()
	records := make([]*ExtensionStore, 0)
	for name, record := range s.records {
		if strings.HasPrefix(name, prefix) {
			records = append(records, cloneRecord(record))
		}
	}
	s.mu.RUnlock()

	sortRecords(records)
	return records, nil
}

func sortRecords(records []*ExtensionStore) {
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneRecord(r *ExtensionStore) *ExtensionStore {
	return &ExtensionStore{Name: r.Name, Data: cloneBytes(r.Data), Version: r.Version}
}

var _ Store = (*MemoryStore)(nil)
