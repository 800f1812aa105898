package extension

import (
	"reflect"
	"sort"
	"sync"
)

// SchemeManager 扩展类型注册表。整个宿主进程共享一个实例。
type SchemeManager interface {
	// Register 以原型值（如 &Todo{}）注册扩展类型
	Register(ext Extension) error
	// Get 按原型的类型查找 Scheme，未注册时返回 nil
	Get(ext Extension) *Scheme
	// Unregister 注销 Scheme；scheme 为 nil 时返回 ErrNilScheme
	Unregister(scheme *Scheme) error
	// Fetch 按 GVK 查找 Scheme
	Fetch(gvk GroupVersionKind) (*Scheme, bool)
	// FetchByPlural 按 group/version/plural 查找 Scheme
	FetchByPlural(group, version, plural string) (*Scheme, bool)
	// List 返回所有已注册 Scheme 的快照
	List() []*Scheme
	// AddWatcher 订阅注册/注销事件
	AddWatcher(w Watcher)
}

// EventType Scheme变更事件类型
type EventType string

const (
	SchemeRegistered   EventType = "registered"
	SchemeUnregistered EventType = "unregistered"
)

// Event Scheme变更事件
type Event struct {
	Type   EventType
	Scheme *Scheme
}

// Watcher 接收Scheme变更事件
type Watcher interface {
	OnChange(event Event)
}

// WatcherFunc 函数形式的Watcher
type WatcherFunc func(event Event)

// OnChange 实现Watcher接口
func (f WatcherFunc) OnChange(event Event) { f(event) }

// DefaultSchemeManager 基于内存的SchemeManager实现
type DefaultSchemeManager struct {
	mu       sync.RWMutex
	byGVK    map[GroupVersionKind]*Scheme
	byType   map[reflect.Type]*Scheme
	watchers []Watcher
}

// NewSchemeManager 创建Scheme注册表
func NewSchemeManager() *DefaultSchemeManager {
	return &DefaultSchemeManager{
		byGVK:  make(map[GroupVersionKind]*Scheme),
		byType: make(map[reflect.Type]*Scheme),
	}
}

// Register 注册扩展类型
func (m *DefaultSchemeManager) Register(ext Extension) error {
	scheme, err := BuildScheme(ext)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.byGVK[scheme.GVK]; exists {
		m.mu.Unlock()
		return ErrSchemeDuplicated.WithMessage("scheme %s already registered", scheme.GVK)
	}
	if _, exists := m.byType[scheme.Type]; exists {
		m.mu.Unlock()
		return ErrSchemeDuplicated.WithMessage("type %s already registered", scheme.Type)
	}
	m.byGVK[scheme.GVK] = scheme
	m.byType[scheme.Type] = scheme
	watchers := m.snapshotWatchers()
	m.mu.Unlock()

	notify(watchers, Event{Type: SchemeRegistered, Scheme: scheme})
	return nil
}

// Get 按原型类型查找
func (m *DefaultSchemeManager) Get(ext Extension) *Scheme {
	if ext == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byType[typeOf(ext)]
}

// Unregister 注销扩展类型
func (m *DefaultSchemeManager) Unregister(scheme *Scheme) error {
	if scheme == nil {
		return ErrNilScheme
	}

	m.mu.Lock()
	registered, exists := m.byGVK[scheme.GVK]
	if !exists {
		m.mu.Unlock()
		return ErrSchemeNotFound.WithMessage("scheme %s not found", scheme.GVK)
	}
	delete(m.byGVK, registered.GVK)
	delete(m.byType, registered.Type)
	watchers := m.snapshotWatchers()
	m.mu.Unlock()

	notify(watchers, Event{Type: SchemeUnregistered, Scheme: registered})
	return nil
}

// Fetch 按GVK查找
func (m *DefaultSchemeManager) Fetch(gvk GroupVersionKind) (*Scheme, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	scheme, ok := m.byGVK[gvk]
	return scheme, ok
}

// FetchByPlural 按 group/version/plural 查找，供HTTP路由使用
func (m *DefaultSchemeManager) FetchByPlural(group, version, plural string) (*Scheme, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, scheme := range m.byGVK {
		if scheme.GVK.Group == group && scheme.GVK.Version == version && scheme.Plural == plural {
			return scheme, true
		}
	}
	return nil, false
}

// List 列出已注册类型，按GVK排序
func (m *DefaultSchemeManager) List() []*Scheme {
	m.mu.RLock()
	schemes := make([]*Scheme, 0, len(m.byGVK))
	for _, scheme := range m.byGVK {
		schemes = append(schemes, scheme)
	}
	m.mu.RUnlock()

	sort.Slice(schemes, func(i, j int) bool {
		return schemes[i].GVK.String() < schemes[j].GVK.String()
	})
	return schemes
}

// AddWatcher 添加事件订阅者
func (m *DefaultSchemeManager) AddWatcher(w Watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, w)
}

func (m *DefaultSchemeManager) snapshotWatchers() []Watcher {
	watchers := make([]Watcher, len(m.watchers))
	copy(watchers, m.watchers)
	return watchers
}

// 回调在锁外执行，watcher 可回调 SchemeManager
func notify(watchers []Watcher, event Event) {
	for _, w := range watchers {
		w.OnChange(event)
	}
}

var _ SchemeManager = (*DefaultSchemeManager)(nil)
