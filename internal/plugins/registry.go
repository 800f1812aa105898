package plugins

import (
	"sort"
	"sync"
	"time"

	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
)

// 插件相关错误
var (
	ErrPluginNotFound   = apperrors.NewBusinessError(apperrors.ErrCodePluginNotFound, "plugin not found")
	ErrPluginDuplicated = apperrors.NewBusinessError(apperrors.ErrCodeConflict, "plugin already installed")
	ErrInvalidState     = apperrors.NewBusinessError(apperrors.ErrCodeInvalidState, "invalid plugin state")
)

// PluginEntry 插件注册表条目
type PluginEntry struct {
	Plugin      Plugin           `json:"-"`
	Wrapper     *PluginWrapper   `json:"-"`
	Descriptor  PluginDescriptor `json:"descriptor"`
	State       PluginState      `json:"state"`
	Error       string           `json:"error,omitempty"`
	InstalledAt int64            `json:"installed_at"`
	StartedAt   int64            `json:"started_at,omitempty"`

	seq int
}

// PluginRegistry 插件注册表
type PluginRegistry struct {
	mu      sync.RWMutex
	plugins map[string]*PluginEntry // plugin_id -> entry
	nextSeq int
}

// NewPluginRegistry 创建插件注册表
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		plugins: make(map[string]*PluginEntry),
	}
}

// Register 注册插件
func (r *PluginRegistry) Register(wrapper *PluginWrapper, plugin Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pluginID := wrapper.PluginID()

	// 检查是否已注册
	if _, exists := r.plugins[pluginID]; exists {
		return ErrPluginDuplicated.WithMessage("plugin %s already installed", pluginID)
	}

	r.nextSeq++
	r.plugins[pluginID] = &PluginEntry{
		Plugin:      plugin,
		Wrapper:     wrapper,
		Descriptor:  wrapper.Descriptor(),
		State:       wrapper.State(),
		InstalledAt: time.Now().Unix(),
		seq:         r.nextSeq,
	}

	return nil
}

// Unregister 注销插件
func (r *PluginRegistry) Unregister(pluginID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[pluginID]; !exists {
		return ErrPluginNotFound.WithMessage("plugin %s not found", pluginID)
	}
	delete(r.plugins, pluginID)

	return nil
}

// Get 获取插件条目快照
func (r *PluginRegistry) Get(pluginID string) (PluginEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.plugins[pluginID]
	if !exists {
		return PluginEntry{}, ErrPluginNotFound.WithMessage("plugin %s not found", pluginID)
	}

	return *entry, nil
}

// List 按安装顺序列出所有插件
func (r *PluginRegistry) List() []PluginEntry {
	r.mu.RLock()
	entries := make([]PluginEntry, 0, len(r.plugins))
	for _, entry := range r.plugins {
		entries = append(entries, *entry)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

// UpdateState 更新插件状态
func (r *PluginRegistry) UpdateState(pluginID string, state PluginState, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.plugins[pluginID]
	if !exists {
		return ErrPluginNotFound.WithMessage("plugin %s not found", pluginID)
	}

	entry.State = state
	entry.Wrapper.setState(state)
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Error = ""
	}
	if state == StateStarted {
		entry.StartedAt = time.Now().Unix()
	}

	return nil
}
