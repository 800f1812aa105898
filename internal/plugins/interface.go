package plugins

import (
	"sync"

	"github.com/aihub/plugin-hello-world/internal/extension"
)

// Plugin 插件生命周期接口，由宿主按顺序调用，不会并发调用同一实例
type Plugin interface {
	// 启用插件（安装/启用时调用）
	Start() error

	// 停止插件（禁用/升级时调用）
	Stop() error

	// 卸载插件
	Delete() error
}

// PluginFactory 插件构造函数，.so 插件需导出同签名的 NewPlugin
type PluginFactory func(wrapper *PluginWrapper, schemes extension.SchemeManager) Plugin

// PluginDescriptor 插件描述（manifest.json）
type PluginDescriptor struct {
	ID          string `json:"id" validate:"required"`          // 插件唯一标识
	Name        string `json:"name" validate:"required"`        // 插件名称
	Version     string `json:"version" validate:"required"`     // 版本号 (semver)
	Description string `json:"description"`                     // 描述
	Author      string `json:"author"`                          // 作者
	License     string `json:"license"`                         // 许可证
	Requires    string `json:"requires,omitempty"`              // 宿主版本要求
	Checksum    string `json:"checksum,omitempty"`              // 插件文件校验和（SHA256）
}

// PluginState 插件状态
type PluginState string

const (
	StateCreated PluginState = "created" // 已创建
	StateStarted PluginState = "started" // 已启动
	StateStopped PluginState = "stopped" // 已停止
	StateFailed  PluginState = "failed"  // 生命周期调用失败
	StateDeleted PluginState = "deleted" // 已卸载
)

// PluginWrapper 宿主为每个插件实例提供的身份与上下文
type PluginWrapper struct {
	descriptor PluginDescriptor
	path       string

	mu    sync.RWMutex
	state PluginState
}

// NewPluginWrapper 创建插件包装
func NewPluginWrapper(descriptor PluginDescriptor, path string) *PluginWrapper {
	return &PluginWrapper{
		descriptor: descriptor,
		path:       path,
		state:      StateCreated,
	}
}

// PluginID 插件ID
func (w *PluginWrapper) PluginID() string {
	return w.descriptor.ID
}

// Descriptor 插件描述
func (w *PluginWrapper) Descriptor() PluginDescriptor {
	return w.descriptor
}

// PluginPath 插件包解压目录，内置插件为空
func (w *PluginWrapper) PluginPath() string {
	return w.path
}

// State 当前状态
func (w *PluginWrapper) State() PluginState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *PluginWrapper) setState(state PluginState) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
}
