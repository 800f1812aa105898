// Package sdk 供插件作者内嵌的基础实现
package sdk

import (
	"github.com/aihub/plugin-hello-world/internal/plugins"
)

// BasePlugin 插件基础实现，持有宿主传入的 PluginWrapper，生命周期默认为空操作
type BasePlugin struct {
	wrapper *plugins.PluginWrapper
}

// NewBasePlugin 创建基础插件
func NewBasePlugin(wrapper *plugins.PluginWrapper) *BasePlugin {
	return &BasePlugin{wrapper: wrapper}
}

// Wrapper 返回宿主传入的插件包装
func (p *BasePlugin) Wrapper() *plugins.PluginWrapper {
	return p.wrapper
}

// Start 启用插件（子类可重写）
func (p *BasePlugin) Start() error {
	return nil
}

// Stop 停止插件（子类可重写）
func (p *BasePlugin) Stop() error {
	return nil
}

// Delete 卸载插件（子类可重写）
func (p *BasePlugin) Delete() error {
	return nil
}

var _ plugins.Plugin = (*BasePlugin)(nil)
