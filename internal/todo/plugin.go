package todo

import (
	"fmt"
	"io"
	"os"

	"github.com/aihub/plugin-hello-world/internal/extension"
	"github.com/aihub/plugin-hello-world/internal/plugins"
	"github.com/aihub/plugin-hello-world/internal/plugins/sdk"
)

// PluginID 插件ID
const PluginID = "plugin-hello-world"

// Descriptor 内置插件的描述
var Descriptor = plugins.PluginDescriptor{
	ID:          PluginID,
	Name:        "Hello World",
	Version:     "1.0.0",
	Description: "注册 Todo 类型的示例插件",
	Author:      "guqing",
	License:     "GPL-3.0",
	Requires:    ">=2.0.0",
}

// HelloWorldPlugin 只在生命周期节点调用宿主的 SchemeManager，错误原样返回
type HelloWorldPlugin struct {
	*sdk.BasePlugin

	schemeManager extension.SchemeManager
	out           io.Writer
}

// Option 插件选项
type Option func(*HelloWorldPlugin)

// WithOutput 替换控制台输出
func WithOutput(w io.Writer) Option {
	return func(p *HelloWorldPlugin) {
		p.out = w
	}
}

// NewHelloWorldPlugin 构造插件，不会调用注册表
func NewHelloWorldPlugin(wrapper *plugins.PluginWrapper, schemeManager extension.SchemeManager, opts ...Option) *HelloWorldPlugin {
	p := &HelloWorldPlugin{
		BasePlugin:    sdk.NewBasePlugin(wrapper),
		schemeManager: schemeManager,
		out:           os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPlugin 满足 plugins.PluginFactory
func NewPlugin(wrapper *plugins.PluginWrapper, schemeManager extension.SchemeManager) plugins.Plugin {
	return NewHelloWorldPlugin(wrapper, schemeManager)
}

// Start 注册 Todo 类型
func (p *HelloWorldPlugin) Start() error {
	if err := p.schemeManager.Register(&Todo{}); err != nil {
		return err
	}
	fmt.Fprintln(p.out, "Hello world 插件启动了!")
	return nil
}

// Stop 查找并注销 Todo 类型。未注册时 Get 返回 nil，
// 由 Unregister 报告 extension.ErrNilScheme。
func (p *HelloWorldPlugin) Stop() error {
	todoScheme := p.schemeManager.Get(&Todo{})
	if err := p.schemeManager.Unregister(todoScheme); err != nil {
		return err
	}
	fmt.Fprintln(p.out, "Hello world 被停止!")
	return nil
}

// Delete 仅输出卸载提示
func (p *HelloWorldPlugin) Delete() error {
	fmt.Fprintln(p.out, "Hello world 被卸载")
	return nil
}

var (
	_ plugins.Plugin        = (*HelloWorldPlugin)(nil)
	_ plugins.PluginFactory = NewPlugin
)
