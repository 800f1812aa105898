// Package todo 是 hello-world 示例插件：启动时向宿主注册 Todo 类型，停止时注销。
package todo

import (
	"github.com/aihub/plugin-hello-world/internal/extension"
)

// GVK Todo 的类型标识
var GVK = extension.GroupVersionKind{
	Group:   "todo.guqing.github.io",
	Version: "v1alpha1",
	Kind:    "Todo",
}

// TodoSpec Todo 内容
type TodoSpec struct {
	Title string `json:"title" validate:"required"`
	Done  bool   `json:"done,omitempty"`
}

// Todo 插件注册的扩展类型
type Todo struct {
	extension.TypeMeta

	Metadata extension.Metadata `json:"metadata"`
	Spec     TodoSpec           `json:"spec"`
}

// GroupVersionKind 实现 extension.Extension
func (t *Todo) GroupVersionKind() extension.GroupVersionKind {
	return GVK
}

// GetMetadata 实现 extension.Extension
func (t *Todo) GetMetadata() *extension.Metadata {
	return &t.Metadata
}

// Plural 资源复数名
func (t *Todo) Plural() string {
	return "todos"
}

// Singular 资源单数名
func (t *Todo) Singular() string {
	return "todo"
}

var (
	_ extension.Extension     = (*Todo)(nil)
	_ extension.ResourceNamer = (*Todo)(nil)
)
