// Package extension 提供宿主的扩展类型注册表(SchemeManager)与扩展对象的存取。
//
// 插件通过 SchemeManager 注册自己的数据类型；注册后宿主即可
// 通过 Client 持久化和查询该类型的实例。
package extension

import (
	"fmt"
	"strings"
	"time"
)

// GroupVersionKind 唯一标识一种扩展类型
type GroupVersionKind struct {
	Group   string `json:"group"`
	Version string `json:"version"`
	Kind    string `json:"kind"`
}

// GroupVersion 返回 apiVersion 形式，例如 todo.guqing.github.io/v1alpha1
func (g GroupVersionKind) GroupVersion() string {
	if g.Group == "" {
		return g.Version
	}
	return g.Group + "/" + g.Version
}

func (g GroupVersionKind) String() string {
	return g.GroupVersion() + ", Kind=" + g.Kind
}

// ParseAPIVersion 将 apiVersion 与 kind 解析为 GroupVersionKind
func ParseAPIVersion(apiVersion, kind string) (GroupVersionKind, error) {
	if apiVersion == "" {
		return GroupVersionKind{}, fmt.Errorf("apiVersion is empty")
	}
	parts := strings.Split(apiVersion, "/")
	switch len(parts) {
	case 1:
		return GroupVersionKind{Version: parts[0], Kind: kind}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return GroupVersionKind{}, fmt.Errorf("invalid apiVersion %q", apiVersion)
		}
		return GroupVersionKind{Group: parts[0], Version: parts[1], Kind: kind}, nil
	default:
		return GroupVersionKind{}, fmt.Errorf("invalid apiVersion %q", apiVersion)
	}
}

// Metadata 扩展对象元数据
type Metadata struct {
	Name              string            `json:"name" validate:"required"`
	Labels            map[string]string `json:"labels,omitempty"`
	Annotations       map[string]string `json:"annotations,omitempty"`
	Version           *int64            `json:"version,omitempty"`
	CreationTimestamp *time.Time        `json:"creationTimestamp,omitempty"`
	DeletionTimestamp *time.Time        `json:"deletionTimestamp,omitempty"`
}

// Extension 所有可注册的扩展类型都需实现此接口
type Extension interface {
	GroupVersionKind() GroupVersionKind
	GetMetadata() *Metadata
}

// ResourceNamer 可选接口，自定义复数/单数资源名
type ResourceNamer interface {
	Plural() string
	Singular() string
}

// TypeMeta 序列化时携带的 apiVersion 与 kind，扩展类型可内嵌
type TypeMeta struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
}

// SetGroupVersionKind 写入 apiVersion 与 kind
func (t *TypeMeta) SetGroupVersionKind(gvk GroupVersionKind) {
	t.APIVersion = gvk.GroupVersion()
	t.Kind = gvk.Kind
}

// typeSetter 由内嵌 TypeMeta 的扩展类型自动实现
type typeSetter interface {
	SetGroupVersionKind(gvk GroupVersionKind)
}

func stampType(ext Extension, gvk GroupVersionKind) {
	if ts, ok := ext.(typeSetter); ok {
		ts.SetGroupVersionKind(gvk)
	}
}
