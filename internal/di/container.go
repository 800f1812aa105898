// Package di 组装宿主组件。bootstrap 通过 InitContainer 重建容器，
// 再用 RegisterProviders 注册构造函数，最后以 Invoke 取出所需组件。
package di

import (
	"errors"

	"go.uber.org/dig"
)

var errNotInitialized = errors.New("di container not initialized")

// container 当前进程使用的容器
var container *dig.Container

// InitContainer 创建新容器并替换当前容器，之前注册的提供者全部丢弃
func InitContainer() {
	container = dig.New()
}

// Provide 向当前容器注册构造函数
func Provide(constructor interface{}, opts ...dig.ProvideOption) error {
	if container == nil {
		return errNotInitialized
	}
	return container.Provide(constructor, opts...)
}

// Invoke 从当前容器解析参数并调用 function，组件按类型单例
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	if container == nil {
		return errNotInitialized
	}
	return container.Invoke(function, opts...)
}
