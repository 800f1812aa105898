package controllers

import (
	"github.com/aihub/plugin-hello-world/internal/database"
	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
	"github.com/aihub/plugin-hello-world/internal/extension"
	"github.com/aihub/plugin-hello-world/internal/plugins"
	"github.com/prometheus/client_golang/prometheus"
)

// Services 控制器依赖的宿主组件，由 bootstrap.App 实现
type Services interface {
	Schemes() extension.SchemeManager
	Client() *extension.Client
	PluginManager() *plugins.PluginManager
	Health() *database.HealthChecker
	Registry() *prometheus.Registry
	ErrorMonitor() *apperrors.ErrorMonitor
}

var services Services

// SetServices 注入宿主组件，在注册路由前调用
func SetServices(s Services) {
	services = s
}
