package router

import (
	"github.com/aihub/plugin-hello-world/app/controllers"
	"github.com/aihub/plugin-hello-world/app/middleware"
	"github.com/aihub/plugin-hello-world/internal/logger"
	"github.com/beego/beego/v2/server/web"
)

// Init registers all routes on the default beego app. Must be called after
// controllers.SetServices.
func Init(mm *middleware.MiddlewareManager) error {
	if mm == nil {
		mm = middleware.NewMiddlewareManager(logger.GetLogger(), nil)
	}
	if err := mm.Apply(web.BeeApp.Handlers); err != nil {
		return err
	}
	Routes(web.BeeApp.Handlers)
	return nil
}

// Routes 在指定路由表上注册接口，测试中可传入独立的 ControllerRegister
func Routes(h *web.ControllerRegister) {
	h.Add("/health", &controllers.HealthController{}, web.WithRouterMethods(&controllers.HealthController{}, "get:Health"))
	h.Add("/metrics", &controllers.MetricsController{}, web.WithRouterMethods(&controllers.MetricsController{}, "get:Metrics"))

	// 具体路由必须在参数路由之前，否则 upload 会被 :id 匹配
	pluginController := &controllers.PluginController{}
	h.Add("/api/plugins", pluginController, web.WithRouterMethods(pluginController, "get:List"))
	h.Add("/api/plugins/upload", pluginController, web.WithRouterMethods(pluginController, "post:Upload"))
	h.Add("/api/plugins/:id", pluginController, web.WithRouterMethods(pluginController, "get:Get;delete:Delete"))
	h.Add("/api/plugins/:id/start", pluginController, web.WithRouterMethods(pluginController, "post:Start"))
	h.Add("/api/plugins/:id/stop", pluginController, web.WithRouterMethods(pluginController, "post:Stop"))
	h.Add("/api/plugins/:id/reload", pluginController, web.WithRouterMethods(pluginController, "post:Reload"))

	// /apis/schemes 及所有已注册扩展类型
	h.Add("/apis/*", &controllers.ExtensionController{})
}
