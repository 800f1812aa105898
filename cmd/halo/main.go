package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aihub/plugin-hello-world/app/bootstrap"
	"github.com/aihub/plugin-hello-world/app/controllers"
	"github.com/aihub/plugin-hello-world/app/middleware"
	"github.com/aihub/plugin-hello-world/app/router"
	"github.com/aihub/plugin-hello-world/internal/logger"
	"github.com/aihub/plugin-hello-world/internal/plugins"
	"github.com/aihub/plugin-hello-world/internal/todo"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// builtinPlugins 随宿主编译的插件
var builtinPlugins = []struct {
	descriptor plugins.PluginDescriptor
	factory    plugins.PluginFactory
}{
	{todo.Descriptor, todo.NewPlugin},
}

var _ controllers.Services = (*bootstrap.App)(nil)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	bootstrap.SetGlobalApp(app)

	cfg := app.Config()
	manager := app.PluginManager()

	for _, builtin := range builtinPlugins {
		if err := manager.Install(builtin.descriptor, "", builtin.factory); err != nil {
			logger.Error("Failed to install builtin plugin",
				zap.String("plugin", builtin.descriptor.ID), zap.Error(err))
		}
	}
	if cfg.Plugins.AutoDiscover {
		if err := manager.DiscoverAndLoad(); err != nil {
			logger.Warn("Plugin discovery failed", zap.Error(err))
		}
	}
	if err := manager.StartAll(); err != nil {
		logger.Warn("Some plugins failed to start", zap.Error(err))
	}

	controllers.SetServices(app)
	if err := router.Init(middleware.NewMiddlewareManager(logger.GetLogger(), app.Registry())); err != nil {
		log.Fatalf("failed to register routes: %v", err)
	}

	// 配置Beego全局设置
	web.BConfig.AppName = "halo-plugin-host"
	web.BConfig.CopyRequestBody = true
	web.BConfig.MaxMemory = 1 << 26 // 64MB for plugin uploads
	if port, err := strconv.Atoi(cfg.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}
	if cfg.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}

	logger.Info("Starting plugin host",
		zap.Int("http_port", web.BConfig.Listen.HTTPPort),
		zap.Int("plugins", len(manager.ListPlugins())))

	go web.Run()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	// 先停插件，再关闭HTTP服务和存储连接
	if err := manager.StopAll(); err != nil {
		logger.Warn("Failed to stop plugins", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if server := web.BeeApp.Server; server != nil {
		if err := server.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
			logger.Warn("HTTP server shutdown error", zap.Error(err))
		}
	}
	app.Shutdown()
}
