package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/aihub/plugin-hello-world/internal/config"
	"github.com/aihub/plugin-hello-world/internal/database"
	"github.com/aihub/plugin-hello-world/internal/di"
	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
	"github.com/aihub/plugin-hello-world/internal/extension"
	"github.com/aihub/plugin-hello-world/internal/logger"
	"github.com/aihub/plugin-hello-world/internal/plugins"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	config   *config.Config
	loader   *config.ConfigLoader
	schemes  extension.SchemeManager
	client   *extension.Client
	manager  *plugins.PluginManager
	health   *database.HealthChecker
	registry *prometheus.Registry
	monitor  *apperrors.ErrorMonitor
}

// Config returns the loaded configuration
func (a *App) Config() *config.Config { return a.config }

// Schemes returns the extension scheme registry
func (a *App) Schemes() extension.SchemeManager { return a.schemes }

// Client returns the extension client
func (a *App) Client() *extension.Client { return a.client }

// PluginManager returns the plugin manager
func (a *App) PluginManager() *plugins.PluginManager { return a.manager }

// Health returns the store health checker, nil for the memory store
func (a *App) Health() *database.HealthChecker { return a.health }

// Registry returns the prometheus registry served on /metrics
func (a *App) Registry() *prometheus.Registry { return a.registry }

// ErrorMonitor returns the monitor counting errors returned to clients
func (a *App) ErrorMonitor() *apperrors.ErrorMonitor { return a.monitor }

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger, the extension store and the plugin
// manager required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	loader := config.NewConfigLoader()
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	// Initialize structured logger.
	if err := logger.InitLogger(cfg.Server.Env, cfg.Log.Level); err != nil {
		return nil, err
	}

	app, err := build(cfg)
	if err != nil {
		return nil, err
	}
	app.loader = loader
	app.watchConfig()

	return app, nil
}

// build resolves the shared components from a fresh container.
func build(cfg *config.Config) (*App, error) {
	di.InitContainer()
	if err := di.RegisterProviders(cfg); err != nil {
		return nil, err
	}

	app := &App{config: cfg}
	err := di.Invoke(func(
		schemes extension.SchemeManager,
		client *extension.Client,
		manager *plugins.PluginManager,
		health *database.HealthChecker,
		registry *prometheus.Registry,
		monitor *apperrors.ErrorMonitor,
	) {
		app.schemes = schemes
		app.client = client
		app.manager = manager
		app.health = health
		app.registry = registry
		app.monitor = monitor
	})
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Provider {
	case "postgres":
		app.cleanupTasks = append(app.cleanupTasks, database.CloseDB)
	case "redis":
		app.cleanupTasks = append(app.cleanupTasks, database.CloseRedis)
	}

	app.startHealth(cfg.Store.WaitTimeout)

	logger.Info("Application initialized",
		zap.String("env", cfg.Server.Env),
		zap.String("store", cfg.Store.Provider))
	return app, nil
}

// startHealth runs the store health checker in the background and waits up
// to timeout for the first healthy result. An unhealthy store does not stop
// startup; /health reports it as DOWN.
func (a *App) startHealth(timeout time.Duration) {
	if a.health == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	go a.health.Start(ctx)
	a.cleanupTasks = append(a.cleanupTasks, func() error {
		cancel()
		return nil
	})

	if timeout <= 0 {
		return
	}
	if err := a.health.WaitForHealthy(ctx, timeout); err != nil {
		logger.Warn("Store not healthy at startup",
			zap.String("store", a.health.GetHealthResult().Name),
			zap.Duration("waited", timeout),
			zap.Error(err))
	}
}

// watchConfig re-applies the log level when config.yaml changes. Other
// settings need a restart.
func (a *App) watchConfig() {
	if a.loader == nil {
		return
	}
	a.loader.RegisterCallback(func(oldConfig, newConfig *config.Config) error {
		if oldConfig != nil && oldConfig.Log.Level == newConfig.Log.Level {
			return nil
		}
		if err := logger.SetLevel(newConfig.Log.Level); err != nil {
			logger.Warn("Ignoring invalid log level", zap.Error(err))
			return err
		}
		logger.Info("Log level updated", zap.String("level", newConfig.Log.Level))
		return nil
	})
	if err := a.loader.StartWatching(); err != nil {
		logger.Info("Config hot reload disabled", zap.String("reason", err.Error()))
	}
}

// Shutdown stops all plugins, then closes resources gracefully.
func (a *App) Shutdown() {
	if a.manager != nil {
		if err := a.manager.StopAll(); err != nil {
			logger.Warn("Failed to stop plugins", zap.Error(err))
		}
	}

	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Warn("Cleanup error", zap.Error(err))
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
