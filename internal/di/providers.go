package di

import (
	"fmt"

	"github.com/aihub/plugin-hello-world/internal/config"
	"github.com/aihub/plugin-hello-world/internal/database"
	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
	"github.com/aihub/plugin-hello-world/internal/extension"
	"github.com/aihub/plugin-hello-world/internal/logger"
	"github.com/aihub/plugin-hello-world/internal/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// StoreResult 扩展存储及其健康检查，内存存储没有健康检查
type StoreResult struct {
	dig.Out

	Store  extension.Store
	Health *database.HealthChecker
}

// RegisterProviders 向当前容器注册所有依赖提供者
func RegisterProviders(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	providers := []interface{}{
		// 配置
		func() *config.Config { return cfg },

		// 日志
		func() *zap.Logger { return logger.GetLogger() },
		newHealthLogger,

		// 指标
		newRegistry,
		func(reg *prometheus.Registry) *plugins.Metrics { return plugins.NewMetrics(reg) },
		func(reg *prometheus.Registry) *apperrors.ErrorMonitor { return apperrors.NewErrorMonitor(reg) },

		// 扩展
		newSchemeManager,
		newStore,
		extension.NewClient,

		// 插件
		newPluginManager,
	}

	for _, provider := range providers {
		if err := Provide(provider); err != nil {
			return err
		}
	}
	return nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newHealthLogger 健康检查使用logrus输出JSON
func newHealthLogger(cfg *config.Config) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		l.SetLevel(level)
	}
	return l
}

func newSchemeManager(metrics *plugins.Metrics) extension.SchemeManager {
	schemes := extension.NewSchemeManager()
	metrics.WatchSchemes(schemes)
	return schemes
}

// newStore 根据 store.provider 选择存储实现
func newStore(cfg *config.Config, reg *prometheus.Registry, healthLogger *logrus.Logger) (StoreResult, error) {
	switch cfg.Store.Provider {
	case "postgres":
		db, err := database.InitDB(cfg.Database)
		if err != nil {
			return StoreResult{}, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return StoreResult{}, err
		}
		if err := reg.Register(database.NewPoolCollector(sqlDB)); err != nil {
			return StoreResult{}, err
		}
		return StoreResult{
			Store:  extension.NewGormStore(db),
			Health: database.NewHealthChecker("postgres", database.SQLPinger(sqlDB), healthLogger),
		}, nil

	case "redis":
		rdb, err := database.InitRedis(cfg.Redis)
		if err != nil {
			return StoreResult{}, err
		}
		prefix := cfg.Redis.KeyPrefix
		if prefix != "" {
			prefix += ":"
		}
		return StoreResult{
			Store:  extension.NewRedisStore(rdb, prefix),
			Health: database.NewHealthChecker("redis", database.RedisPinger(rdb), healthLogger),
		}, nil

	case "memory", "":
		return StoreResult{Store: extension.NewMemoryStore()}, nil

	default:
		return StoreResult{}, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

func newPluginManager(cfg *config.Config, schemes extension.SchemeManager, metrics *plugins.Metrics, log *zap.Logger) (*plugins.PluginManager, error) {
	return plugins.NewPluginManager(plugins.ManagerConfig{
		PluginDir:    cfg.Plugins.Dir,
		TempDir:      cfg.Plugins.TempDir,
		AutoDiscover: false, // 发现在 main 中显式触发，先安装内置插件
	}, schemes, metrics, log)
}
