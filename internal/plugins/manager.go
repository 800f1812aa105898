package plugins

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/aihub/plugin-hello-world/internal/extension"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// PluginManager 插件管理器，负责驱动插件生命周期
type PluginManager struct {
	// 串行化所有生命周期调用
	mu sync.Mutex

	registry *PluginRegistry
	loader   *PluginLoader
	schemes  extension.SchemeManager
	metrics  *Metrics
	logger   *zap.Logger
	validate *validator.Validate
	config   ManagerConfig
}

// ManagerConfig 管理器配置
type ManagerConfig struct {
	PluginDir    string // 插件目录（.xpkg）
	TempDir      string // 解压目录
	AutoDiscover bool   // 创建时自动发现并安装插件

	// OpenFactory 打开插件二进制并返回工厂，为空时使用 Go plugin
	OpenFactory func(path string) (PluginFactory, error)
}

// NewPluginManager 创建插件管理器
func NewPluginManager(config ManagerConfig, schemes extension.SchemeManager, metrics *Metrics, logger *zap.Logger) (*PluginManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	// 创建目录
	for _, dir := range []string{config.PluginDir, config.TempDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create plugin dir %s: %w", dir, err)
		}
	}

	loader := NewPluginLoader(config.PluginDir, config.TempDir)
	loader.SetFactoryOpener(config.OpenFactory)

	manager := &PluginManager{
		registry: NewPluginRegistry(),
		loader:   loader,
		schemes:  schemes,
		metrics:  metrics,
		logger:   logger.Named("plugin"),
		validate: validator.New(),
		config:   config,
	}

	// 自动发现和安装插件
	if config.AutoDiscover && config.PluginDir != "" {
		if err := manager.DiscoverAndLoad(); err != nil {
			manager.logger.Warn("Failed to discover plugins", zap.Error(err))
		}
	}

	return manager, nil
}

// Install 以构造函数安装插件，构造只调用工厂，不触发生命周期
func (m *PluginManager) Install(descriptor PluginDescriptor, path string, factory PluginFactory) error {
	if factory == nil {
		return fmt.Errorf("plugin %s: factory is nil", descriptor.ID)
	}
	if err := m.validate.Struct(descriptor); err != nil {
		return fmt.Errorf("invalid plugin descriptor: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.registry.Get(descriptor.ID); err == nil {
		return ErrPluginDuplicated.WithMessage("plugin %s already installed", descriptor.ID)
	}

	wrapper := NewPluginWrapper(descriptor, path)
	plugin := factory(wrapper, m.schemes)
	if plugin == nil {
		return fmt.Errorf("plugin %s: factory returned nil", descriptor.ID)
	}
	if err := m.registry.Register(wrapper, plugin); err != nil {
		return err
	}
	m.metrics.setState(descriptor.ID, StateCreated)

	m.logger.Info("Plugin installed",
		zap.String("plugin", descriptor.ID),
		zap.String("version", descriptor.Version))
	return nil
}

// DiscoverAndLoad 发现并安装插件目录中的所有 .xpkg
func (m *PluginManager) DiscoverAndLoad() error {
	pluginFiles, err := m.loader.DiscoverPlugins()
	if err != nil {
		return fmt.Errorf("failed to discover plugins: %w", err)
	}

	m.logger.Info("Discovered plugin packages", zap.Int("count", len(pluginFiles)))

	for _, xpkgPath := range pluginFiles {
		if err := m.LoadPlugin(xpkgPath); err != nil {
			m.logger.Warn("Failed to load plugin", zap.String("path", xpkgPath), zap.Error(err))
			continue
		}
	}

	return nil
}

// LoadPlugin 加载并安装单个 .xpkg 插件包
func (m *PluginManager) LoadPlugin(xpkgPath string) error {
	result, err := m.loader.LoadPlugin(xpkgPath)
	if err != nil {
		return fmt.Errorf("failed to load plugin: %w", err)
	}

	// ExtractDir 为本次加载独占，安装失败时只清理它
	if err := m.Install(result.Descriptor, result.ExtractDir, result.Factory); err != nil {
		os.RemoveAll(result.ExtractDir)
		return err
	}
	return nil
}

// StartPlugin 启动插件
func (m *PluginManager) StartPlugin(pluginID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(pluginID)
}

// StopPlugin 停止插件
func (m *PluginManager) StopPlugin(pluginID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(pluginID)
}

// ReloadPlugin 重启插件（已启动时先停止）
func (m *PluginManager) ReloadPlugin(pluginID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.registry.Get(pluginID)
	if err != nil {
		return err
	}
	if entry.State == StateStarted {
		if err := m.stopLocked(pluginID); err != nil {
			return err
		}
	}
	return m.startLocked(pluginID)
}

// DeletePlugin 卸载插件，已启动时先停止
func (m *PluginManager) DeletePlugin(pluginID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.registry.Get(pluginID)
	if err != nil {
		return err
	}
	if entry.State == StateStarted {
		if err := m.stopLocked(pluginID); err != nil {
			return err
		}
	}

	err = entry.Plugin.Delete()
	m.metrics.observeCall(pluginID, "delete", err)
	if err != nil {
		m.registry.UpdateState(pluginID, StateFailed, err)
		m.metrics.setState(pluginID, StateFailed)
		return fmt.Errorf("plugin %s: delete: %w", pluginID, err)
	}

	m.registry.UpdateState(pluginID, StateDeleted, nil)
	m.metrics.setState(pluginID, StateDeleted)
	if err := m.registry.Unregister(pluginID); err != nil {
		return err
	}

	// 清理解压目录
	if path := entry.Wrapper.PluginPath(); path != "" {
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn("Failed to remove plugin dir", zap.String("plugin", pluginID), zap.Error(err))
		}
	}

	m.logger.Info("Plugin deleted", zap.String("plugin", pluginID))
	return nil
}

// StartAll 按安装顺序启动所有未启动的插件
func (m *PluginManager) StartAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, entry := range m.registry.List() {
		if entry.State == StateStarted {
			continue
		}
		if err := m.startLocked(entry.Descriptor.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopAll 按安装逆序停止所有已启动的插件
func (m *PluginManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.registry.List()
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].State != StateStarted {
			continue
		}
		if err := m.stopLocked(entries[i].Descriptor.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetPlugin 获取插件条目
func (m *PluginManager) GetPlugin(pluginID string) (PluginEntry, error) {
	return m.registry.Get(pluginID)
}

// ListPlugins 列出所有插件
func (m *PluginManager) ListPlugins() []PluginEntry {
	return m.registry.List()
}

// PluginDir 返回 .xpkg 所在目录
func (m *PluginManager) PluginDir() string {
	return m.config.PluginDir
}

func (m *PluginManager) startLocked(pluginID string) error {
	entry, err := m.registry.Get(pluginID)
	if err != nil {
		return err
	}
	if entry.State == StateStarted {
		return ErrInvalidState.WithMessage("plugin %s is already started", pluginID)
	}

	err = entry.Plugin.Start()
	m.metrics.observeCall(pluginID, "start", err)
	if err != nil {
		m.registry.UpdateState(pluginID, StateFailed, err)
		m.metrics.setState(pluginID, StateFailed)
		m.logger.Error("Plugin failed to start", zap.String("plugin", pluginID), zap.Error(err))
		return fmt.Errorf("plugin %s: start: %w", pluginID, err)
	}

	m.registry.UpdateState(pluginID, StateStarted, nil)
	m.metrics.setState(pluginID, StateStarted)
	m.logger.Info("Plugin started", zap.String("plugin", pluginID))
	return nil
}

func (m *PluginManager) stopLocked(pluginID string) error {
	entry, err := m.registry.Get(pluginID)
	if err != nil {
		return err
	}
	if entry.State != StateStarted {
		return ErrInvalidState.WithMessage("plugin %s is not started (state: %s)", pluginID, entry.State)
	}

	err = entry.Plugin.Stop()
	m.metrics.observeCall(pluginID, "stop", err)
	if err != nil {
		m.registry.UpdateState(pluginID, StateFailed, err)
		m.metrics.setState(pluginID, StateFailed)
		m.logger.Error("Plugin failed to stop", zap.String("plugin", pluginID), zap.Error(err))
		return fmt.Errorf("plugin %s: stop: %w", pluginID, err)
	}

	m.registry.UpdateState(pluginID, StateStopped, nil)
	m.metrics.setState(pluginID, StateStopped)
	m.logger.Info("Plugin stopped", zap.String("plugin", pluginID))
	return nil
}
