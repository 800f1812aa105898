package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aihub/plugin-hello-world/internal/logger"
	"github.com/aihub/plugin-hello-world/internal/plugins"
	"go.uber.org/zap"
)

// PluginController 插件生命周期接口
type PluginController struct {
	BaseController
}

func (c *PluginController) manager() *plugins.PluginManager {
	return services.PluginManager()
}

// pluginID 读取路径参数 :id
func (c *PluginController) pluginID() (string, bool) {
	pluginID := c.Ctx.Input.Param(":id")
	if pluginID == "" {
		c.JSONError(http.StatusBadRequest, "plugin id is required")
		return "", false
	}
	return pluginID, true
}

// List GET /api/plugins - 列出所有插件
func (c *PluginController) List() {
	c.JSONSuccess(map[string]interface{}{
		"plugins": c.manager().ListPlugins(),
	})
}

// Get GET /api/plugins/:id
func (c *PluginController) Get() {
	pluginID, ok := c.pluginID()
	if !ok {
		return
	}

	entry, err := c.manager().GetPlugin(pluginID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(entry)
}

// Start POST /api/plugins/:id/start - 启动插件
func (c *PluginController) Start() {
	c.transition("start", c.manager().StartPlugin)
}

// Stop POST /api/plugins/:id/stop - 停止插件
func (c *PluginController) Stop() {
	c.transition("stop", c.manager().StopPlugin)
}

// Reload POST /api/plugins/:id/reload - 重新加载插件
func (c *PluginController) Reload() {
	c.transition("reload", c.manager().ReloadPlugin)
}

// Delete DELETE /api/plugins/:id - 删除插件
func (c *PluginController) Delete() {
	pluginID, ok := c.pluginID()
	if !ok {
		return
	}

	if err := c.manager().DeletePlugin(pluginID); err != nil {
		c.JSONAppError(err)
		return
	}

	logger.Info("Plugin deleted via API", zap.String("plugin", pluginID))
	c.JSONSuccess(map[string]interface{}{
		"plugin_id": pluginID,
		"message":   "plugin deleted",
	})
}

// transition 执行一次状态迁移并返回迁移后的条目
func (c *PluginController) transition(action string, fn func(string) error) {
	pluginID, ok := c.pluginID()
	if !ok {
		return
	}

	if err := fn(pluginID); err != nil {
		c.JSONAppError(err)
		return
	}

	entry, err := c.manager().GetPlugin(pluginID)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	logger.Info("Plugin lifecycle via API",
		zap.String("plugin", pluginID),
		zap.String("action", action),
		zap.String("state", string(entry.State)))
	c.JSONSuccess(entry)
}

// Upload POST /api/plugins/upload - 上传 .xpkg 并安装（不自动启动）
func (c *PluginController) Upload() {
	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if filepath.Ext(header.Filename) != ".xpkg" {
		c.JSONError(http.StatusBadRequest, "only .xpkg packages are supported")
		return
	}

	pluginDir := c.manager().PluginDir()
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		c.JSONError(http.StatusInternalServerError, fmt.Sprintf("failed to create plugin dir: %v", err))
		return
	}

	// 先写入临时文件，安装成功后才替换正式包，避免覆盖已安装插件的包
	filename := filepath.Base(header.Filename)
	dst, err := os.CreateTemp(pluginDir, filename+".*.part")
	if err != nil {
		c.JSONError(http.StatusInternalServerError, fmt.Sprintf("failed to create file: %v", err))
		return
	}
	tmpPath := dst.Name()
	_, err = io.Copy(dst, file)
	dst.Close()
	if err != nil {
		os.Remove(tmpPath)
		c.JSONError(http.StatusInternalServerError, fmt.Sprintf("failed to save file: %v", err))
		return
	}

	if err := c.manager().LoadPlugin(tmpPath); err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, plugins.ErrPluginDuplicated) {
			c.JSONAppError(err)
			return
		}
		c.JSONError(http.StatusBadRequest, fmt.Sprintf("failed to load plugin: %v", err))
		return
	}

	if err := os.Rename(tmpPath, filepath.Join(pluginDir, filename)); err != nil {
		// 插件已安装，只是下次启动无法自动发现
		logger.Warn("Failed to keep uploaded package", zap.String("file", filename), zap.Error(err))
		os.Remove(tmpPath)
	}

	logger.Info("Plugin uploaded", zap.String("file", header.Filename))
	c.JSONSuccess(map[string]interface{}{
		"filename": header.Filename,
		"message":  "plugin uploaded and installed",
	})
}
