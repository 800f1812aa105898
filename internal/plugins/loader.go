package plugins

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"plugin"
	"runtime"
	"strings"

	"github.com/aihub/plugin-hello-world/internal/extension"
)

// 插件包内的固定文件名
const (
	manifestFile = "manifest.json"
	binaryFile   = "plugin.so"
	factorySym   = "NewPlugin"
)

// PluginLoader 插件加载器
type PluginLoader struct {
	pluginDir string
	tempDir   string

	// 打开 .so 并返回工厂，测试可替换
	openFactory func(path string) (PluginFactory, error)
}

// NewPluginLoader 创建插件加载器
func NewPluginLoader(pluginDir, tempDir string) *PluginLoader {
	return &PluginLoader{
		pluginDir:   pluginDir,
		tempDir:     tempDir,
		openFactory: openSharedObject,
	}
}

// SetFactoryOpener 替换 .so 打开方式，nil 时恢复为 Go plugin
func (l *PluginLoader) SetFactoryOpener(open func(path string) (PluginFactory, error)) {
	if open == nil {
		open = openSharedObject
	}
	l.openFactory = open
}

// LoadPluginResult 插件加载结果
type LoadPluginResult struct {
	Descriptor PluginDescriptor
	Factory    PluginFactory
	ExtractDir string
}

// LoadPlugin 加载xpkg插件包
// 解压目录在插件卸载前必须保留，.so 需要持续存在
func (l *PluginLoader) LoadPlugin(xpkgPath string) (*LoadPluginResult, error) {
	// 1. 解压xpkg文件
	extractDir, err := l.extractXpkg(xpkgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract xpkg: %w", err)
	}

	// 2. 读取manifest.json
	descriptor, err := LoadDescriptorFromManifest(filepath.Join(extractDir, manifestFile))
	if err != nil {
		os.RemoveAll(extractDir)
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	// 3. 验证校验和（如果提供）
	if descriptor.Checksum != "" {
		if err := verifyChecksum(filepath.Join(extractDir, binaryFile), descriptor.Checksum); err != nil {
			os.RemoveAll(extractDir)
			return nil, fmt.Errorf("checksum verification failed: %w", err)
		}
	}

	// 4. 加载插件二进制
	pluginPath := filepath.Join(extractDir, binaryFile)
	if _, err := os.Stat(pluginPath); os.IsNotExist(err) {
		os.RemoveAll(extractDir)
		return nil, fmt.Errorf("plugin binary not found (%s)", binaryFile)
	}

	factory, err := l.openFactory(pluginPath)
	if err != nil {
		os.RemoveAll(extractDir)
		return nil, err
	}

	return &LoadPluginResult{
		Descriptor: *descriptor,
		Factory:    factory,
		ExtractDir: extractDir,
	}, nil
}

// openSharedObject 通过Go plugin打开 .so 并查找 NewPlugin
func openSharedObject(path string) (PluginFactory, error) {
	p, err := plugin.Open(path)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Exec format error") ||
			strings.Contains(errMsg, "bad ELF class") ||
			strings.Contains(errMsg, "incompatible") {
			return nil, fmt.Errorf("插件架构不匹配 (当前运行环境: %s/%s)，插件必须使用与宿主相同的Go版本和依赖编译: %w",
				runtime.GOOS, runtime.GOARCH, err)
		}
		return nil, fmt.Errorf("failed to open plugin: %w", err)
	}

	sym, err := p.Lookup(factorySym)
	if err != nil {
		return nil, fmt.Errorf("plugin symbol '%s' not found: %w", factorySym, err)
	}

	// 导出函数既可以是函数值也可以是函数变量
	switch fn := sym.(type) {
	case func(*PluginWrapper, extension.SchemeManager) Plugin:
		return fn, nil
	case *func(*PluginWrapper, extension.SchemeManager) Plugin:
		return *fn, nil
	case *PluginFactory:
		return *fn, nil
	default:
		return nil, fmt.Errorf("plugin symbol '%s' has wrong type %T", factorySym, sym)
	}
}

// extractXpkg 解压xpkg文件
// 每次解压使用新目录，同名包重复加载不会覆盖已安装插件的文件
func (l *PluginLoader) extractXpkg(xpkgPath string) (string, error) {
	if l.tempDir != "" {
		if err := os.MkdirAll(l.tempDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create temp dir: %w", err)
		}
	}
	pattern := fmt.Sprintf("plugin_%s_*", strings.TrimSuffix(filepath.Base(xpkgPath), ".xpkg"))
	extractDir, err := os.MkdirTemp(l.tempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	r, err := zip.OpenReader(xpkgPath)
	if err != nil {
		os.RemoveAll(extractDir)
		return "", fmt.Errorf("failed to open xpkg: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractFile(extractDir, f); err != nil {
			os.RemoveAll(extractDir)
			return "", err
		}
	}

	return extractDir, nil
}

func extractFile(extractDir string, f *zip.File) error {
	path := filepath.Join(extractDir, f.Name)

	// 防止路径遍历
	if !strings.HasPrefix(path, filepath.Clean(extractDir)+string(os.PathSeparator)) {
		return fmt.Errorf("invalid file path: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(path, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create dir: %w", err)
	}

	outFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer outFile.Close()

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip file: %w", err)
	}
	defer rc.Close()

	if _, err := io.Copy(outFile, rc); err != nil {
		return fmt.Errorf("failed to extract file: %w", err)
	}
	return nil
}

// ExtractXpkg 公开的解压方法
func (l *PluginLoader) ExtractXpkg(xpkgPath string) (string, error) {
	return l.extractXpkg(xpkgPath)
}

// verifyChecksum 验证文件校验和
func verifyChecksum(filePath, expectedChecksum string) error {
	actual, err := FileChecksum(filePath)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expectedChecksum) {
		return fmt.Errorf("checksum mismatch: expected=%s, actual=%s", expectedChecksum, actual)
	}
	return nil
}

// FileChecksum 计算文件的SHA256
func FileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// DiscoverPlugins 发现插件目录中的所有插件
func (l *PluginLoader) DiscoverPlugins() ([]string, error) {
	if _, err := os.Stat(l.pluginDir); os.IsNotExist(err) {
		return nil, nil
	}

	var plugins []string
	err := filepath.Walk(l.pluginDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(path, ".xpkg") {
			plugins = append(plugins, path)
		}

		return nil
	})

	return plugins, err
}
