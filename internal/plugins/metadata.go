package plugins

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
)

var descriptorValidator = validator.New()

// LoadDescriptorFromManifest 从manifest.json加载插件描述
func LoadDescriptorFromManifest(manifestPath string) (*PluginDescriptor, error) {
	file, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	return ParseDescriptor(file)
}

// ParseDescriptor 解析并校验插件描述
func ParseDescriptor(r io.Reader) (*PluginDescriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var descriptor PluginDescriptor
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	// 验证必需字段
	if err := descriptorValidator.Struct(descriptor); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	return &descriptor, nil
}
