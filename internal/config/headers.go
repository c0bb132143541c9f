package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/spf13/viper"
)

const (
	DefaultConfigFile = "configs/headers.yaml"

	// MaxConfigFileSize 超过则拒绝加载,Cookie 再长也到不了1MB
	MaxConfigFileSize = 1 << 20
)

//go:embed headers_template.yaml
var defaultHeaderTemplate string

// EngineResolver 把 engines 下的节名解析为引擎名,未知引擎返回错误
type EngineResolver func(name string) (string, error)

// HeaderConfigLoader 读取 headers.yaml
type HeaderConfigLoader struct {
	configPath string
	resolve    EngineResolver
}

func NewHeaderConfigLoader(configPath string) *HeaderConfigLoader {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return &HeaderConfigLoader{configPath: configPath}
}

// WithEngineResolver 启用 engines 节名检查,别名 (如 ya) 会被合并到正式引擎名下
func (hcl *HeaderConfigLoader) WithEngineResolver(resolve EngineResolver) *HeaderConfigLoader {
	hcl.resolve = resolve
	return hcl
}

// Path 实际读取的文件
func (hcl *HeaderConfigLoader) Path() string {
	return hcl.configPath
}

// EnsureConfigExists 文件不存在时写出带注释的模板
func (hcl *HeaderConfigLoader) EnsureConfigExists() error {
	_, err := os.Stat(hcl.configPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}

	if err := os.MkdirAll(filepath.Dir(hcl.configPath), 0755); err != nil {
		return fmt.Errorf("创建头部配置目录失败: %w", err)
	}
	if err := os.WriteFile(hcl.configPath, []byte(defaultHeaderTemplate), 0644); err != nil {
		return fmt.Errorf("生成头部配置模板失败: %w", err)
	}
	return nil
}

// ValidateFileSize 拒绝超过 MaxConfigFileSize 的文件
func (hcl *HeaderConfigLoader) ValidateFileSize() error {
	info, err := os.Stat(hcl.configPath)
	if err != nil {
		return &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}
	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    fmt.Errorf("文件大小 %d 字节,超过上限 %d", info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}

// LoadConfig 读取并解析头部配置
// 首次运行时生成模板,模板中没有任何生效的头部
func (hcl *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	if err := hcl.EnsureConfigExists(); err != nil {
		return nil, err
	}
	if err := hcl.ValidateFileSize(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(hcl.configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}

	var cfg models.HeaderConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	engines, err := hcl.normalizeEngines(cfg.Engines)
	if err != nil {
		return nil, &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}
	cfg.Engines = engines
	return &cfg, nil
}

// normalizeEngines 节名转小写并解析别名,同一引擎出现多个节时合并
func (hcl *HeaderConfigLoader) normalizeEngines(raw map[string]map[string]string) (map[string]map[string]string, error) {
	result := make(map[string]map[string]string, len(raw))
	for name, headers := range raw {
		key := strings.ToLower(strings.TrimSpace(name))
		if hcl.resolve != nil {
			resolved, err := hcl.resolve(key)
			if err != nil {
				return nil, fmt.Errorf("engines.%s: %w", name, err)
			}
			key = resolved
		}
		if result[key] == nil {
			result[key] = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			result[key][k] = v
		}
	}
	return result, nil
}
