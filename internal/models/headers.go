package models

import (
	"fmt"
	"net/http"
	"strings"
)

// HeaderConfig headers.yaml 的内容
// Headers 对所有引擎生效,Engines 按引擎名追加或覆盖
type HeaderConfig struct {
	Headers map[string]string            `mapstructure:"headers" yaml:"headers"`
	Engines map[string]map[string]string `mapstructure:"engines" yaml:"engines"`
}

// ForEngine 返回某个引擎实际使用的文件头部
// viper 会把键名转成小写,这里统一规范化
func (c *HeaderConfig) ForEngine(engine string) http.Header {
	result := make(http.Header)
	for name, value := range c.Headers {
		result.Set(name, value)
	}
	for name, value := range c.Engines[strings.ToLower(engine)] {
		result.Set(name, value)
	}
	return result
}

// CliHeaders -H 参数列表,每项为 "Name: Value"
// 值为空表示从最终请求中去掉该头部
type CliHeaders []string

// Parse 解析为 http.Header,同名头部后者覆盖前者
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("参数 --header 第%d项缺少冒号: %q", i+1, s)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("参数 --header 第%d项缺少头部名称: %q", i+1, s)
		}
		result.Set(name, strings.TrimSpace(value))
	}
	return result, nil
}

// HeaderProvider 页面打开前获取请求头部
// 静态页面每次请求前调用,浏览器页面创建时调用一次
type HeaderProvider interface {
	GetHeaders() (http.Header, error)
}

// ValidationError 单个头部不合法
type ValidationError struct {
	Source     string // 默认 / 配置文件 / 命令行
	HeaderName string
	Reason     string
	Suggestion string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部 [%s] 无效: %s", e.HeaderName, e.Reason)
	if e.Source != "" {
		msg = e.Source + msg
	}
	if e.Suggestion != "" {
		msg += ", " + e.Suggestion
	}
	return msg
}

// ConfigError headers.yaml 无法读取或解析
type ConfigError struct {
	FilePath string
	Cause    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("头部配置文件 %s: %v", e.FilePath, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
