package core

import (
	"net/http"
	"strings"
	"sync"

	"github.com/RecoveryAshes/SerpHarvest/internal/config"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/serp"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/124.0.0.0 Safari/537.36"
)

// engineDefaults 各引擎的内置头部,叠加在通用默认值之上
var engineDefaults = map[string]http.Header{
	"yandex": {"Accept-Language": {"ru-RU,ru;q=0.9,en;q=0.8"}},
	"bing":   {"Accept-Language": {"en-US,en;q=0.9"}},
}

// HeaderManager 给浏览器标签页和Colly请求提供头部
// 合并顺序: 内置默认 < headers.yaml 通用 < headers.yaml 引擎节 < 命令行
type HeaderManager struct {
	engine string

	defaults http.Header
	file     http.Header
	cli      http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	mu     sync.Mutex
	loaded bool
	merged http.Header
}

// NewHeaderManager engine 为空时只使用通用头部
// cliHeaders 在这里解析,格式错误立即返回
func NewHeaderManager(configFile, engine string, cliHeaders []string) (*HeaderManager, error) {
	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}

	engine = strings.ToLower(strings.TrimSpace(engine))
	if engine != "" {
		profile, err := serp.ProfileByName(engine)
		if err != nil {
			return nil, err
		}
		engine = profile.Name
	}

	return &HeaderManager{
		engine:       engine,
		defaults:     defaultHeaders(engine),
		cli:          cli,
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile).WithEngineResolver(resolveEngine),
	}, nil
}

func resolveEngine(name string) (string, error) {
	profile, err := serp.ProfileByName(name)
	if err != nil {
		return "", err
	}
	return profile.Name, nil
}

func defaultHeaders(engine string) http.Header {
	h := http.Header{
		"User-Agent":      {DefaultUserAgent},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.9"},
		"Accept-Encoding": {"gzip, deflate, br"},
	}
	for name, values := range engineDefaults[engine] {
		h[name] = values
	}
	return h
}

// Engine 当前引擎名,未指定时为空
func (hm *HeaderManager) Engine() string {
	return hm.engine
}

// ConfigPath 实际读取的 headers.yaml
func (hm *HeaderManager) ConfigPath() string {
	return hm.configLoader.Path()
}

// LoadConfig 读取 headers.yaml,只读一次
func (hm *HeaderManager) LoadConfig() error {
	if hm.loaded {
		return nil
	}

	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		return err
	}
	hm.file = headerConfig.ForEngine(hm.engine)
	hm.loaded = true

	if len(hm.file) > 0 {
		utils.Debugf("从 %s 加载%d个头部: %s", hm.configLoader.Path(), len(hm.file), hm.redactor.RedactToString(hm.file))
	}
	return nil
}

// Validate 依次检查三层头部
// 命令行里值为空的头部表示删除,不参与校验
func (hm *HeaderManager) Validate() error {
	layers := []struct {
		source  string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", hm.file},
		{"命令行", nonEmpty(hm.cli)},
	}
	for _, layer := range layers {
		if err := hm.validator.Validate(layer.source, layer.headers); err != nil {
			utils.Errorf("HTTP头部验证失败: %v", err)
			return err
		}
	}
	return nil
}

func nonEmpty(h http.Header) http.Header {
	result := make(http.Header, len(h))
	for name, values := range h {
		if len(values) > 0 && values[0] != "" {
			result[name] = values
		}
	}
	return result
}

// GetMergedHeaders 合并三层头部,命令行的空值删除同名头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := hm.defaults.Clone()
	for name, values := range hm.file {
		result[name] = values
	}
	for name, values := range hm.cli {
		if len(values) == 0 || values[0] == "" {
			delete(result, name)
			continue
		}
		result[name] = values
	}
	return result
}

// GetSafeHeaders 脱敏后的合并结果,用于日志
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// SafeString 同 GetSafeHeaders,按名称排序拼成一行
func (hm *HeaderManager) SafeString() string {
	return hm.redactor.RedactToString(hm.GetMergedHeaders())
}

// GetHeaders 首次调用时加载并校验,之后返回缓存的副本
// 多个worker并发调用
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if hm.merged == nil {
		if err := hm.LoadConfig(); err != nil {
			return nil, err
		}
		if err := hm.Validate(); err != nil {
			return nil, err
		}
		hm.merged = hm.GetMergedHeaders()
	}
	return hm.merged.Clone(), nil
}
