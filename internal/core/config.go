package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Harvest models.HarvestConfig `mapstructure:"harvest"`
	Browser BrowserConfig        `mapstructure:"browser"`
	Captcha CaptchaConfig        `mapstructure:"captcha"`
	Dedup   DedupConfig          `mapstructure:"dedup"`
	Output  OutputConfig         `mapstructure:"output"`
	Logging LoggingConfig        `mapstructure:"logging"`
	Metrics MetricsConfig        `mapstructure:"metrics"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Bin         string `mapstructure:"bin"`          // 浏览器路径,为空时自动下载
	HeadersFile string `mapstructure:"headers_file"` // 自定义头部配置
	ProxyFile   string `mapstructure:"proxy_file"`   // 代理列表
	TempDir     string `mapstructure:"temp_dir"`     // 验证码截图目录
}

// CaptchaConfig 验证码识别服务配置
type CaptchaConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	Endpoint     string        `mapstructure:"endpoint"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// DedupConfig 跨进程去重配置,RedisAddr 为空时只在进程内广播
type DedupConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Channel       string `mapstructure:"channel"`
	ClaimKey      string `mapstructure:"claim_key"`
	Strict        bool   `mapstructure:"strict"` // 使用Redis集合仲裁,保证同一关键词只采集一次
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	Format   string         `mapstructure:"format"` // console | json
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir     string   `mapstructure:"base_dir"`
	Formats     []string `mapstructure:"formats"`
	SQLitePath  string   `mapstructure:"sqlite_path"`
	PostgresDSN string   `mapstructure:"postgres_dsn"`
}

// MetricsConfig 指标服务配置,Addr 为空时不启动
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoadConfig 加载配置文件
// 环境变量 SERPHARVEST_<SECTION>_<KEY> 覆盖配置文件,例如 SERPHARVEST_CAPTCHA_API_KEY
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".serpharvest"))
		}
	}

	v.SetEnvPrefix("SERPHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		utils.Debugf("未找到配置文件,使用默认配置")
	} else {
		utils.Debugf("加载配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 采集配置默认值
	v.SetDefault("harvest.engine", "yandex")
	v.SetDefault("harvest.mode", string(models.ModeDynamic))
	v.SetDefault("harvest.page_limit", 1)
	v.SetDefault("harvest.also_searched_for", false)
	v.SetDefault("harvest.max_depth", 1)
	v.SetDefault("harvest.threads", 2)
	v.SetDefault("harvest.headless", true)
	v.SetDefault("harvest.navigation_timeout", 60*time.Second)
	v.SetDefault("harvest.pagination_timeout", 60*time.Second)
	v.SetDefault("harvest.depth_navigation_timeout", 30*time.Second)
	v.SetDefault("harvest.selector_timeout", 15*time.Second)
	v.SetDefault("harvest.task_timeout", 3600*time.Second)
	v.SetDefault("harvest.captcha_max_attempts", 5)
	v.SetDefault("harvest.captcha_max_duration", 5*time.Minute)
	v.SetDefault("harvest.safety_reserve_memory", 1024)
	v.SetDefault("harvest.safety_threshold", 500)
	v.SetDefault("harvest.cpu_load_threshold", 80)
	v.SetDefault("harvest.max_tabs_limit", 16)

	// 浏览器配置默认值
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headers_file", "configs/headers.yaml")
	v.SetDefault("browser.proxy_file", "")
	v.SetDefault("browser.temp_dir", "")

	// 验证码配置默认值
	v.SetDefault("captcha.api_key", "")
	v.SetDefault("captcha.endpoint", "https://api.anti-captcha.com")
	v.SetDefault("captcha.poll_interval", 3*time.Second)
	v.SetDefault("captcha.timeout", 2*time.Minute)

	// 去重配置默认值
	v.SetDefault("dedup.redis_addr", "")
	v.SetDefault("dedup.redis_password", "")
	v.SetDefault("dedup.redis_db", 0)
	v.SetDefault("dedup.channel", "serpharvest:results")
	v.SetDefault("dedup.claim_key", "serpharvest:claimed")
	v.SetDefault("dedup.strict", false)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.formats", []string{"jsonl"})
	v.SetDefault("output.sqlite_path", "")
	v.SetDefault("output.postgres_dsn", "")

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", utils.LogFormatConsole)
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 指标服务默认值
	v.SetDefault("metrics.addr", "")
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// CLIOverrides 命令行参数,nil 表示未指定
type CLIOverrides struct {
	Engine          *string
	Mode            *string
	PageLimit       *int
	AlsoSearchedFor *bool
	MaxDepth        *int
	Threads         *int
	Headless        *bool
	ProxyFile       *string
	OutputDir       *string
	Formats         []string
	CaptchaKey      *string
	RedisAddr       *string
	MetricsAddr     *string
	LogLevel        *string
}

// MergeCLIFlags 合并命令行参数到配置,命令行优先于配置文件
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if o.Engine != nil {
		c.Harvest.Engine = strings.ToLower(*o.Engine)
	}
	if o.Mode != nil {
		c.Harvest.Mode = models.HarvestMode(strings.ToLower(*o.Mode))
	}
	if o.PageLimit != nil {
		c.Harvest.PageLimit = *o.PageLimit
	}
	if o.AlsoSearchedFor != nil {
		c.Harvest.AlsoSearchedFor = *o.AlsoSearchedFor
	}
	if o.MaxDepth != nil {
		c.Harvest.MaxDepth = *o.MaxDepth
	}
	if o.Threads != nil {
		c.Harvest.Threads = *o.Threads
	}
	if o.Headless != nil {
		c.Harvest.Headless = *o.Headless
	}
	if o.ProxyFile != nil {
		c.Browser.ProxyFile = *o.ProxyFile
	}
	if o.OutputDir != nil {
		c.Output.BaseDir = *o.OutputDir
	}
	if len(o.Formats) > 0 {
		c.Output.Formats = o.Formats
	}
	if o.CaptchaKey != nil {
		c.Captcha.APIKey = *o.CaptchaKey
	}
	if o.RedisAddr != nil {
		c.Dedup.RedisAddr = *o.RedisAddr
	}
	if o.MetricsAddr != nil {
		c.Metrics.Addr = *o.MetricsAddr
	}
	if o.LogLevel != nil {
		c.Logging.Level = *o.LogLevel
	}
}
