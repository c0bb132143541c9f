package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/SerpHarvest/internal/core"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 采集参数
	keywords        []string
	keywordFile     string
	engine          string
	mode            string
	pageLimit       int
	alsoSearchedFor bool
	maxDepth        int
	threads         int
	headless        bool
	proxyFile       string
	outputDir       string
	formats         []string

	// 外部服务
	captchaKey  string
	redisAddr   string
	metricsAddr string
)

// appConfig 在 PersistentPreRunE 中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "serpharvest [关键词...]",
	Short: "搜索结果页采集工具",
	Long: `SerpHarvest - 并发采集搜索引擎结果页 (ya.ru / bing)

支持:
  • 多页自然结果采集
  • 相关搜索词递归采集 (深度1-4)
  • 图片点击验证码自动识别 (anti-captcha)
  • 多worker去重,可选Redis跨进程广播
  • JSONL / CSV / SQLite / PostgreSQL 输出

示例:
  serpharvest -k "golang context" -k "rust async" --pages 3
  serpharvest -f keywords.txt --engine bing --mode static --format jsonl,csv
  serpharvest -f keywords.txt --also-searched-for --depth 2 --captcha-key $KEY
  serpharvest --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		cfg.MergeCLIFlags(collectOverrides(cmd))

		if err := utils.InitLogger(cfg.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateConfig {
			return runValidateConfig()
		}

		all := append([]string{}, keywords...)
		all = append(all, args...)
		if keywordFile != "" {
			fromFile, err := utils.ReadKeywordsFromFile(keywordFile)
			if err != nil {
				return fmt.Errorf("读取关键词文件失败: %w", err)
			}
			all = append(all, fromFile...)
		}
		if len(all) == 0 {
			return cmd.Help()
		}

		if err := ValidateFlags(appConfig.Harvest.Engine, string(appConfig.Harvest.Mode),
			appConfig.Harvest.PageLimit, appConfig.Harvest.MaxDepth, appConfig.Harvest.Threads,
			appConfig.Output.Formats); err != nil {
			return err
		}

		// Ctrl+C 取消未完成的任务,已采集的结果仍会写入报告
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := core.NewApp(ctx, appConfig, headers)
		if err != nil {
			return fmt.Errorf("初始化失败: %w", err)
		}

		_, runErr := app.Run(ctx, all)
		closeErr := app.Close()
		if runErr != nil {
			return fmt.Errorf("采集失败: %w", runErr)
		}
		if closeErr != nil {
			utils.Warnf("释放资源时出错: %v", closeErr)
		}

		if errors.Is(ctx.Err(), context.Canceled) {
			utils.Warn("收到中断信号,部分关键词未完成")
			return nil
		}
		utils.Info("✨ 采集任务完成!")
		return nil
	},
}

// runValidateConfig 校验HTTP头部配置并打印脱敏后的结果
func runValidateConfig() error {
	utils.Info("🔍 验证HTTP头部配置...")
	headerManager, err := core.NewHeaderManager(appConfig.Browser.HeadersFile, appConfig.Harvest.Engine, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	if err := headerManager.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	if err := appConfig.Harvest.Validate(); err != nil {
		return fmt.Errorf("采集配置无效: %w", err)
	}

	safeHeaders := headerManager.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("引擎=%s 模式=%s 翻页=%d 并发=%d", appConfig.Harvest.Engine, appConfig.Harvest.Mode,
		appConfig.Harvest.PageLimit, appConfig.Harvest.Threads)
	utils.Infof("头部配置文件: %s", headerManager.ConfigPath())
	utils.Infof("%s 有效的HTTP头部 (%d个):", headerManager.Engine(), len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

// collectOverrides 只收集用户显式指定的参数
func collectOverrides(cmd *cobra.Command) core.CLIOverrides {
	flags := cmd.Flags()
	var o core.CLIOverrides
	if flags.Changed("engine") {
		o.Engine = &engine
	}
	if flags.Changed("mode") {
		o.Mode = &mode
	}
	if flags.Changed("pages") {
		o.PageLimit = &pageLimit
	}
	if flags.Changed("also-searched-for") {
		o.AlsoSearchedFor = &alsoSearchedFor
	}
	if flags.Changed("depth") {
		o.MaxDepth = &maxDepth
	}
	if flags.Changed("threads") {
		o.Threads = &threads
	}
	if flags.Changed("headless") {
		o.Headless = &headless
	}
	if flags.Changed("proxy-file") {
		o.ProxyFile = &proxyFile
	}
	if flags.Changed("output") {
		o.OutputDir = &outputDir
	}
	if flags.Changed("format") {
		o.Formats = formats
	}
	if flags.Changed("captcha-key") {
		o.CaptchaKey = &captchaKey
	}
	if flags.Changed("redis-addr") {
		o.RedisAddr = &redisAddr
	}
	if flags.Changed("metrics-addr") {
		o.MetricsAddr = &metricsAddr
	}
	if flags.Changed("log-level") {
		o.LogLevel = &logLevel
	}
	return o
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SerpHarvest %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定,'Name:' 去掉该头部")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 采集参数
	rootCmd.Flags().StringArrayVarP(&keywords, "keyword", "k", []string{}, "搜索关键词,可多次指定")
	rootCmd.Flags().StringVarP(&keywordFile, "keyword-file", "f", "", "关键词文件,每行一个")
	rootCmd.Flags().StringVarP(&engine, "engine", "e", "yandex", "搜索引擎 (yandex|bing)")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "dynamic", "浏览模式 (dynamic|static)")
	rootCmd.Flags().IntVarP(&pageLimit, "pages", "p", 1, "每个关键词采集的页数 (1-50)")
	rootCmd.Flags().BoolVar(&alsoSearchedFor, "also-searched-for", false, "递归采集相关搜索词")
	rootCmd.Flags().IntVarP(&maxDepth, "depth", "d", 1, "相关词递归深度 (0-10)")
	rootCmd.Flags().IntVarP(&threads, "threads", "t", 2, "并发worker数 (1-64)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().StringVar(&proxyFile, "proxy-file", "", "代理列表文件,每行 host:port[:login:password]")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "output", "输出目录")
	rootCmd.Flags().StringSliceVar(&formats, "format", []string{"jsonl"}, "输出格式 (jsonl,csv,sqlite,postgres)")

	// 外部服务
	rootCmd.Flags().StringVar(&captchaKey, "captcha-key", "", "anti-captcha API密钥")
	rootCmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis地址,用于跨进程去重")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "指标服务监听地址,例如 :9090")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
