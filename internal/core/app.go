package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/SerpHarvest/internal/captcha"
	"github.com/RecoveryAshes/SerpHarvest/internal/dedup"
	"github.com/RecoveryAshes/SerpHarvest/internal/metrics"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/serp"
	"github.com/RecoveryAshes/SerpHarvest/internal/sink"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/redis/go-redis/v9"
)

// App 一次运行所需的全部组件
type App struct {
	Config  *Config
	Runner  *Runner
	Headers *HeaderManager

	metrics *metrics.Server
	closers []func() error
}

// NewApp 按配置创建所有组件
// 出错时已创建的组件会被关闭
func NewApp(ctx context.Context, cfg *Config, cliHeaders []string) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if err := cfg.Harvest.Validate(); err != nil {
		return nil, err
	}

	profile, err := serp.ProfileByName(cfg.Harvest.Engine)
	if err != nil {
		return nil, err
	}

	headers, err := NewHeaderManager(cfg.Browser.HeadersFile, profile.Name, cliHeaders)
	if err != nil {
		return nil, fmt.Errorf("解析自定义头部失败: %w", err)
	}
	if _, err := headers.GetHeaders(); err != nil {
		return nil, err
	}
	app.Headers = headers
	utils.Debugf("%s 请求头部: %s", profile.Name, headers.SafeString())

	var proxies []*models.Proxy
	if cfg.Browser.ProxyFile != "" {
		if proxies, err = utils.ReadProxiesFromFile(cfg.Browser.ProxyFile); err != nil {
			return nil, err
		}
	}

	var solver serp.CaptchaSolver
	if cfg.Captcha.APIKey != "" {
		if cfg.Captcha.Endpoint != "" {
			if err := models.ValidateURL(cfg.Captcha.Endpoint); err != nil {
				return nil, fmt.Errorf("验证码服务地址无效: %w", err)
			}
		}
		solver = captcha.NewAntiCaptchaClient(captcha.Config{
			APIKey:       cfg.Captcha.APIKey,
			Endpoint:     cfg.Captcha.Endpoint,
			PollInterval: cfg.Captcha.PollInterval,
			Timeout:      cfg.Captcha.Timeout,
		})
		utils.Infof("验证码识别服务: %s (key=%s)", cfg.Captcha.Endpoint, utils.MaskSecret(cfg.Captcha.APIKey))
	} else if profile.Challenge.GatePath != "" {
		utils.Warnf("未配置验证码识别服务,%s 出现图片验证码时任务会失败", profile.Name)
	}

	bus, arbiter, err := app.openDedup(ctx)
	if err != nil {
		return nil, err
	}

	multi, table, err := sink.Open(ctx, sink.Options{
		Dir:         cfg.Output.BaseDir,
		Formats:     cfg.Output.Formats,
		SQLitePath:  cfg.Output.SQLitePath,
		PostgresDSN: cfg.Output.PostgresDSN,
	})
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, multi.Close)

	pages, err := NewPageFactory(cfg, headers)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, pages.Close)

	app.Runner = NewRunner(cfg, RunnerDeps{
		Profile: profile,
		Pages:   pages,
		Solver:  solver,
		Bus:     bus,
		Arbiter: arbiter,
		Sink:    multi,
		Table:   table,
		Proxies: proxies,
	})

	if cfg.Metrics.Addr != "" {
		app.metrics = metrics.NewServer(cfg.Metrics.Addr, func() interface{} {
			return app.Runner.Status()
		})
		app.metrics.Start()
	}

	return app, nil
}

// openDedup 配置了Redis时跨进程广播,否则进程内广播
func (a *App) openDedup(ctx context.Context) (dedup.Bus, dedup.Arbiter, error) {
	cfg := a.Config.Dedup
	if cfg.RedisAddr == "" {
		if cfg.Strict {
			utils.Warn("dedup.strict 需要配置 Redis,已忽略")
		}
		bus := dedup.NewLocalBus()
		a.closers = append(a.closers, bus.Close)
		return bus, nil, nil
	}

	client, err := dedup.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, client.Close)

	bus, err := dedup.NewRedisBus(ctx, client, cfg.Channel)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, bus.Close)
	utils.Infof("跨进程广播已启用: %s (%s)", cfg.RedisAddr, cfg.Channel)

	var arbiter dedup.Arbiter
	if cfg.Strict {
		arbiter = dedup.NewRedisArbiter(client, cfg.ClaimKey)
		utils.Infof("严格去重已启用: %s", cfg.ClaimKey)
	}
	return bus, arbiter, nil
}

// Run 采集关键词并生成报告
func (a *App) Run(ctx context.Context, keywords []string) (*models.HarvestReport, error) {
	report, err := a.Runner.Run(ctx, keywords)
	if err != nil {
		return nil, err
	}

	a.Runner.PrintSummary(report)

	reporter := utils.NewReporter(a.Config.Output.BaseDir)
	if err := reporter.GenerateReport(report, a.Runner.Results()); err != nil {
		utils.Warnf("生成报告失败: %v", err)
	}
	return report, nil
}

// Close 按创建的逆序关闭组件
func (a *App) Close() error {
	var errs []error
	if a.metrics != nil {
		if err := a.metrics.Stop(context.Background()); err != nil {
			errs = append(errs, err)
		}
		a.metrics = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
