package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/crawlers"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/serp"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
)

// PageFactory 为任务提供页面
type PageFactory interface {
	// Open 为任务创建页面, release 在任务结束后调用
	Open(ctx context.Context, task *models.HarvestTask) (page serp.BrowserPage, release func(), err error)
	// Limit 实际可用的worker数
	Limit(threads int) int
	Close() error
}

// NewPageFactory 按浏览模式创建页面工厂
func NewPageFactory(cfg *Config, headers models.HeaderProvider) (PageFactory, error) {
	switch cfg.Harvest.Mode {
	case models.ModeStatic:
		return &staticPages{headers: headers}, nil
	case models.ModeDynamic:
		return newDynamicPages(cfg, headers), nil
	default:
		return nil, fmt.Errorf("无效的浏览模式: %s", cfg.Harvest.Mode)
	}
}

// staticPages 每个任务一个Colly页面
type staticPages struct {
	headers models.HeaderProvider
}

func (s *staticPages) Open(_ context.Context, task *models.HarvestTask) (serp.BrowserPage, func(), error) {
	page, err := crawlers.NewStaticPage(s.headers, task.Proxy)
	if err != nil {
		return nil, nil, err
	}
	return page, func() {}, nil
}

func (s *staticPages) Limit(threads int) int {
	return threads
}

func (s *staticPages) Close() error {
	return nil
}

// dynamicPages 不使用代理时共享一个浏览器的标签页池,
// 使用代理时每个任务单独启动浏览器
type dynamicPages struct {
	options         crawlers.BrowserOptions
	headers         models.HeaderProvider
	monitor         *crawlers.ResourceMonitor
	selectorTimeout time.Duration

	mu      sync.Mutex
	shared  *crawlers.Browser
	pool    *crawlers.PagePool
	threads int
}

func newDynamicPages(cfg *Config, headers models.HeaderProvider) *dynamicPages {
	const mb = 1024 * 1024
	monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
		SafetyReserveMemory: int64(cfg.Harvest.SafetyReserveMemory) * mb,
		SafetyThreshold:     int64(cfg.Harvest.SafetyThreshold) * mb,
		CPULoadThreshold:    cfg.Harvest.CPULoadThreshold,
		MaxTabsLimit:        cfg.Harvest.MaxTabsLimit,
	})
	monitor.Start(time.Second)

	return &dynamicPages{
		options: crawlers.BrowserOptions{
			Headless: cfg.Harvest.Headless,
			Bin:      cfg.Browser.Bin,
		},
		headers:         headers,
		monitor:         monitor,
		selectorTimeout: cfg.Harvest.SelectorTimeout,
		threads:         cfg.Harvest.Threads,
	}
}

func (d *dynamicPages) Limit(threads int) int {
	limit := min(threads, d.monitor.CalculateMaxTabs())
	if limit < threads {
		utils.Warnf("受系统资源限制,并发数从%d降为%d", threads, limit)
	}
	return max(1, limit)
}

func (d *dynamicPages) Open(ctx context.Context, task *models.HarvestTask) (serp.BrowserPage, func(), error) {
	if task.Proxy != nil {
		return d.openWithProxy(ctx, task.Proxy)
	}

	pool, err := d.sharedPool()
	if err != nil {
		return nil, nil, err
	}
	page, err := pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("获取标签页失败: %w", err)
	}
	return crawlers.NewRodPage(page, d.selectorTimeout), func() { pool.Release(page) }, nil
}

// openWithProxy 代理在浏览器启动参数中设置,所以每个任务一个浏览器
func (d *dynamicPages) openWithProxy(ctx context.Context, proxy *models.Proxy) (serp.BrowserPage, func(), error) {
	options := d.options
	options.Proxy = proxy

	browser, err := crawlers.LaunchBrowser(options, d.headers)
	if err != nil {
		return nil, nil, err
	}
	page, err := browser.NewPage(ctx)
	if err != nil {
		browser.Close()
		return nil, nil, err
	}

	release := func() {
		if err := page.Close(); err != nil {
			utils.Debugf("关闭标签页失败: %v", err)
		}
		if err := browser.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
	}
	return crawlers.NewRodPage(page, d.selectorTimeout), release, nil
}

// sharedPool 首次使用时启动共享浏览器
func (d *dynamicPages) sharedPool() (*crawlers.PagePool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool != nil {
		return d.pool, nil
	}

	browser, err := crawlers.LaunchBrowser(d.options, d.headers)
	if err != nil {
		return nil, err
	}
	d.shared = browser
	d.pool = crawlers.NewPagePool(browser, d.monitor, d.threads)
	utils.Infof("共享浏览器已启动,标签页上限: %d", d.pool.MaxSize())
	return d.pool, nil
}

// Status 资源状态,用于状态接口
func (d *dynamicPages) Status() crawlers.MemoryStatus {
	return d.monitor.Status()
}

func (d *dynamicPages) Close() error {
	d.monitor.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	if d.shared != nil {
		err := d.shared.Close()
		d.shared = nil
		return err
	}
	return nil
}
