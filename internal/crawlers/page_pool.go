package crawlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

// maxCleanFailures 清理失败达到该次数后销毁标签页
const maxCleanFailures = 2

// PagePool 共享浏览器上的标签页池
// 不使用代理时所有worker共用一个浏览器,每个任务借用一个标签页
type PagePool struct {
	browser *Browser
	monitor *ResourceMonitor
	limit   int

	available chan *rod.Page

	mu       sync.Mutex
	pages    map[*rod.Page]int // 标签页 -> 连续清理失败次数
	closed   bool
	creating int
}

// NewPagePool 创建标签页池
// limit 为worker数,实际上限取 limit 与资源监控计算值的较小者
func NewPagePool(browser *Browser, monitor *ResourceMonitor, limit int) *PagePool {
	if limit < 1 {
		limit = 1
	}
	return &PagePool{
		browser:   browser,
		monitor:   monitor,
		limit:     limit,
		available: make(chan *rod.Page, limit),
		pages:     make(map[*rod.Page]int),
	}
}

// MaxSize 当前允许的最大标签页数
func (pp *PagePool) MaxSize() int {
	if pp.monitor == nil {
		return pp.limit
	}
	return min(pp.limit, pp.monitor.CalculateMaxTabs())
}

// Size 当前标签页数
func (pp *PagePool) Size() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.pages)
}

// Acquire 借用标签页,没有空闲且已达上限时阻塞
func (pp *PagePool) Acquire(ctx context.Context) (*rod.Page, error) {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, fmt.Errorf("标签页池已关闭")
	}
	pp.mu.Unlock()

	select {
	case page := <-pp.available:
		return page, nil
	default:
	}

	if pp.reserve() {
		page, err := pp.browser.NewPage(context.Background())
		pp.mu.Lock()
		pp.creating--
		if err == nil {
			pp.pages[page] = 0
		}
		size := len(pp.pages)
		pp.mu.Unlock()

		if err != nil {
			log.Error().Err(err).Msg("创建标签页失败")
			return nil, err
		}
		log.Debug().Msgf("创建新标签页,当前标签页数: %d", size)
		return page, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case page, ok := <-pp.available:
		if !ok {
			return nil, fmt.Errorf("标签页池已关闭")
		}
		return page, nil
	}
}

// reserve 检查上限和资源,允许时占用一个创建名额
func (pp *PagePool) reserve() bool {
	maxSize := pp.MaxSize()

	pp.mu.Lock()
	defer pp.mu.Unlock()

	if len(pp.pages)+pp.creating >= maxSize {
		return false
	}
	if pp.monitor != nil && len(pp.pages) > 0 {
		if ok, reason := pp.monitor.CheckResourceAvailability(); !ok {
			log.Warn().Msgf("资源不足,暂不创建新标签页: %s", reason)
			return false
		}
	}
	pp.creating++
	return true
}

// Release 归还标签页
// 清理存储失败时重试一次,连续失败达到上限后销毁
func (pp *PagePool) Release(page *rod.Page) {
	if page == nil {
		return
	}

	failures := 0
	if err := cleanPage(page); err != nil {
		if err = cleanPage(page); err != nil {
			pp.mu.Lock()
			pp.pages[page]++
			failures = pp.pages[page]
			pp.mu.Unlock()
			log.Warn().Err(err).Msgf("清理标签页失败 (第%d次)", failures)
		}
	}

	if failures >= maxCleanFailures {
		pp.destroy(page)
		return
	}
	if failures == 0 {
		pp.mu.Lock()
		pp.pages[page] = 0
		pp.mu.Unlock()
	}

	pp.mu.Lock()
	closed := pp.closed
	pp.mu.Unlock()
	if closed {
		pp.destroy(page)
		return
	}

	select {
	case pp.available <- page:
	default:
		pp.destroy(page)
	}
}

// Discard 销毁出错的标签页
func (pp *PagePool) Discard(page *rod.Page) {
	if page != nil {
		pp.destroy(page)
	}
}

// cleanPage 清空本地存储和cookie,保留标签页复用
func cleanPage(page *rod.Page) error {
	_, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			try { localStorage.clear(); } catch (e) {}
			try { sessionStorage.clear(); } catch (e) {}
			try {
				document.cookie.split(";").forEach(function (c) {
					var name = c.split("=")[0].trim();
					if (name) {
						document.cookie = name + "=;expires=Thu, 01 Jan 1970 00:00:00 UTC;path=/";
					}
				});
			} catch (e) {}
			return true;
		}`,
	})
	if err != nil {
		return fmt.Errorf("清理标签页状态失败: %w", err)
	}
	return nil
}

func (pp *PagePool) destroy(page *rod.Page) {
	pp.mu.Lock()
	delete(pp.pages, page)
	size := len(pp.pages)
	pp.mu.Unlock()

	if err := page.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭标签页失败")
	}
	log.Debug().Msgf("销毁标签页,当前标签页数: %d", size)
}

// Close 关闭所有标签页,不关闭浏览器
func (pp *PagePool) Close() error {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil
	}
	pp.closed = true
	pages := make([]*rod.Page, 0, len(pp.pages))
	for page := range pp.pages {
		pages = append(pages, page)
	}
	pp.pages = make(map[*rod.Page]int)
	pp.mu.Unlock()

	for _, page := range pages {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭标签页失败")
		}
	}
	log.Info().Msg("标签页池已关闭")
	return nil
}
