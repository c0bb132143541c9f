package crawlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/serp"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

var _ serp.BrowserPage = (*RodPage)(nil)

// RodPage 基于go-rod标签页的 serp.BrowserPage 实现
type RodPage struct {
	page            *rod.Page
	selectorTimeout time.Duration
}

// NewRodPage 包装标签页
func NewRodPage(page *rod.Page, selectorTimeout time.Duration) *RodPage {
	if selectorTimeout <= 0 {
		selectorTimeout = 15 * time.Second
	}
	return &RodPage{page: page, selectorTimeout: selectorTimeout}
}

// Page 底层标签页
func (r *RodPage) Page() *rod.Page {
	return r.page
}

// withTimeout 带总超时的标签页副本,release 释放计时器
func (r *RodPage) withTimeout(ctx context.Context, timeout time.Duration) (*rod.Page, func()) {
	p := r.page.Context(ctx).Timeout(timeout)
	return p, func() { p.CancelTimeout() }
}

// Navigate 实现 serp.BrowserPage
func (r *RodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p, release := r.withTimeout(ctx, timeout)
	defer release()
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("打开页面失败 [%s]: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("等待页面加载失败 [%s]: %w", url, err)
	}
	return nil
}

// URL 实现 serp.BrowserPage
func (r *RodPage) URL() string {
	info, err := r.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// HTML 实现 serp.BrowserPage
func (r *RodPage) HTML(ctx context.Context) (string, error) {
	return r.page.Context(ctx).HTML()
}

// Has 实现 serp.BrowserPage
func (r *RodPage) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := r.page.Context(ctx).Has(selector)
	return has, err
}

// WaitFor 实现 serp.BrowserPage
func (r *RodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	p, release := r.withTimeout(ctx, timeout)
	defer release()
	if _, err := p.Element(selector); err != nil {
		return fmt.Errorf("等待元素超时 [%s]: %w", selector, err)
	}
	return nil
}

func (r *RodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := r.page.Context(ctx).Timeout(r.selectorTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("查找元素失败 [%s]: %w", selector, err)
	}
	return el.CancelTimeout(), nil
}

// Click 实现 serp.BrowserPage
func (r *RodPage) Click(ctx context.Context, selector string) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// ClickAndWait 实现 serp.BrowserPage
// 超时未跳转时返回 serp.ErrNavigationTimeout
func (r *RodPage) ClickAndWait(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	return r.waitNavigation(ctx, timeout, func() error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

// ClickAt 实现 serp.BrowserPage
func (r *RodPage) ClickAt(ctx context.Context, x, y float64) error {
	mouse := r.page.Context(ctx).Mouse
	if err := mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	return mouse.Click(proto.InputMouseButtonLeft, 1)
}

// BoundingBox 实现 serp.BrowserPage
func (r *RodPage) BoundingBox(ctx context.Context, selector string) (models.ElementBox, error) {
	el, err := r.element(ctx, selector)
	if err != nil {
		return models.ElementBox{}, err
	}
	shape, err := el.Shape()
	if err != nil {
		return models.ElementBox{}, fmt.Errorf("获取元素位置失败: %w", err)
	}
	box := shape.Box()
	if box == nil {
		return models.ElementBox{}, fmt.Errorf("元素不可见 [%s]", selector)
	}
	return models.ElementBox{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

// ScreenshotElement 实现 serp.BrowserPage
func (r *RodPage) ScreenshotElement(ctx context.Context, selector, path string) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	data, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return fmt.Errorf("截图失败: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Eval 实现 serp.BrowserPage
func (r *RodPage) Eval(ctx context.Context, js string) error {
	_, err := r.page.Context(ctx).Evaluate(&rod.EvalOptions{JS: js})
	return err
}

// Search 实现 serp.BrowserPage
func (r *RodPage) Search(ctx context.Context, inputSelector, text string, timeout time.Duration) error {
	el, err := r.element(ctx, inputSelector)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("输入关键词失败: %w", err)
	}
	return r.waitNavigation(ctx, timeout, func() error {
		return el.Type(input.Enter)
	})
}

// waitNavigation 执行操作并等待页面跳转
func (r *RodPage) waitNavigation(ctx context.Context, timeout time.Duration, action func() error) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wait := r.page.Context(waitCtx).WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := action(); err != nil {
		return err
	}
	wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w (%v)", serp.ErrNavigationTimeout, timeout)
	}
	return nil
}

// Close 关闭标签页
func (r *RodPage) Close() error {
	return r.page.Close()
}
