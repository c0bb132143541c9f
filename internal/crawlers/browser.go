package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserOptions 浏览器启动参数
type BrowserOptions struct {
	Headless bool
	Bin      string        // 浏览器路径,为空时自动下载
	Proxy    *models.Proxy // 为nil时直连
}

// Browser 已连接的浏览器实例
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	headers  models.HeaderProvider

	closeOnce sync.Once
}

// configureLauncher 设置启动参数
func configureLauncher(l *launcher.Launcher, opts BrowserOptions) *launcher.Launcher {
	l = l.Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", "1920,1080").
		Set("lang", "en-US").
		Set("ignore-certificate-errors").
		Set("disable-infobars").
		Set("disable-dev-shm-usage")

	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.Proxy != nil {
		l = l.Proxy(opts.Proxy.Address())
	}
	return l
}

// LaunchBrowser 启动并连接浏览器
// 代理需要认证时自动应答认证请求
func LaunchBrowser(opts BrowserOptions, headers models.HeaderProvider) (*Browser, error) {
	l := configureLauncher(launcher.New(), opts)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	if opts.Proxy != nil && opts.Proxy.HasAuth() {
		go answerProxyAuth(browser, opts.Proxy)
		utils.Debugf("代理认证已启用: %s", opts.Proxy.Redacted())
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return &Browser{rod: browser, launcher: l, headers: headers}, nil
}

// answerProxyAuth 持续应答代理认证,浏览器关闭后退出
func answerProxyAuth(browser *rod.Browser, proxy *models.Proxy) {
	for {
		wait := browser.HandleAuth(proxy.Login, proxy.Password)
		if err := wait(); err != nil {
			return
		}
	}
}

// NewPage 创建带反检测脚本和自定义头部的标签页
func (b *Browser) NewPage(ctx context.Context) (*rod.Page, error) {
	page, err := stealth.Page(b.rod)
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}

	if err := applyHeaders(page, b.headers); err != nil {
		utils.Warnf("设置HTTP头部失败: %v", err)
	}
	return page.Context(ctx), nil
}

// Close 关闭浏览器
func (b *Browser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.rod.Close()
		b.launcher.Kill()
		utils.Debug("浏览器已关闭")
	})
	return err
}

// browserHeaders 拆分出 User-Agent 和其余头部
// 浏览器自己处理压缩和连接相关的头部
func browserHeaders(headers http.Header) (userAgent string, extra []string) {
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		switch strings.ToLower(name) {
		case "user-agent":
			userAgent = values[0]
		case "accept-encoding", "host", "connection", "content-length":
		default:
			extra = append(extra, http.CanonicalHeaderKey(name), values[0])
		}
	}
	return userAgent, extra
}

func applyHeaders(page *rod.Page, provider models.HeaderProvider) error {
	if provider == nil {
		return nil
	}
	headers, err := provider.GetHeaders()
	if err != nil {
		return err
	}

	userAgent, extra := browserHeaders(headers)
	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
			return fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}
	if len(extra) > 0 {
		if _, err := page.SetExtraHeaders(extra); err != nil {
			return fmt.Errorf("设置额外头部失败: %w", err)
		}
	}
	return nil
}
