package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/serp"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// ErrStaticUnsupported 静态模式不支持页面交互
var ErrStaticUnsupported = errors.New("静态模式不支持页面交互")

var _ serp.BrowserPage = (*StaticPage)(nil)

// StaticPage 基于Colly的只读页面
// 只能打开URL和读取HTML,遇到验证码时无法处理
type StaticPage struct {
	collector *colly.Collector
	headers   models.HeaderProvider

	mu      sync.Mutex
	current string
	body    []byte
	status  int
	lastErr error
}

// NewStaticPage 创建静态页面, proxy 可以为nil
func NewStaticPage(headers models.HeaderProvider, proxy *models.Proxy) (*StaticPage, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)

	c.WithTransport(&http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	})

	if proxy != nil {
		if err := c.SetProxy(proxy.URL()); err != nil {
			return nil, fmt.Errorf("设置代理失败: %w", err)
		}
	}

	sp := &StaticPage{collector: c, headers: headers}
	sp.setupCallbacks()
	return sp, nil
}

func (sp *StaticPage) setupCallbacks() {
	sp.collector.OnRequest(func(r *colly.Request) {
		if sp.headers == nil {
			return
		}
		headers, err := sp.headers.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	sp.collector.OnResponse(func(r *colly.Response) {
		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressBody(encoding, r.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", r.Request.URL, encoding, err)
			} else {
				body = decompressed
			}
		}

		sp.current = r.Request.URL.String()
		sp.body = body
		sp.status = r.StatusCode
	})

	sp.collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Request != nil {
			sp.current = r.Request.URL.String()
			sp.status = r.StatusCode
		}
		sp.lastErr = err
	})
}

// Navigate 实现 serp.BrowserPage
func (sp *StaticPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()

	sp.body = nil
	sp.status = 0
	sp.lastErr = nil
	if timeout > 0 {
		sp.collector.SetRequestTimeout(timeout)
	}

	if err := sp.collector.Visit(url); err != nil {
		return fmt.Errorf("打开页面失败 [%s]: %w", url, err)
	}
	if sp.lastErr != nil {
		return fmt.Errorf("打开页面失败 [%s] (状态码%d): %w", url, sp.status, sp.lastErr)
	}
	if sp.current == "" {
		sp.current = url
	}
	return nil
}

// URL 实现 serp.BrowserPage
func (sp *StaticPage) URL() string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.current
}

// StatusCode 最近一次响应的状态码
func (sp *StaticPage) StatusCode() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.status
}

// HTML 实现 serp.BrowserPage
func (sp *StaticPage) HTML(context.Context) (string, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.body == nil {
		return "", fmt.Errorf("页面尚未加载")
	}
	return string(sp.body), nil
}

func (sp *StaticPage) document() (*goquery.Document, error) {
	sp.mu.Lock()
	body := sp.body
	sp.mu.Unlock()

	if body == nil {
		return nil, fmt.Errorf("页面尚未加载")
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// Has 实现 serp.BrowserPage
func (sp *StaticPage) Has(_ context.Context, selector string) (bool, error) {
	doc, err := sp.document()
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

// WaitFor 静态页面不会变化,直接检查元素
func (sp *StaticPage) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	ok, err := sp.Has(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("元素不存在 [%s]", selector)
	}
	return nil
}

// Click 静态模式不支持
func (sp *StaticPage) Click(context.Context, string) error {
	return ErrStaticUnsupported
}

// ClickAndWait 静态模式不支持
func (sp *StaticPage) ClickAndWait(context.Context, string, time.Duration) error {
	return ErrStaticUnsupported
}

// ClickAt 静态模式不支持
func (sp *StaticPage) ClickAt(context.Context, float64, float64) error {
	return ErrStaticUnsupported
}

// BoundingBox 静态模式不支持
func (sp *StaticPage) BoundingBox(context.Context, string) (models.ElementBox, error) {
	return models.ElementBox{}, ErrStaticUnsupported
}

// ScreenshotElement 静态模式不支持
func (sp *StaticPage) ScreenshotElement(context.Context, string, string) error {
	return ErrStaticUnsupported
}

// Eval 静态模式不支持
func (sp *StaticPage) Eval(context.Context, string) error {
	return ErrStaticUnsupported
}

// Search 静态模式不支持,应直接打开搜索URL
func (sp *StaticPage) Search(context.Context, string, string, time.Duration) error {
	return ErrStaticUnsupported
}

// decompressBody 根据Content-Encoding解压响应体
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		return io.ReadAll(reader)

	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
