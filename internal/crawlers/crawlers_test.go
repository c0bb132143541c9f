package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/andybalholm/brotli"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const serpHTML = `<html><body><ul id="b_results"><li class="b_algo"><h2><a href="https://example.com">Example</a></h2></li></ul></body></html>`

type staticHeaders struct {
	headers http.Header
	err     error
}

func (s staticHeaders) GetHeaders() (http.Header, error) {
	return s.headers, s.err
}

func compress(t *testing.T, encoding string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		w.Write(data)
		w.Close()
	case "deflate":
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			t.Fatalf("创建deflate写入器失败: %v", err)
		}
		w.Write(data)
		w.Close()
	case "br":
		w := brotli.NewWriter(&buf)
		w.Write(data)
		w.Close()
	default:
		return data
	}
	return buf.Bytes()
}

func TestDecompressBody(t *testing.T) {
	original := []byte(serpHTML)

	tests := []struct {
		name     string
		encoding string
	}{
		{"gzip压缩", "gzip"},
		{"deflate压缩", "deflate"},
		{"brotli压缩", "br"},
		{"未压缩", "identity"},
		{"编码名大小写和空白", " BR "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := compress(t, strings.ToLower(strings.TrimSpace(tt.encoding)), original)
			got, err := decompressBody(tt.encoding, body)
			if err != nil {
				t.Fatalf("decompressBody() 出错: %v", err)
			}
			if !bytes.Equal(got, original) {
				t.Errorf("解压结果不一致: %q", got)
			}
		})
	}

	t.Run("损坏的gzip数据", func(t *testing.T) {
		if _, err := decompressBody("gzip", []byte("not gzip")); err == nil {
			t.Error("期望返回错误")
		}
	})
}

func TestStaticPage(t *testing.T) {
	var (
		mu    sync.Mutex
		gotUA string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotUA = r.Header.Get("User-Agent")
		mu.Unlock()
		switch r.URL.Path {
		case "/search":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(serpHTML))
		case "/br":
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Content-Encoding", "br")
			w.Write(compress(t, "br", []byte(serpHTML)))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer server.Close()

	headers := staticHeaders{headers: http.Header{"User-Agent": {"serpharvest-test"}}}
	page, err := NewStaticPage(headers, nil)
	if err != nil {
		t.Fatalf("NewStaticPage() 出错: %v", err)
	}
	ctx := context.Background()

	t.Run("加载前读取HTML", func(t *testing.T) {
		if _, err := page.HTML(ctx); err == nil {
			t.Error("期望返回错误")
		}
	})

	tests := []struct {
		name string
		path string
	}{
		{"普通页面", "/search"},
		{"brotli压缩页面", "/br"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := page.Navigate(ctx, server.URL+tt.path, 5*time.Second); err != nil {
				t.Fatalf("Navigate() 出错: %v", err)
			}
			if page.URL() != server.URL+tt.path {
				t.Errorf("URL() = %q", page.URL())
			}
			if page.StatusCode() != http.StatusOK {
				t.Errorf("StatusCode() = %d", page.StatusCode())
			}
			html, err := page.HTML(ctx)
			if err != nil || !strings.Contains(html, "b_algo") {
				t.Errorf("HTML() = %q, %v", html, err)
			}
			if ok, err := page.Has(ctx, "li.b_algo"); err != nil || !ok {
				t.Errorf("Has() = %v, %v", ok, err)
			}
			if err := page.WaitFor(ctx, "#missing", time.Second); err == nil {
				t.Error("WaitFor() 不存在的元素应返回错误")
			}
		})
	}

	mu.Lock()
	ua := gotUA
	mu.Unlock()
	if ua != "serpharvest-test" {
		t.Errorf("User-Agent = %q, 期望使用头部提供者的值", ua)
	}

	t.Run("错误状态码", func(t *testing.T) {
		err := page.Navigate(ctx, server.URL+"/missing", 5*time.Second)
		if err == nil {
			t.Fatal("期望返回错误")
		}
		if page.StatusCode() != http.StatusNotFound {
			t.Errorf("StatusCode() = %d", page.StatusCode())
		}
	})

	t.Run("已取消的上下文", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := page.Navigate(cancelled, server.URL+"/search", time.Second); !errors.Is(err, context.Canceled) {
			t.Errorf("期望 context.Canceled, 实际 %v", err)
		}
	})

	t.Run("交互操作不支持", func(t *testing.T) {
		ops := []error{
			page.Click(ctx, "a"),
			page.ClickAndWait(ctx, "a", time.Second),
			page.ClickAt(ctx, 1, 1),
			page.Search(ctx, "input", "golang", time.Second),
			page.Eval(ctx, "() => 1"),
			page.ScreenshotElement(ctx, "img", "shot.png"),
		}
		for i, err := range ops {
			if !errors.Is(err, ErrStaticUnsupported) {
				t.Errorf("操作%d 期望 ErrStaticUnsupported, 实际 %v", i, err)
			}
		}
		if _, err := page.BoundingBox(ctx, "a"); !errors.Is(err, ErrStaticUnsupported) {
			t.Errorf("BoundingBox() 期望 ErrStaticUnsupported, 实际 %v", err)
		}
	})
}

func TestStaticPageWithProxy(t *testing.T) {
	proxy, err := models.ParseProxyLine("127.0.0.1:8080:user:pass")
	if err != nil {
		t.Fatalf("ParseProxy() 出错: %v", err)
	}
	if _, err := NewStaticPage(nil, proxy); err != nil {
		t.Errorf("NewStaticPage() 出错: %v", err)
	}
}

func TestBrowserHeaders(t *testing.T) {
	headers := http.Header{
		"User-Agent":      {"Mozilla/5.0"},
		"Accept-Language": {"en-US"},
		"Accept-Encoding": {"gzip"},
		"Host":            {"example.com"},
		"Cookie":          {"a=b"},
	}

	ua, extra := browserHeaders(headers)
	if ua != "Mozilla/5.0" {
		t.Errorf("ua = %q", ua)
	}

	pairs := make(map[string]string)
	for i := 0; i+1 < len(extra); i += 2 {
		pairs[extra[i]] = extra[i+1]
	}

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"保留Accept-Language", "Accept-Language", true},
		{"保留Cookie", "Cookie", true},
		{"跳过Accept-Encoding", "Accept-Encoding", false},
		{"跳过Host", "Host", false},
		{"User-Agent单独设置", "User-Agent", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := pairs[tt.header]; ok != tt.want {
				t.Errorf("%s 存在 = %v, 期望 %v", tt.header, ok, tt.want)
			}
		})
	}
}

func TestConfigureLauncher(t *testing.T) {
	proxy, err := models.ParseProxyLine("10.0.0.1:3128")
	if err != nil {
		t.Fatalf("ParseProxy() 出错: %v", err)
	}

	l := configureLauncher(launcher.New(), BrowserOptions{Headless: true, Proxy: proxy})

	if !l.Has("headless") {
		t.Error("应启用headless")
	}
	if got := l.Get("disable-blink-features"); got != "AutomationControlled" {
		t.Errorf("disable-blink-features = %q", got)
	}
	if got := l.Get("proxy-server"); got != "10.0.0.1:3128" {
		t.Errorf("proxy-server = %q", got)
	}

	l = configureLauncher(launcher.New(), BrowserOptions{Headless: false})
	if l.Has("headless") {
		t.Error("不应启用headless")
	}
	if l.Has("proxy-server") {
		t.Error("未配置代理时不应设置proxy-server")
	}
}

func TestResourceMonitor(t *testing.T) {
	tests := []struct {
		name   string
		config ResourceMonitorConfig
		max    int
	}{
		{
			name:   "上限为1",
			config: ResourceMonitorConfig{MaxTabsLimit: 1},
			max:    1,
		},
		{
			name:   "上限不超过CPU核数",
			config: ResourceMonitorConfig{MaxTabsLimit: 4096},
			max:    runtime.NumCPU(),
		},
		{
			name: "内存阈值过高时只允许1个",
			config: ResourceMonitorConfig{
				MaxTabsLimit:    16,
				SafetyThreshold: 1 << 62,
			},
			max: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := NewResourceMonitor(tt.config)
			got := rm.CalculateMaxTabs()
			if got < 1 || got > tt.max {
				t.Errorf("CalculateMaxTabs() = %d, 期望 1..%d", got, tt.max)
			}
		})
	}

	t.Run("内存不足时拒绝创建", func(t *testing.T) {
		rm := NewResourceMonitor(ResourceMonitorConfig{SafetyThreshold: 1 << 62})
		ok, reason := rm.CheckResourceAvailability()
		if ok || reason == "" {
			t.Errorf("CheckResourceAvailability() = %v, %q", ok, reason)
		}
		if status := rm.Status(); status.MemoryPressure != "emergency" {
			t.Errorf("MemoryPressure = %q", status.MemoryPressure)
		}
	})

	t.Run("启动和停止采样", func(t *testing.T) {
		rm := NewResourceMonitor(ResourceMonitorConfig{})
		rm.Start(10 * time.Millisecond)
		rm.Start(10 * time.Millisecond)
		rm.Stop()
		rm.Stop()
	})
}

func TestRodPage_TimeoutReleased(t *testing.T) {
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("未找到可用的浏览器")
	}
	l := launcher.New().Bin(bin).Headless(true).NoSandbox(true)
	controlURL, err := l.Launch()
	if err != nil {
		t.Skipf("启动浏览器失败: %v", err)
	}
	defer l.Kill()
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		t.Skipf("连接浏览器失败: %v", err)
	}
	defer browser.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(serpHTML))
	}))
	defer srv.Close()

	tab, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		t.Fatalf("创建标签页失败: %v", err)
	}
	page := NewRodPage(tab, time.Second)
	ctx := context.Background()

	if err := page.Navigate(ctx, srv.URL, 10*time.Second); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if err := page.WaitFor(ctx, "#b_results", 5*time.Second); err != nil {
		t.Fatalf("WaitFor() error = %v", err)
	}
	if page.Page().GetContext().Err() != nil {
		t.Error("超时释放不应影响原标签页")
	}

	scoped, release := page.withTimeout(ctx, time.Hour)
	release()
	if !errors.Is(scoped.GetContext().Err(), context.Canceled) {
		t.Errorf("release 后计时器应被取消, err = %v", scoped.GetContext().Err())
	}
}
