package serp

import (
	"context"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
)

// BrowserPage 采集流程需要的浏览器能力
// 由 crawlers.RodPage / crawlers.StaticPage 实现,测试中使用假实现
type BrowserPage interface {
	// Navigate 打开URL并等待加载完成
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// URL 当前地址
	URL() string
	// HTML 当前文档的完整HTML
	HTML(ctx context.Context) (string, error)
	// Has 立即检查元素是否存在,不等待
	Has(ctx context.Context, selector string) (bool, error)
	// WaitFor 等待元素出现
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Click 点击元素
	Click(ctx context.Context, selector string) error
	// ClickAndWait 点击元素并等待页面跳转
	ClickAndWait(ctx context.Context, selector string, timeout time.Duration) error
	// ClickAt 在页面绝对坐标处点击
	ClickAt(ctx context.Context, x, y float64) error
	// BoundingBox 元素位置
	BoundingBox(ctx context.Context, selector string) (models.ElementBox, error)
	// ScreenshotElement 截取元素并写入文件
	ScreenshotElement(ctx context.Context, selector, path string) error
	// Eval 在页面中执行函数,例如 "() => { ... }"
	Eval(ctx context.Context, js string) error
	// Search 在输入框中输入文本并回车,等待跳转
	Search(ctx context.Context, inputSelector, text string, timeout time.Duration) error
}

// CaptchaSolver 外部验证码识别服务
type CaptchaSolver interface {
	Solve(ctx context.Context, task models.CaptchaTask) ([]models.Point, error)
}

// ResultSink 结果输出
type ResultSink interface {
	// PostRow 每个关键词一行汇总
	PostRow(ctx context.Context, row models.TableRow) error
	// PostRecord 每条结果或相关词块一条记录
	PostRecord(ctx context.Context, record models.StorageRecord) error
}

// DedupSet 跨worker关键词去重
type DedupSet interface {
	MarkOrClaim(ctx context.Context, keyword string) bool
	Contains(keyword string) bool
}

// Broadcaster 将完成的结果通知其他worker
type Broadcaster interface {
	Publish(ctx context.Context, sender string, result models.SerpResult) error
}
