package serp

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"golang.org/x/net/html"
)

// parseDocument 解析HTML为goquery文档
func parseDocument(raw string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// loadDocument 读取页面HTML并解析
func loadDocument(ctx context.Context, page BrowserPage) (*goquery.Document, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取页面HTML失败: %w", err)
	}
	return parseDocument(raw)
}

// ResultExtractor 单页结果提取器
type ResultExtractor struct {
	profile Profile
}

// NewResultExtractor 创建提取器
func NewResultExtractor(profile Profile) *ResultExtractor {
	return &ResultExtractor{profile: profile}
}

// Extract 提取一页的自然结果
// position 为本页第一条结果的序号,返回结果和下一个可用序号
// 缺少链接的条目被跳过且不占用序号,缺少摘要时摘要为空
func (e *ResultExtractor) Extract(doc *goquery.Document, position int) ([]models.SearchResult, int) {
	results := make([]models.SearchResult, 0)

	doc.Find(e.profile.ResultItem).Each(func(_ int, item *goquery.Selection) {
		link := item.Find(e.profile.ResultLink).First()
		if link.Length() == 0 {
			return
		}
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		snippet := ""
		if node := item.Find(e.profile.ResultSnippet).First(); node.Length() > 0 {
			snippet = skipRunes(strings.TrimSpace(node.Text()), e.profile.SnippetSkipRunes)
		}

		results = append(results, models.SearchResult{
			Position:    position,
			URL:         strings.TrimSpace(href),
			AnchorLink:  strings.TrimSpace(link.Text()),
			TextSnippet: snippet,
		})
		position++
	})

	return results, position
}

// NextPage 返回下一页地址,分页控件不存在时返回false
func (e *ResultExtractor) NextPage(doc *goquery.Document) (string, bool) {
	links := doc.Find(e.profile.PagerLink)
	if links.Length() == 0 {
		return "", false
	}
	href, ok := links.Last().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	next, err := e.profile.Resolve(href)
	if err != nil {
		return "", false
	}
	return next, true
}

// skipRunes 去掉开头n个字符
func skipRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return ""
	}
	return strings.TrimSpace(string(runes[n:]))
}
