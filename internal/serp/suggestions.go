package serp

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
)

// SuggestionStrategy 从链接元素读取相关词文本
// 各搜索引擎的写法不同: ya.ru 放在 title 属性, bing 是链接文本
type SuggestionStrategy interface {
	SuggestionText(link *goquery.Selection) string
}

// AttributeSuggestions 读取属性
type AttributeSuggestions struct {
	Attr string
}

// SuggestionText 实现 SuggestionStrategy
func (a AttributeSuggestions) SuggestionText(link *goquery.Selection) string {
	value, _ := link.Attr(a.Attr)
	return strings.TrimSpace(value)
}

// TextSuggestions 读取文本内容
type TextSuggestions struct{}

// SuggestionText 实现 SuggestionStrategy
func (TextSuggestions) SuggestionText(link *goquery.Selection) string {
	return strings.TrimSpace(link.Text())
}

// SuggestionCollector 相关搜索词收集器
type SuggestionCollector struct {
	profile Profile
}

// NewSuggestionCollector 创建收集器
func NewSuggestionCollector(profile Profile) *SuggestionCollector {
	return &SuggestionCollector{profile: profile}
}

// Collect 收集当前页面的相关词
// 页面没有相关词区块时返回空列表
func (c *SuggestionCollector) Collect(ctx context.Context, page BrowserPage, keyword string) ([]models.SearchSuggestion, error) {
	doc, err := loadDocument(ctx, page)
	if err != nil {
		return nil, err
	}
	return c.FromDocument(doc), nil
}

// FromDocument 从已解析的文档中提取相关词
func (c *SuggestionCollector) FromDocument(doc *goquery.Document) []models.SearchSuggestion {
	suggestions := make([]models.SearchSuggestion, 0)

	container := doc.Find(c.profile.SuggestionContainer).First()
	if container.Length() == 0 {
		return suggestions
	}

	strategy := c.profile.Suggestions
	if strategy == nil {
		strategy = TextSuggestions{}
	}

	container.Find(c.profile.SuggestionLink).Each(func(_ int, link *goquery.Selection) {
		// 没有链接的条目会解析成引擎首页,跳过
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		target, err := c.profile.Resolve(href)
		if err != nil {
			return
		}
		suggestions = append(suggestions, models.SearchSuggestion{
			Suggestion: strategy.SuggestionText(link),
			URL:        target,
		})
	})

	return suggestions
}
