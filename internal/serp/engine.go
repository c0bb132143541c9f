package serp

import (
	"fmt"
	"net/url"
	"strings"
)

// ChallengeSelectors 验证码页面的选择器
type ChallengeSelectors struct {
	GatePath       string // 验证码页面URL特征,为空表示该引擎没有验证码
	AdvancedFooter string // 图片验证码底栏,存在说明已进入图片阶段
	Checkbox       string // "我不是机器人" 复选框
	CookieAccept   string // cookie 同意按钮
	FormActions    string // 截图前需要隐藏的操作区
	Panel          string // 截图区域
	View           string // 点击坐标的参照元素
	Submit         string // 提交按钮
}

// Profile 搜索引擎页面结构描述
type Profile struct {
	Name    string
	BaseURL string

	// SearchInput 非空时在首页输入关键词搜索,否则直接打开搜索URL
	SearchInput string
	// SearchTemplate 搜索URL模板,%s 为编码后的关键词
	SearchTemplate string
	// SpacePlus 关键词中的空格替换为 '+' 而不是 %20
	SpacePlus bool

	Challenge ChallengeSelectors

	ResultsReady     string // 翻页后等待出现的元素
	ResultItem       string
	ResultLink       string
	ResultSnippet    string
	SnippetSkipRunes int // 摘要开头需要去掉的字符数

	PagerLink string // 分页链接,取最后一个作为下一页

	SuggestionContainer string
	SuggestionLink      string
	Suggestions         SuggestionStrategy
}

// Yandex ya.ru
var Yandex = Profile{
	Name:           "yandex",
	BaseURL:        "https://ya.ru",
	SearchInput:    "#text",
	SearchTemplate: "https://ya.ru/search/?text=%s",
	Challenge: ChallengeSelectors{
		GatePath:       "/showcaptcha",
		AdvancedFooter: "div.AdvancedCaptcha-Footer",
		Checkbox:       "div.CheckboxCaptcha-Anchor > div",
		CookieAccept:   "div.gdpr-popup-v3-button.gdpr-popup-v3-button_id_all",
		FormActions:    "#advanced-captcha-form > div > div.AdvancedCaptcha-FormActions",
		Panel:          "#advanced-captcha-form > div",
		View:           "div.AdvancedCaptcha-View",
		Submit:         "button.CaptchaButton.CaptchaButton_view_action > div",
	},
	ResultsReady:        "#search-result",
	ResultItem:          "#search-result li.serp-item",
	ResultLink:          "div.VanillaReact a",
	ResultSnippet:       ".OrganicTextContentSpan",
	PagerLink:           "div.Pager-Content div a",
	SuggestionContainer: "div.RelatedBottom-Items",
	SuggestionLink:      "a",
	Suggestions:         AttributeSuggestions{Attr: "title"},
}

// Bing www.bing.com
var Bing = Profile{
	Name:                "bing",
	BaseURL:             "https://www.bing.com",
	SearchTemplate:      "https://www.bing.com/search?q=%s",
	SpacePlus:           true,
	ResultsReady:        "#b_results li.b_algo h2 a",
	ResultItem:          "#b_results li.b_algo",
	ResultLink:          "h2 a",
	ResultSnippet:       `div p[class*="b_lineclamp"]`,
	SnippetSkipRunes:    3,
	PagerLink:           "li.b_pag li a",
	SuggestionContainer: "#brsv3",
	SuggestionLink:      "li a",
	Suggestions:         TextSuggestions{},
}

// ProfileByName 按名称查找引擎
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yandex", "ya", "ya.ru":
		return Yandex, nil
	case "bing":
		return Bing, nil
	default:
		return Profile{}, fmt.Errorf("不支持的搜索引擎: %s", name)
	}
}

// SearchURL 构造关键词的搜索地址
// 关键词按查询参数转义,SpacePlus 为 false 时空格写成 %20
func (p Profile) SearchURL(keyword string) string {
	encoded := url.QueryEscape(keyword)
	if !p.SpacePlus {
		// 字面量 + 已被转义为 %2B,剩下的 + 都来自空格
		encoded = strings.ReplaceAll(encoded, "+", "%20")
	}
	return fmt.Sprintf(p.SearchTemplate, encoded)
}

// IsGate 判断URL是否为验证码页面
func (p Profile) IsGate(pageURL string) bool {
	return p.Challenge.GatePath != "" && strings.Contains(pageURL, p.Challenge.GatePath)
}

// Resolve 将相对链接解析为引擎域名下的绝对地址
func (p Profile) Resolve(href string) (string, error) {
	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("解析引擎地址失败: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("解析链接失败 [%s]: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
