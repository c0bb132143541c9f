package models

import (
	"time"

	"github.com/google/uuid"
)

// SearchResult 单条自然搜索结果
// Position 在同一关键词的所有翻页中连续递增,从1开始
type SearchResult struct {
	Position    int    `json:"position"`
	URL         string `json:"url"`
	AnchorLink  string `json:"anchorLink"`
	TextSnippet string `json:"textSnippet"`
}

// SearchSuggestion 相关搜索词及其跳转地址
type SearchSuggestion struct {
	Suggestion string `json:"suggestion"`
	URL        string `json:"url"`
}

// SerpResult 单个关键词的完整采集结果
type SerpResult struct {
	Keyword         string             `json:"keyword"`
	RelatedKeywords []SearchSuggestion `json:"relatedKeywords"`
	AmountOfResults int                `json:"amountOfResults"`
	SearchResults   []SearchResult     `json:"searchResults"`
}

// NewSerpResult 创建空的采集结果
func NewSerpResult(keyword string) *SerpResult {
	return &SerpResult{
		Keyword:         keyword,
		RelatedKeywords: make([]SearchSuggestion, 0),
		SearchResults:   make([]SearchResult, 0),
	}
}

// Consistent 检查结果数量与结果列表是否一致
func (r *SerpResult) Consistent() bool {
	return r.AmountOfResults == len(r.SearchResults)
}

// SearchDepth 某一深度发现的全部相关词快照
type SearchDepth struct {
	SearchDepthValue  int                `json:"searchDepthValue"`
	SearchSuggestions []SearchSuggestion `json:"searchSuggestions"`
}

// TableRow 每个关键词一行的汇总结果
type TableRow struct {
	Keyword         string `json:"keyword"`
	AmountOfResults int    `json:"amount_of_results"`
	LinksCollected  int    `json:"links_collected"`
	JobResult       bool   `json:"job_result"`
	Error           string `json:"error,omitempty"`
}

// TableHeader 汇总表列名
var TableHeader = []string{"Keyword", "Amount of results", "Amount of links collected", "Job result"}

// RecordKind 存储记录类型
type RecordKind string

const (
	RecordResult      RecordKind = "result"      // 单条搜索结果
	RecordSuggestions RecordKind = "suggestions" // 相关搜索词块
	RecordSerp        RecordKind = "serp"        // 完整关键词结果
)

// StorageRecord 逐条持久化的记录
type StorageRecord struct {
	ID          string             `json:"id"`
	Kind        RecordKind         `json:"kind"`
	Keyword     string             `json:"keyword"`
	Position    int                `json:"position,omitempty"`
	AnchorLink  string             `json:"anchorLink,omitempty"`
	TextSnippet string             `json:"textSnippet,omitempty"`
	URL         string             `json:"url,omitempty"`
	Suggestions []SearchSuggestion `json:"suggestions,omitempty"`
	Serp        *SerpResult        `json:"serp,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// recordFields 各类型记录对应的字段
var recordFields = map[RecordKind][]string{
	RecordResult:      {"keyword", "position", "anchor", "snippet", "url"},
	RecordSuggestions: {"keyword", "suggestions"},
	RecordSerp:        {"keyword", "relatedKeywords", "amountOfResults", "searchResults"},
}

// Fields 返回记录包含的字段名
func (r StorageRecord) Fields() []string {
	return recordFields[r.Kind]
}

// NewResultRecord 由搜索结果创建记录
func NewResultRecord(keyword string, result SearchResult) StorageRecord {
	return StorageRecord{
		ID:          uuid.NewString(),
		Kind:        RecordResult,
		Keyword:     keyword,
		Position:    result.Position,
		AnchorLink:  result.AnchorLink,
		TextSnippet: result.TextSnippet,
		URL:         result.URL,
		CreatedAt:   time.Now(),
	}
}

// NewSuggestionsRecord 由相关词列表创建记录
func NewSuggestionsRecord(keyword string, suggestions []SearchSuggestion) StorageRecord {
	return StorageRecord{
		ID:          uuid.NewString(),
		Kind:        RecordSuggestions,
		Keyword:     keyword,
		Suggestions: suggestions,
		CreatedAt:   time.Now(),
	}
}

// NewSerpRecord 由完整结果创建记录
func NewSerpRecord(result *SerpResult) StorageRecord {
	return StorageRecord{
		ID:        uuid.NewString(),
		Kind:      RecordSerp,
		Keyword:   result.Keyword,
		Serp:      result,
		CreatedAt: time.Now(),
	}
}

// 验证码任务类型,由识别服务客户端映射为各自API的名称
const (
	CaptchaKindCoordinates = "coordinates" // 按顺序点击图片中的物体
)

// CaptchaTask 提交给验证码服务的任务
type CaptchaTask struct {
	Type        string `json:"type"`
	ImageBase64 string `json:"image_base64"`
	Comment     string `json:"comment,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

// Point 坐标点
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ElementBox 元素在页面中的位置
type ElementBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
