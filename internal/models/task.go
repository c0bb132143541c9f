package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
	TaskStatusSkipped   TaskStatus = "skipped"   // 已被其他worker采集
)

// HarvestMode 浏览模式
type HarvestMode string

const (
	ModeDynamic HarvestMode = "dynamic" // go-rod 浏览器
	ModeStatic  HarvestMode = "static"  // colly 直接请求,不支持验证码
)

// MaxSearchDepth 递归深度上限(不含)
const MaxSearchDepth = 5

// HarvestConfig 采集配置
type HarvestConfig struct {
	Engine          string      `json:"engine" mapstructure:"engine"`                       // 搜索引擎 (yandex|bing)
	Mode            HarvestMode `json:"mode" mapstructure:"mode"`                           // 浏览模式
	PageLimit       int         `json:"page_limit" mapstructure:"page_limit"`               // 每个关键词翻页数
	AlsoSearchedFor bool        `json:"also_searched_for" mapstructure:"also_searched_for"` // 是否递归相关词
	MaxDepth        int         `json:"max_depth" mapstructure:"max_depth"`                 // 递归深度
	Threads         int         `json:"threads" mapstructure:"threads"`                     // 并发worker数
	Headless        bool        `json:"headless" mapstructure:"headless"`                   // 无头模式

	NavigationTimeout      time.Duration `json:"navigation_timeout" mapstructure:"navigation_timeout"`             // 首页导航超时
	PaginationTimeout      time.Duration `json:"pagination_timeout" mapstructure:"pagination_timeout"`             // 翻页导航超时
	DepthNavigationTimeout time.Duration `json:"depth_navigation_timeout" mapstructure:"depth_navigation_timeout"` // 相关词导航超时
	SelectorTimeout        time.Duration `json:"selector_timeout" mapstructure:"selector_timeout"`                 // 选择器等待超时
	TaskTimeout            time.Duration `json:"task_timeout" mapstructure:"task_timeout"`                         // 单个任务总时长

	CaptchaMaxAttempts int           `json:"captcha_max_attempts" mapstructure:"captcha_max_attempts"` // 验证码最大尝试次数
	CaptchaMaxDuration time.Duration `json:"captcha_max_duration" mapstructure:"captcha_max_duration"` // 验证码最长耗时

	// 资源配置
	SafetyReserveMemory int `json:"safety_reserve_memory" mapstructure:"safety_reserve_memory"` // MB
	SafetyThreshold     int `json:"safety_threshold" mapstructure:"safety_threshold"`           // MB
	CPULoadThreshold    int `json:"cpu_load_threshold" mapstructure:"cpu_load_threshold"`       // %
	MaxTabsLimit        int `json:"max_tabs_limit" mapstructure:"max_tabs_limit"`
}

// Validate 验证配置
func (c *HarvestConfig) Validate() error {
	switch strings.ToLower(c.Engine) {
	case "yandex", "bing":
	default:
		return fmt.Errorf("不支持的搜索引擎: %s", c.Engine)
	}
	if c.Mode != ModeDynamic && c.Mode != ModeStatic {
		return fmt.Errorf("无效的浏览模式: %s", c.Mode)
	}
	if c.PageLimit < 1 || c.PageLimit > 50 {
		return fmt.Errorf("翻页数必须在1-50之间")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("递归深度不能为负数")
	}
	if c.Threads < 1 || c.Threads > 64 {
		return fmt.Errorf("并发数必须在1-64之间")
	}
	if c.CaptchaMaxAttempts < 1 {
		return fmt.Errorf("验证码尝试次数至少为1")
	}
	return nil
}

// ExpansionEnabled 是否进入相关词递归
// 深度为0或>=5时即使开启也不递归
func (c *HarvestConfig) ExpansionEnabled() bool {
	return c.AlsoSearchedFor && c.MaxDepth > 0 && c.MaxDepth < MaxSearchDepth
}

// HarvestTask 单个关键词任务
type HarvestTask struct {
	ID        string     `json:"id"`
	Keyword   string     `json:"keyword"`
	Proxy     *Proxy     `json:"-"`
	IsLast    bool       `json:"is_last"`
	CreatedAt time.Time  `json:"created_at"`
	Status    TaskStatus `json:"status"`
}

// NewHarvestTask 创建任务
func NewHarvestTask(keyword string, proxy *Proxy) *HarvestTask {
	return &HarvestTask{
		ID:        generateID(),
		Keyword:   keyword,
		Proxy:     proxy,
		CreatedAt: time.Now(),
		Status:    TaskStatusPending,
	}
}

// HarvestOutcome 单个任务的执行结果
type HarvestOutcome struct {
	TaskID    string        `json:"task_id"`
	Keyword   string        `json:"keyword"`
	Status    TaskStatus    `json:"status"`
	Results   []SerpResult  `json:"results"`
	Depths    []SearchDepth `json:"depths,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  float64       `json:"duration"` // 秒
}

// CollectedLinks 该任务采集的链接总数
func (o *HarvestOutcome) CollectedLinks() int {
	total := 0
	for _, r := range o.Results {
		total += len(r.SearchResults)
	}
	return total
}

// ToJSON 序列化为JSON
func (o *HarvestOutcome) ToJSON() ([]byte, error) {
	return json.MarshalIndent(o, "", "  ")
}

// HarvestSummary 整体统计
type HarvestSummary struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	FailedTasks    int     `json:"failed_tasks"`
	SkippedTasks   int     `json:"skipped_tasks"`
	TotalKeywords  int     `json:"total_keywords"` // 含递归相关词
	TotalLinks     int     `json:"total_links"`
	Duration       float64 `json:"duration"`
}

// Add 累加单个任务结果
func (s *HarvestSummary) Add(o HarvestOutcome) {
	s.TotalTasks++
	switch o.Status {
	case TaskStatusCompleted:
		s.CompletedTasks++
	case TaskStatusFailed:
		s.FailedTasks++
	case TaskStatusSkipped:
		s.SkippedTasks++
	}
	s.TotalKeywords += len(o.Results)
	s.TotalLinks += o.CollectedLinks()
}
