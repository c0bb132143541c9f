package serp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/metrics"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
)

// ErrAlreadyHarvested 关键词已被本worker或其他worker采集
var ErrAlreadyHarvested = errors.New("关键词已被采集")

// Options 采集参数
type Options struct {
	Profile         Profile
	PageLimit       int
	AlsoSearchedFor bool
	MaxDepth        int
	// DirectSearch 直接打开搜索URL,不在首页输入
	DirectSearch bool

	NavigationTimeout      time.Duration
	PaginationTimeout      time.Duration
	DepthNavigationTimeout time.Duration
	SelectorTimeout        time.Duration

	Challenge ChallengeConfig
}

// OptionsFromConfig 由采集配置生成参数
func OptionsFromConfig(cfg models.HarvestConfig, profile Profile, tempDir string) Options {
	return Options{
		Profile:                profile,
		PageLimit:              cfg.PageLimit,
		AlsoSearchedFor:        cfg.AlsoSearchedFor,
		MaxDepth:               cfg.MaxDepth,
		DirectSearch:           cfg.Mode == models.ModeStatic,
		NavigationTimeout:      cfg.NavigationTimeout,
		PaginationTimeout:      cfg.PaginationTimeout,
		DepthNavigationTimeout: cfg.DepthNavigationTimeout,
		SelectorTimeout:        cfg.SelectorTimeout,
		Challenge: ChallengeConfig{
			MaxAttempts:       cfg.CaptchaMaxAttempts,
			MaxDuration:       cfg.CaptchaMaxDuration,
			NavigationTimeout: cfg.NavigationTimeout,
			TempDir:           tempDir,
		},
	}
}

// expansionEnabled 深度在 (0, MaxSearchDepth) 之间才递归
func (o Options) expansionEnabled() bool {
	return o.AlsoSearchedFor && o.MaxDepth > 0 && o.MaxDepth < models.MaxSearchDepth
}

// Harvester 单个worker的采集状态
// 持有当前结果、已完成结果和各深度的相关词
type Harvester struct {
	id   string
	page BrowserPage
	opts Options

	challenge *ChallengeSolver
	walker    *PaginationWalker
	collector *SuggestionCollector

	dedup DedupSet
	bus   Broadcaster
	sink  ResultSink

	current *models.SerpResult
	results []models.SerpResult
	depths  []models.SearchDepth
	failed  int
	rootErr error
}

// NewHarvester 创建采集器
// id 用于广播时标识发送者
func NewHarvester(id string, page BrowserPage, solver CaptchaSolver, dedup DedupSet, bus Broadcaster, sink ResultSink, opts Options) *Harvester {
	challenge := NewChallengeSolver(page, solver, opts.Profile, opts.Challenge)
	return &Harvester{
		id:        id,
		page:      page,
		opts:      opts,
		challenge: challenge,
		walker:    NewPaginationWalker(page, opts.Profile, challenge, sink, opts.PageLimit, opts.PaginationTimeout, opts.SelectorTimeout),
		collector: NewSuggestionCollector(opts.Profile),
		dedup:     dedup,
		bus:       bus,
		sink:      sink,
		results:   make([]models.SerpResult, 0),
		depths:    make([]models.SearchDepth, 0),
	}
}

// Results 已完成的关键词结果
func (h *Harvester) Results() []models.SerpResult {
	return h.results
}

// Depths 各深度的相关词快照
func (h *Harvester) Depths() []models.SearchDepth {
	return h.depths
}

// Failed 失败的关键词数量(不含任务级错误)
func (h *Harvester) Failed() int {
	return h.failed
}

// RootError 第0层关键词的采集错误
// 该错误已写入汇总表,相关词递归不受影响
func (h *Harvester) RootError() error {
	return h.rootErr
}

// Run 采集任务关键词,按配置递归相关词
// 返回的错误为任务级错误,由调用方记录
func (h *Harvester) Run(ctx context.Context, keyword string) error {
	keyword = models.NormalizeKeyword(keyword)
	if keyword == "" {
		return fmt.Errorf("关键词为空")
	}

	if h.dedup != nil && h.dedup.MarkOrClaim(ctx, keyword) {
		utils.Infof("[%s] 已被其他worker采集,跳过", keyword)
		metrics.DedupSkips.WithLabelValues(h.opts.Profile.Name).Inc()
		return ErrAlreadyHarvested
	}

	if err := h.search(ctx, keyword); err != nil {
		return err
	}

	suggestions, err := h.harvest(ctx, keyword, 0)
	h.rootErr = err
	h.depths = append(h.depths, models.SearchDepth{
		SearchDepthValue:  0,
		SearchSuggestions: suggestions,
	})

	if h.opts.expansionEnabled() {
		h.Expand(ctx, 1, h.opts.MaxDepth)
	}
	return nil
}

// search 第0层: 打开搜索页并处理验证码
func (h *Harvester) search(ctx context.Context, keyword string) error {
	profile := h.opts.Profile

	if profile.SearchInput == "" || h.opts.DirectSearch {
		target := profile.SearchURL(keyword)
		utils.Infof("[%s] 打开搜索页: %s", keyword, target)
		if err := h.page.Navigate(ctx, target, h.opts.NavigationTimeout); err != nil {
			return fmt.Errorf("打开搜索页失败: %w", err)
		}
		return h.challenge.Clear(ctx)
	}

	utils.Infof("[%s] 打开首页: %s", keyword, profile.BaseURL)
	if err := h.page.Navigate(ctx, profile.BaseURL, h.opts.NavigationTimeout); err != nil {
		return fmt.Errorf("打开首页失败: %w", err)
	}
	if err := h.challenge.Clear(ctx); err != nil {
		return err
	}

	utils.Infof("[%s] 输入关键词搜索", keyword)
	if err := h.page.Search(ctx, profile.SearchInput, keyword, h.opts.NavigationTimeout); err != nil {
		return fmt.Errorf("搜索关键词失败: %w", err)
	}
	return h.challenge.Clear(ctx)
}

// Expand 从 currentDepth 逐层处理到 maxDepth
func (h *Harvester) Expand(ctx context.Context, currentDepth, maxDepth int) {
	for depth := currentDepth; depth <= maxDepth; depth++ {
		if ctx.Err() != nil {
			utils.Warnf("任务已超时或取消,停止在第%d层", depth)
			return
		}

		level := make([]models.SearchSuggestion, 0)
		for _, candidate := range h.frontier(depth - 1) {
			keyword := models.NormalizeKeyword(candidate.Suggestion)
			if keyword == "" {
				continue
			}
			if h.dedup != nil && h.dedup.MarkOrClaim(ctx, keyword) {
				utils.Debugf("[%s] 已采集,跳过 (深度%d)", keyword, depth)
				metrics.DedupSkips.WithLabelValues(h.opts.Profile.Name).Inc()
				continue
			}

			found, err := h.expandOne(ctx, candidate.URL, keyword, depth)
			level = append(level, found...)
			if err != nil {
				utils.Warnf("[%s] 深度%d采集失败: %v", keyword, depth, err)
			}
		}

		h.depths = append(h.depths, models.SearchDepth{
			SearchDepthValue:  depth,
			SearchSuggestions: level,
		})
		utils.Infof("第%d层完成,发现%d个相关词", depth, len(level))
	}
}

// frontier 返回指定深度记录的相关词
func (h *Harvester) frontier(depth int) []models.SearchSuggestion {
	for _, d := range h.depths {
		if d.SearchDepthValue == depth {
			return d.SearchSuggestions
		}
	}
	return nil
}

// expandOne 打开相关词页面并采集
func (h *Harvester) expandOne(ctx context.Context, target, keyword string, depth int) ([]models.SearchSuggestion, error) {
	utils.Infof("[%s] 打开相关词页面 (深度%d): %s", keyword, depth, target)
	if err := h.page.Navigate(ctx, target, h.opts.DepthNavigationTimeout); err != nil {
		h.fail(ctx, keyword, err)
		return nil, fmt.Errorf("打开相关词页面失败: %w", err)
	}
	if err := h.challenge.Clear(ctx); err != nil {
		h.fail(ctx, keyword, err)
		return nil, err
	}
	return h.harvest(ctx, keyword, depth)
}

// harvest 采集当前页面的相关词和搜索结果
func (h *Harvester) harvest(ctx context.Context, keyword string, depth int) ([]models.SearchSuggestion, error) {
	started := time.Now()
	h.current = models.NewSerpResult(keyword)

	suggestions, err := h.collector.Collect(ctx, h.page, keyword)
	if err != nil {
		utils.Warnf("[%s] 收集相关词失败: %v", keyword, err)
		suggestions = make([]models.SearchSuggestion, 0)
	}
	h.current.RelatedKeywords = suggestions
	if len(suggestions) > 0 {
		utils.Debugf("[%s] 发现%d个相关词", keyword, len(suggestions))
		h.record(ctx, models.NewSuggestionsRecord(keyword, suggestions))
	}

	if _, err := h.walker.Walk(ctx, h.current); err != nil {
		utils.Errorf("[%s] 采集结果失败: %v", keyword, err)
		h.fail(ctx, keyword, err)
		return suggestions, err
	}

	completed := *h.current
	h.results = append(h.results, completed)
	metrics.KeywordsHarvested.WithLabelValues(h.opts.Profile.Name, "success").Inc()
	metrics.ResultsCollected.WithLabelValues(h.opts.Profile.Name).Add(float64(completed.AmountOfResults))
	metrics.KeywordDuration.WithLabelValues(h.opts.Profile.Name).Observe(time.Since(started).Seconds())

	h.row(ctx, models.TableRow{
		Keyword:         keyword,
		AmountOfResults: completed.AmountOfResults,
		LinksCollected:  len(completed.SearchResults),
		JobResult:       true,
	})
	h.record(ctx, models.NewSerpRecord(&completed))

	if h.bus != nil {
		if err := h.bus.Publish(ctx, h.id, completed); err != nil {
			utils.Warnf("[%s] 广播结果失败: %v", keyword, err)
		}
	}

	utils.Infof("[%s] 完成,共%d条结果 (深度%d)", keyword, completed.AmountOfResults, depth)
	return suggestions, nil
}

// fail 记录关键词级失败
func (h *Harvester) fail(ctx context.Context, keyword string, err error) {
	h.failed++
	metrics.KeywordsHarvested.WithLabelValues(h.opts.Profile.Name, "failed").Inc()
	h.row(ctx, models.TableRow{Keyword: keyword, Error: err.Error()})
}

func (h *Harvester) row(ctx context.Context, row models.TableRow) {
	if h.sink == nil {
		return
	}
	if err := h.sink.PostRow(ctx, row); err != nil {
		utils.Warnf("[%s] 写入汇总失败: %v", row.Keyword, err)
	}
}

func (h *Harvester) record(ctx context.Context, record models.StorageRecord) {
	if h.sink == nil {
		return
	}
	if err := h.sink.PostRecord(ctx, record); err != nil {
		utils.Warnf("[%s] 写入记录失败: %v", record.Keyword, err)
	}
}
