package serp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
)

// ErrNoResults 等待超时仍未出现搜索结果
var ErrNoResults = errors.New("页面没有搜索结果")

// PaginationWalker 逐页采集搜索结果
type PaginationWalker struct {
	page      BrowserPage
	profile   Profile
	extractor *ResultExtractor
	challenge *ChallengeSolver
	sink      ResultSink

	pageLimit         int
	paginationTimeout time.Duration
	selectorTimeout   time.Duration
}

// NewPaginationWalker 创建翻页采集器
func NewPaginationWalker(page BrowserPage, profile Profile, challenge *ChallengeSolver, sink ResultSink, pageLimit int, paginationTimeout, selectorTimeout time.Duration) *PaginationWalker {
	if pageLimit < 1 {
		pageLimit = 1
	}
	return &PaginationWalker{
		page:              page,
		profile:           profile,
		extractor:         NewResultExtractor(profile),
		challenge:         challenge,
		sink:              sink,
		pageLimit:         pageLimit,
		paginationTimeout: paginationTimeout,
		selectorTimeout:   selectorTimeout,
	}
}

// Walk 从当前页面开始采集,直到达到页数上限或没有下一页
// 结果追加到 serp.SearchResults,返回最终序号(下一条结果将使用的序号)
func (w *PaginationWalker) Walk(ctx context.Context, serp *models.SerpResult) (int, error) {
	position := len(serp.SearchResults) + 1

	doc, position, err := w.collectPage(ctx, serp, position)
	if err != nil {
		return position, err
	}

	for visited := 1; visited < w.pageLimit; visited++ {
		next, ok := w.extractor.NextPage(doc)
		if !ok {
			utils.Debugf("[%s] 没有更多结果页", serp.Keyword)
			break
		}

		utils.Infof("[%s] 打开第%d页: %s", serp.Keyword, visited+1, next)
		if err := w.page.Navigate(ctx, next, w.paginationTimeout); err != nil {
			return position, fmt.Errorf("打开第%d页失败: %w", visited+1, err)
		}
		if w.challenge != nil {
			if err := w.challenge.Clear(ctx); err != nil {
				return position, err
			}
		}

		doc, position, err = w.collectPage(ctx, serp, position)
		if err != nil {
			return position, fmt.Errorf("采集第%d页失败: %w", visited+1, err)
		}
	}

	serp.AmountOfResults = position - 1
	return position, nil
}

// collectPage 提取当前页结果并逐条写入存储
func (w *PaginationWalker) collectPage(ctx context.Context, serp *models.SerpResult, position int) (*goquery.Document, int, error) {
	if err := w.page.WaitFor(ctx, w.profile.ResultsReady, w.selectorTimeout); err != nil {
		return nil, position, fmt.Errorf("%w: %v", ErrNoResults, err)
	}

	doc, err := loadDocument(ctx, w.page)
	if err != nil {
		return nil, position, err
	}

	results, next := w.extractor.Extract(doc, position)
	for _, result := range results {
		serp.SearchResults = append(serp.SearchResults, result)
		if w.sink != nil {
			if err := w.sink.PostRecord(ctx, models.NewResultRecord(serp.Keyword, result)); err != nil {
				utils.Warnf("[%s] 写入结果失败: %v", serp.Keyword, err)
			}
		}
	}
	utils.Debugf("[%s] 本页采集%d条结果", serp.Keyword, len(results))

	return doc, next, nil
}
