package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/crawlers"
	"github.com/RecoveryAshes/SerpHarvest/internal/dedup"
	"github.com/RecoveryAshes/SerpHarvest/internal/metrics"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/serp"
	"github.com/RecoveryAshes/SerpHarvest/internal/sink"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// RunnerDeps 运行依赖
type RunnerDeps struct {
	Profile serp.Profile
	Pages   PageFactory
	Solver  serp.CaptchaSolver // 为nil时遇到图片验证码直接失败
	Bus     dedup.Bus
	Arbiter dedup.Arbiter // 为nil时为尽力去重
	Sink    serp.ResultSink
	Table   *sink.Table
	Proxies []*models.Proxy
}

// Runner 并发执行关键词任务
// 每个worker拥有一个去重副本,跨任务保留已采集的关键词
type Runner struct {
	cfg  *Config
	deps RunnerDeps

	runID     string
	startedAt time.Time
	tempDir   string
	quiet     bool

	mu       sync.Mutex
	total    int
	outcomes []models.HarvestOutcome
	running  map[string]string // taskID -> keyword
}

// NewRunner 创建任务执行器
func NewRunner(cfg *Config, deps RunnerDeps) *Runner {
	if deps.Bus == nil {
		deps.Bus = dedup.NewLocalBus()
	}
	return &Runner{
		cfg:     cfg,
		deps:    deps,
		runID:   uuid.NewString(),
		tempDir: cfg.Browser.TempDir,
		running: make(map[string]string),
	}
}

// RunID 本次运行ID
func (r *Runner) RunID() string {
	return r.runID
}

// Run 采集全部关键词,返回报告
// 单个任务失败不影响其他任务,只有参数错误时返回error
func (r *Runner) Run(ctx context.Context, keywords []string) (*models.HarvestReport, error) {
	keywords, duplicates := models.DedupeKeywords(keywords)
	for _, dup := range duplicates {
		utils.Warnf("关键词重复,已忽略: %s", dup)
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("没有需要采集的关键词")
	}

	tasks := make([]*models.HarvestTask, 0, len(keywords))
	for _, kw := range keywords {
		tasks = append(tasks, models.NewHarvestTask(kw, r.pickProxy()))
	}
	tasks[len(tasks)-1].IsLast = true

	workers := min(len(tasks), r.deps.Pages.Limit(r.cfg.Harvest.Threads))

	r.mu.Lock()
	r.startedAt = time.Now()
	r.total = len(tasks)
	r.mu.Unlock()

	utils.Infof("🚀 开始采集: %d个关键词, 引擎=%s, 模式=%s, 并发=%d",
		len(tasks), r.deps.Profile.Name, r.cfg.Harvest.Mode, workers)

	var bar *progressbar.ProgressBar
	if !r.quiet {
		bar = utils.NewProgressBar(len(tasks), "采集关键词")
	}

	queue := make(chan *models.HarvestTask)
	g, gctx := errgroup.WithContext(ctx)

	// 全部订阅成功后再启动worker
	replicas := make([]*dedup.Replica, workers)
	unsubscribes := make([]func(), 0, workers)
	for i := range replicas {
		replicas[i] = dedup.NewReplica(r.workerID(i), r.deps.Arbiter)
		unsubscribe, err := r.deps.Bus.Subscribe(replicas[i].ID(), replicas[i].Receive)
		if err != nil {
			for _, u := range unsubscribes {
				u()
			}
			return nil, fmt.Errorf("订阅广播失败: %w", err)
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}

	for i, replica := range replicas {
		unsubscribe := unsubscribes[i]
		g.Go(func() error {
			defer unsubscribe()
			for task := range queue {
				r.runTask(gctx, replica, task)
				if bar != nil {
					bar.Add(1)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(queue)
		for i, task := range tasks {
			select {
			case queue <- task:
			case <-gctx.Done():
				for _, rest := range tasks[i:] {
					r.cancelled(rest, gctx.Err())
				}
				return nil
			}
		}
		return nil
	})

	g.Wait()
	if bar != nil {
		bar.Finish()
	}

	return r.report(), nil
}

// pickProxy 每个任务随机分配一个代理
func (r *Runner) pickProxy() *models.Proxy {
	if len(r.deps.Proxies) == 0 {
		return nil
	}
	return r.deps.Proxies[rand.IntN(len(r.deps.Proxies))]
}

// runTask 执行单个任务,任何错误都转为任务结果
func (r *Runner) runTask(ctx context.Context, replica *dedup.Replica, task *models.HarvestTask) {
	outcome := models.HarvestOutcome{
		TaskID:    task.ID,
		Keyword:   task.Keyword,
		Status:    models.TaskStatusRunning,
		StartedAt: time.Now(),
	}
	task.Status = models.TaskStatusRunning
	r.track(task, true)

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	defer func() {
		if rec := recover(); rec != nil {
			utils.Errorf("[%s] 任务崩溃: %v\n%s", task.Keyword, rec, debug.Stack())
			r.failTask(ctx, &outcome, fmt.Errorf("任务崩溃: %v", rec))
		}
		outcome.Duration = time.Since(outcome.StartedAt).Seconds()
		task.Status = outcome.Status
		r.track(task, false)
		r.finish(outcome)
	}()

	if r.cfg.Harvest.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Harvest.TaskTimeout)
		defer cancel()
	}

	if task.Proxy != nil {
		utils.Debugf("[%s] 使用代理 %s", task.Keyword, task.Proxy.Redacted())
	}

	page, release, err := r.deps.Pages.Open(ctx, task)
	if err != nil {
		r.failTask(ctx, &outcome, fmt.Errorf("创建页面失败: %w", err))
		return
	}
	defer release()

	opts := serp.OptionsFromConfig(r.cfg.Harvest, r.deps.Profile, r.tempDir)
	harvester := serp.NewHarvester(replica.ID(), page, r.deps.Solver, replica, r.deps.Bus, r.deps.Sink, opts)

	err = harvester.Run(ctx, task.Keyword)
	outcome.Results = harvester.Results()
	outcome.Depths = harvester.Depths()

	switch {
	case errors.Is(err, serp.ErrAlreadyHarvested):
		outcome.Status = models.TaskStatusSkipped
	case err != nil:
		r.failTask(ctx, &outcome, err)
	default:
		outcome.Status = models.TaskStatusCompleted
		if rootErr := harvester.RootError(); rootErr != nil {
			outcome.Error = rootErr.Error()
		}
	}
}

// workerID 带运行ID,多个进程共用 Redis 频道时同编号的worker不会互相屏蔽
func (r *Runner) workerID(i int) string {
	return fmt.Sprintf("%s-worker-%d", r.runID, i+1)
}

// failTask 任务级失败: 记录汇总行,不影响其他任务
func (r *Runner) failTask(ctx context.Context, outcome *models.HarvestOutcome, err error) {
	logger := utils.WithTask(outcome.TaskID, outcome.Keyword)
	logger.Error().Err(err).Msg("任务失败")

	outcome.Status = models.TaskStatusFailed
	outcome.Error = err.Error()

	if r.deps.Sink == nil {
		return
	}
	// 任务超时后仍需写入失败行
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if postErr := r.deps.Sink.PostRow(ctx, models.TableRow{Keyword: outcome.Keyword, Error: err.Error()}); postErr != nil {
		utils.Warnf("[%s] 写入汇总失败: %v", outcome.Keyword, postErr)
	}
}

// cancelled 运行被取消时未开始的任务
func (r *Runner) cancelled(task *models.HarvestTask, err error) {
	task.Status = models.TaskStatusFailed
	r.finish(models.HarvestOutcome{
		TaskID:    task.ID,
		Keyword:   task.Keyword,
		Status:    models.TaskStatusFailed,
		Error:     fmt.Sprintf("任务未执行: %v", err),
		StartedAt: time.Now(),
	})
}

func (r *Runner) track(task *models.HarvestTask, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if running {
		r.running[task.ID] = task.Keyword
	} else {
		delete(r.running, task.ID)
	}
}

func (r *Runner) finish(outcome models.HarvestOutcome) {
	metrics.TasksTotal.WithLabelValues(string(outcome.Status)).Inc()

	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()

	switch outcome.Status {
	case models.TaskStatusCompleted:
		utils.Infof("✅ [%s] 完成: %d个关键词, %d条链接 (%.1f秒)",
			outcome.Keyword, len(outcome.Results), outcome.CollectedLinks(), outcome.Duration)
	case models.TaskStatusSkipped:
		utils.Infof("⏭️  [%s] 已被其他worker采集", outcome.Keyword)
	default:
		utils.Errorf("❌ [%s] 失败: %s", outcome.Keyword, outcome.Error)
	}
}

// Outcomes 已结束的任务结果
func (r *Runner) Outcomes() []models.HarvestOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.HarvestOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// report 汇总结果
func (r *Runner) report() *models.HarvestReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &models.HarvestReport{
		RunID:          r.runID,
		Engine:         r.deps.Profile.Name,
		Mode:           r.cfg.Harvest.Mode,
		StartTime:      r.startedAt,
		EndTime:        time.Now(),
		FailedKeywords: make([]models.FailedKeyword, 0),
		Config:         r.cfg.Harvest,
	}
	report.Duration = report.EndTime.Sub(report.StartTime).Seconds()

	for _, outcome := range r.outcomes {
		report.Summary.Add(outcome)
		if outcome.Status == models.TaskStatusFailed {
			report.FailedKeywords = append(report.FailedKeywords, models.FailedKeyword{
				TaskID:   outcome.TaskID,
				Keyword:  outcome.Keyword,
				ErrorMsg: outcome.Error,
			})
		}
	}
	report.Summary.Duration = report.Duration

	if r.deps.Table != nil {
		report.Rows = r.deps.Table.Rows()
	} else {
		report.Rows = make([]models.TableRow, 0)
	}
	return report
}

// Results 所有任务采集的关键词结果
func (r *Runner) Results() []models.SerpResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	results := make([]models.SerpResult, 0)
	for _, outcome := range r.outcomes {
		results = append(results, outcome.Results...)
	}
	return results
}

// RunStatus 运行状态快照
type RunStatus struct {
	RunID     string                 `json:"run_id"`
	Engine    string                 `json:"engine"`
	StartedAt time.Time              `json:"started_at"`
	Total     int                    `json:"total"`
	Summary   models.HarvestSummary  `json:"summary"`
	Running   []string               `json:"running"`
	Resources *crawlers.MemoryStatus `json:"resources,omitempty"`
}

// Status 当前运行状态,供状态接口使用
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	status := RunStatus{
		RunID:     r.runID,
		Engine:    r.deps.Profile.Name,
		StartedAt: r.startedAt,
		Total:     r.total,
		Running:   make([]string, 0, len(r.running)),
	}
	for _, outcome := range r.outcomes {
		status.Summary.Add(outcome)
	}
	for _, keyword := range r.running {
		status.Running = append(status.Running, keyword)
	}
	r.mu.Unlock()

	if d, ok := r.deps.Pages.(*dynamicPages); ok {
		resources := d.Status()
		status.Resources = &resources
	}
	return status
}

// PrintSummary 打印汇总表和统计
func (r *Runner) PrintSummary(report *models.HarvestReport) {
	if r.deps.Table != nil {
		r.deps.Table.Print(os.Stdout)
	}

	s := report.Summary
	utils.Info("==================================================")
	utils.Info("📊 采集摘要")
	utils.Info("==================================================")
	utils.Infof("任务数: %d", s.TotalTasks)
	utils.Infof("✅ 完成: %d", s.CompletedTasks)
	utils.Infof("⏭️  跳过: %d", s.SkippedTasks)
	utils.Infof("❌ 失败: %d", s.FailedTasks)
	utils.Infof("🔑 关键词(含相关词): %d", s.TotalKeywords)
	utils.Infof("🔗 链接: %d", s.TotalLinks)
	utils.Infof("⏱️  总耗时: %.2f秒", s.Duration)
	utils.Info("==================================================")

	if s.FailedTasks > 0 {
		utils.Warn("失败的关键词:")
		for _, failed := range report.FailedKeywords {
			utils.Warnf("  - %s: %s", failed.Keyword, failed.ErrorMsg)
		}
	}
}
