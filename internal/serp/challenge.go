package serp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/metrics"
	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/google/uuid"
)

var (
	// ErrChallengePanelMissing 图片阶段找不到验证码区域
	ErrChallengePanelMissing = errors.New("验证码区域不存在,页面结构可能已变化")
	// ErrChallengeCapture 验证码截图失败
	ErrChallengeCapture = errors.New("无法截取验证码图片")
	// ErrChallengeExhausted 超过最大尝试次数或时长
	ErrChallengeExhausted = errors.New("验证码尝试次数已用尽")
	// ErrNavigationTimeout 操作后页面没有跳转
	ErrNavigationTimeout = errors.New("等待页面跳转超时")
	// ErrNoCaptchaSolver 出现图片验证码但未配置识别服务
	ErrNoCaptchaSolver = errors.New("未配置验证码识别服务")
)

const (
	captchaTaskType    = models.CaptchaKindCoordinates
	captchaMode        = "points"
	captchaComment     = "Select objects in the specified order"
	captureSettleDelay = 500 * time.Millisecond
	submitDelay        = time.Second
	clickDelayMin      = 100 * time.Millisecond
	clickDelaySpread   = 400 * time.Millisecond
)

// ChallengeOutcome 验证码处理结果
type ChallengeOutcome int

const (
	ChallengeClear     ChallengeOutcome = iota // 没有验证码
	ChallengeSolved                            // 已通过
	ChallengeExhausted                         // 达到上限仍未通过
)

// String 实现 fmt.Stringer
func (o ChallengeOutcome) String() string {
	switch o {
	case ChallengeClear:
		return "clear"
	case ChallengeSolved:
		return "solved"
	case ChallengeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// ChallengeResult 验证码处理结果及尝试次数
type ChallengeResult struct {
	Outcome  ChallengeOutcome
	Attempts int
}

// ChallengeConfig 验证码处理参数
type ChallengeConfig struct {
	MaxAttempts       int           // 最大尝试次数
	MaxDuration       time.Duration // 最长耗时,0表示不限
	NavigationTimeout time.Duration // 点击后等待跳转
	TempDir           string        // 截图目录,为空使用系统临时目录
}

// ChallengeSolver 点击式图片验证码处理器
type ChallengeSolver struct {
	page    BrowserPage
	solver  CaptchaSolver
	profile Profile
	cfg     ChallengeConfig

	pause  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
	now    func() time.Time
}

// NewChallengeSolver 创建验证码处理器
func NewChallengeSolver(page BrowserPage, solver CaptchaSolver, profile Profile, cfg ChallengeConfig) *ChallengeSolver {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &ChallengeSolver{
		page:    page,
		solver:  solver,
		profile: profile,
		cfg:     cfg,
		pause:   sleepContext,
		jitter:  clickJitter,
		now:     time.Now,
	}
}

// Solve 处理当前页面上的验证码,直到通过或达到上限
// 不在验证码页面时不做任何操作直接返回 ChallengeClear
func (c *ChallengeSolver) Solve(ctx context.Context) (ChallengeResult, error) {
	start := c.now()
	attempts := 0

	for {
		current := c.page.URL()
		if !c.profile.IsGate(current) {
			if attempts == 0 {
				return ChallengeResult{Outcome: ChallengeClear}, nil
			}
			utils.Infof("验证码已通过 (尝试%d次)", attempts)
			metrics.CaptchaOutcomes.WithLabelValues(c.profile.Name, ChallengeSolved.String()).Inc()
			return ChallengeResult{Outcome: ChallengeSolved, Attempts: attempts}, nil
		}

		if attempts >= c.cfg.MaxAttempts || (c.cfg.MaxDuration > 0 && c.now().Sub(start) >= c.cfg.MaxDuration) {
			utils.Warnf("验证码未能通过,已尝试%d次,耗时%.1f秒", attempts, c.now().Sub(start).Seconds())
			metrics.CaptchaOutcomes.WithLabelValues(c.profile.Name, ChallengeExhausted.String()).Inc()
			return ChallengeResult{Outcome: ChallengeExhausted, Attempts: attempts}, nil
		}

		if err := ctx.Err(); err != nil {
			return ChallengeResult{Attempts: attempts}, err
		}

		attempts++
		utils.Infof("检测到验证码页面 (第%d次): %s", attempts, current)
		if err := c.attempt(ctx); err != nil {
			return ChallengeResult{Attempts: attempts}, err
		}
	}
}

// Clear 处理验证码,未通过时返回错误
func (c *ChallengeSolver) Clear(ctx context.Context) error {
	result, err := c.Solve(ctx)
	if err != nil {
		return err
	}
	if result.Outcome == ChallengeExhausted {
		return fmt.Errorf("%w (%d次)", ErrChallengeExhausted, result.Attempts)
	}
	return nil
}

// attempt 单次尝试: 复选框阶段或图片阶段
func (c *ChallengeSolver) attempt(ctx context.Context) error {
	sel := c.profile.Challenge

	advanced, err := c.page.Has(ctx, sel.AdvancedFooter)
	if err != nil {
		return fmt.Errorf("检查验证码类型失败: %w", err)
	}

	if !advanced {
		hasCheckbox, err := c.page.Has(ctx, sel.Checkbox)
		if err != nil {
			return fmt.Errorf("检查复选框失败: %w", err)
		}
		if hasCheckbox {
			utils.Info("点击复选框验证码")
			if err := c.page.ClickAndWait(ctx, sel.Checkbox, c.cfg.NavigationTimeout); err != nil {
				if !errors.Is(err, ErrNavigationTimeout) {
					return fmt.Errorf("点击复选框失败: %w", err)
				}
				utils.Debug("点击复选框后页面未跳转")
			}
			return nil
		}
	}

	if sel.CookieAccept != "" {
		if ok, _ := c.page.Has(ctx, sel.CookieAccept); ok {
			if err := c.page.Click(ctx, sel.CookieAccept); err != nil {
				utils.Warnf("点击cookie按钮失败: %v", err)
			}
		}
	}

	return c.solveImage(ctx)
}

// solveImage 截图,识别坐标,依次点击并提交
func (c *ChallengeSolver) solveImage(ctx context.Context) error {
	sel := c.profile.Challenge

	hasPanel, err := c.page.Has(ctx, sel.Panel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengePanelMissing, err)
	}
	if !hasPanel {
		return ErrChallengePanelMissing
	}
	if c.solver == nil {
		return ErrNoCaptchaSolver
	}

	image, err := c.capture(ctx)
	if err != nil {
		return err
	}

	points, err := c.solver.Solve(ctx, models.CaptchaTask{
		Type:        captchaTaskType,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		Comment:     captchaComment,
		Mode:        captchaMode,
	})
	if err != nil {
		return fmt.Errorf("验证码识别失败: %w", err)
	}
	utils.Infof("验证码识别返回%d个坐标", len(points))

	box, err := c.page.BoundingBox(ctx, sel.View)
	if err != nil {
		return fmt.Errorf("获取验证码区域位置失败: %w", err)
	}

	for _, p := range points {
		if err := c.pause(ctx, c.jitter()); err != nil {
			return err
		}
		if err := c.page.ClickAt(ctx, box.X+p.X, box.Y+p.Y); err != nil {
			return fmt.Errorf("点击验证码坐标失败 (%.0f,%.0f): %w", p.X, p.Y, err)
		}
	}

	if err := c.pause(ctx, submitDelay); err != nil {
		return err
	}

	if err := c.page.ClickAndWait(ctx, sel.Submit, c.cfg.NavigationTimeout); err != nil {
		if !errors.Is(err, ErrNavigationTimeout) {
			return fmt.Errorf("提交验证码失败: %w", err)
		}
		utils.Debug("提交验证码后页面未跳转")
	}
	return nil
}

// capture 隐藏操作区后截取验证码区域
// 截图文件名带随机后缀,多个worker可同时使用同一目录
func (c *ChallengeSolver) capture(ctx context.Context) ([]byte, error) {
	sel := c.profile.Challenge

	if err := c.setActionsDisplay(ctx, "none"); err != nil {
		utils.Debugf("隐藏验证码操作区失败: %v", err)
	}
	defer func() {
		if err := c.setActionsDisplay(ctx, ""); err != nil {
			utils.Debugf("恢复验证码操作区失败: %v", err)
		}
	}()

	if err := c.pause(ctx, captureSettleDelay); err != nil {
		return nil, err
	}

	path := c.screenshotPath()
	defer os.Remove(path)

	if err := c.page.ScreenshotElement(ctx, sel.Panel, path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeCapture, err)
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeCapture, err)
	}
	return image, nil
}

// screenshotPath 生成截图路径
func (c *ChallengeSolver) screenshotPath() string {
	return filepath.Join(c.cfg.TempDir, fmt.Sprintf("%scaptcha_%s.png", c.profile.Name, uuid.NewString()))
}

// setActionsDisplay 设置操作区的 display 样式
func (c *ChallengeSolver) setActionsDisplay(ctx context.Context, display string) error {
	if c.profile.Challenge.FormActions == "" {
		return nil
	}
	js := fmt.Sprintf(`() => {
		const el = document.querySelector(%q);
		if (el) { el.style.display = %q; }
	}`, c.profile.Challenge.FormActions, display)
	return c.page.Eval(ctx, js)
}

// clickJitter 点击间隔 100-500ms
func clickJitter() time.Duration {
	return clickDelayMin + time.Duration(rand.Int64N(int64(clickDelaySpread)+1))
}

// sleepContext 可取消的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
