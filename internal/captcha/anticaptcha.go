// Package captcha 对接外部验证码识别服务
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/valyala/fasthttp"
)

// DefaultEndpoint anti-captcha 接口地址
const DefaultEndpoint = "https://api.anti-captcha.com"

var (
	// ErrSolverRejected 服务返回错误码
	ErrSolverRejected = errors.New("验证码识别服务拒绝请求")
	// ErrSolverTimeout 等待识别结果超时
	ErrSolverTimeout = errors.New("等待验证码识别结果超时")
)

// Config 识别服务配置
type Config struct {
	APIKey         string
	Endpoint       string
	PollInterval   time.Duration // 查询结果间隔
	Timeout        time.Duration // 单个任务最长等待
	RequestTimeout time.Duration // 单次HTTP请求超时
}

// DefaultConfig 默认配置
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		Endpoint:       DefaultEndpoint,
		PollInterval:   3 * time.Second,
		Timeout:        2 * time.Minute,
		RequestTimeout: 30 * time.Second,
	}
}

// apiTaskTypes 任务类型到 Anti-Captcha API 名称
var apiTaskTypes = map[string]string{
	models.CaptchaKindCoordinates: "ImageToCoordinatesTask",
}

// apiTask createTask 请求中的 task 字段
type apiTask struct {
	Type    string `json:"type"`
	Body    string `json:"body"`
	Comment string `json:"comment,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

func toAPITask(task models.CaptchaTask) (apiTask, error) {
	typ, ok := apiTaskTypes[task.Type]
	if !ok {
		return apiTask{}, fmt.Errorf("不支持的验证码类型: %q", task.Type)
	}
	return apiTask{
		Type:    typ,
		Body:    task.ImageBase64,
		Comment: task.Comment,
		Mode:    task.Mode,
	}, nil
}

type createTaskRequest struct {
	ClientKey string  `json:"clientKey"`
	Task      apiTask `json:"task"`
}

type taskResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type apiError struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

func (e apiError) err() error {
	if e.ErrorID == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s %s", ErrSolverRejected, e.ErrorCode, e.ErrorDescription)
}

type createTaskResponse struct {
	apiError
	TaskID int64 `json:"taskId"`
}

type taskResultResponse struct {
	apiError
	Status   string `json:"status"`
	Solution struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"solution"`
}

// AntiCaptchaClient anti-captcha 坐标识别客户端
type AntiCaptchaClient struct {
	cfg    Config
	client *fasthttp.Client
}

// NewAntiCaptchaClient 创建客户端
func NewAntiCaptchaClient(cfg Config) *AntiCaptchaClient {
	defaults := DefaultConfig(cfg.APIKey)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	return &AntiCaptchaClient{
		cfg: cfg,
		client: &fasthttp.Client{
			Name:                "serpharvest",
			MaxConnsPerHost:     16,
			ReadTimeout:         cfg.RequestTimeout,
			WriteTimeout:        cfg.RequestTimeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// Solve 提交图片并等待返回点击坐标
func (c *AntiCaptchaClient) Solve(ctx context.Context, task models.CaptchaTask) ([]models.Point, error) {
	taskID, err := c.createTask(ctx, task)
	if err != nil {
		return nil, err
	}
	utils.Debugf("验证码任务已创建: %d", taskID)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w (任务%d)", ErrSolverTimeout, taskID)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var result taskResultResponse
		if err := c.post(ctx, "/getTaskResult", taskResultRequest{ClientKey: c.cfg.APIKey, TaskID: taskID}, &result); err != nil {
			return nil, err
		}
		if err := result.err(); err != nil {
			return nil, err
		}
		if result.Status != "ready" {
			continue
		}

		points := make([]models.Point, 0, len(result.Solution.Coordinates))
		for _, pair := range result.Solution.Coordinates {
			if len(pair) < 2 {
				continue
			}
			points = append(points, models.Point{X: pair[0], Y: pair[1]})
		}
		return points, nil
	}
}

func (c *AntiCaptchaClient) createTask(ctx context.Context, task models.CaptchaTask) (int64, error) {
	wire, err := toAPITask(task)
	if err != nil {
		return 0, err
	}

	var resp createTaskResponse
	if err := c.post(ctx, "/createTask", createTaskRequest{ClientKey: c.cfg.APIKey, Task: wire}, &resp); err != nil {
		return 0, err
	}
	if err := resp.err(); err != nil {
		return 0, err
	}
	return resp.TaskID, nil
}

// post 发送JSON请求并解析响应
func (c *AntiCaptchaClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.Endpoint + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBody(payload)

	timeout := c.cfg.RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrSolverTimeout, path)
	}

	if err := c.client.DoTimeout(req, resp, timeout); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrSolverTimeout, path)
		}
		return fmt.Errorf("请求识别服务失败 [%s]: %w", path, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("识别服务返回状态码 %d [%s]", resp.StatusCode(), path)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("解析识别服务响应失败: %w", err)
	}
	return nil
}
