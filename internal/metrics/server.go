package metrics

import (
	"context"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusFunc 返回当前运行状态,序列化为JSON
type StatusFunc func() interface{}

// Server 指标和状态HTTP服务
type Server struct {
	app  *fiber.App
	addr string
}

// NewServer 创建服务
// 路由: /metrics (Prometheus), /healthz, /status
func NewServer(addr string, status StatusFunc) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		if status == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "status unavailable"})
		}
		return c.JSON(status())
	})

	return &Server{app: app, addr: addr}
}

// App 返回底层fiber应用
func (s *Server) App() *fiber.App {
	return s.app
}

// Start 后台启动监听
func (s *Server) Start() {
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			utils.Warnf("指标服务退出: %v", err)
		}
	}()
	utils.Infof("指标服务已启动: %s", s.addr)
}

// Stop 关闭服务
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
