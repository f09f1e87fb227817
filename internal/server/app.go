package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/packserve/packserve/internal/cache"
	"github.com/packserve/packserve/internal/config"
	"github.com/packserve/packserve/internal/events"
)

const contextKeyRequestID = "_packserve_request_id"

// AppOptions 控制 Fiber 应用的装配。
type AppOptions struct {
	Logger *logrus.Logger
	Shared *config.Shared
	Cache  *cache.Manager
	Bus    *events.Bus
}

// NewApp 构建 Fiber 应用：recover + 请求 ID + 可选压缩与 CORS 头，
// 并注册命名空间目录/元数据/文件/重扫四组路由。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Shared == nil {
		return nil, errors.New("config handle is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache manager is required")
	}

	cfg := opts.Shared.Get()

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     cfg.Server.MaxBodySizeMB * 1024 * 1024,
		ReadTimeout:   time.Duration(cfg.Server.TimeoutSecs) * time.Second,
		Concurrency:   cfg.Server.MaxConcurrentRequests,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())
	app.Use(originMiddleware(opts.Shared))
	if cfg.Server.EnableCompression {
		app.Use(compress.New())
	}

	handler := newHandler(opts)
	app.Get("/", handler.listServers)
	app.Get("/rescan/:server", handler.forceRescan)
	app.Get("/:document", handler.serverMetadata)
	app.Get("/*", handler.serveFile)

	return app, nil
}

// requestContextMiddleware 为每个请求生成 ID 并回写响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// originMiddleware 按 allowed_origins 回写 CORS 头；配置含 "*" 时放行所有来源。
func originMiddleware(shared *config.Shared) fiber.Handler {
	return func(c fiber.Ctx) error {
		origins := shared.Get().Server.AllowedOrigins
		origin := c.Get("Origin")

		for _, allowed := range origins {
			if allowed == "*" {
				c.Set("Access-Control-Allow-Origin", "*")
				return c.Next()
			}
			if origin != "" && allowed == origin {
				c.Set("Access-Control-Allow-Origin", origin)
				c.Set("Vary", "Origin")
				return c.Next()
			}
		}
		return c.Next()
	}
}

// RequestID 返回路由中间件写入的请求标识。
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
