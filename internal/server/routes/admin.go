package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/tile-hub/tile-hub/internal/cache"
	"github.com/tile-hub/tile-hub/internal/refresh"
	"github.com/tile-hub/tile-hub/internal/version"
)

// AdminOptions 汇总诊断接口需要的组件引用与配置快照。
type AdminOptions struct {
	Queue     *refresh.Queue
	Runner    *refresh.Runner
	Freshness cache.Freshness
	BatchSize int
	CacheRoot string
	Logger    *logrus.Logger
}

// RegisterAdminRoutes 暴露 /-/refresh 与 /-/status 诊断接口。/-/refresh 由
// 外部调度器（cron + curl）周期性触发，单次成本受 BatchSize 约束。
func RegisterAdminRoutes(app *fiber.App, opts AdminOptions) {
	if app == nil || opts.Queue == nil || opts.Runner == nil {
		return
	}

	app.Get("/-/refresh", func(c fiber.Ctx) error {
		ctx := requestContext(c)
		result := opts.Runner.Run(ctx, opts.BatchSize)
		return c.JSON(result)
	})

	app.Get("/-/status", func(c fiber.Ctx) error {
		ctx := requestContext(c)
		pending, err := opts.Queue.Pending(ctx)
		if err != nil {
			opts.Logger.WithError(err).Warn("status_pending_failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "queue_unavailable"})
		}
		return c.JSON(encodeStatus(opts, pending))
	})
}

type statusPayload struct {
	Version         string `json:"version"`
	CacheRoot       string `json:"cache_root"`
	QueuePath       string `json:"queue_path"`
	PendingRefresh  int    `json:"pending_refresh"`
	MaxCacheSeconds int64  `json:"max_cache_seconds"`
}

func encodeStatus(opts AdminOptions, pending int) statusPayload {
	return statusPayload{
		Version:         version.Full(),
		CacheRoot:       opts.CacheRoot,
		QueuePath:       opts.Queue.Path(),
		PendingRefresh:  pending,
		MaxCacheSeconds: int64(opts.Freshness.Window() / time.Second),
	}
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
