package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/tile-hub/tile-hub/internal/cache"
	"github.com/tile-hub/tile-hub/internal/download"
	"github.com/tile-hub/tile-hub/internal/logging"
	"github.com/tile-hub/tile-hub/internal/server"
	"github.com/tile-hub/tile-hub/internal/tile"
)

// 缓存状态随 X-Tile-Hub-Cache 响应头返回，便于运维核对命中率。
const (
	cacheStateHit   = "hit"
	cacheStateStale = "stale"
	cacheStateMiss  = "miss"
)

// TileDownloader 同步补拉一张缺失的瓦片，实现方负责回源、校验与落盘。
type TileDownloader interface {
	DownloadInto(ctx context.Context, key tile.Key) download.Outcome
}

// RefreshQueue 登记命中但已过期的瓦片，等待批量刷新。
type RefreshQueue interface {
	Enqueue(ctx context.Context, key tile.Key) error
}

// Handler 负责 orchestrate “路径解析 → 缓存查找 → 缺页补拉 → 过期登记” 的全流程，
// 对外暴露 Fiber handler，内部复用磁盘缓存与单飞下载器。
type Handler struct {
	store      cache.Store
	downloader TileDownloader
	queue      RefreshQueue
	freshness  cache.Freshness
	bounds     tile.Bounds
	upstream   string
	logger     *logrus.Logger
}

// Options 聚合 Handler 的全部依赖，由装配层一次性填入。
type Options struct {
	Store       cache.Store
	Downloader  TileDownloader
	Queue       RefreshQueue
	Freshness   cache.Freshness
	Bounds      tile.Bounds
	UpstreamURL string
	Logger      *logrus.Logger
}

// NewHandler constructs a tile handler with shared store/downloader/queue.
func NewHandler(opts Options) *Handler {
	return &Handler{
		store:      opts.Store,
		downloader: opts.Downloader,
		queue:      opts.Queue,
		freshness:  opts.Freshness,
		bounds:     opts.Bounds,
		upstream:   opts.UpstreamURL,
		logger:     opts.Logger,
	}
}

// Handle 执行瓦片查找、缺页时的同步补拉和过期登记，任何阶段出错都会输出结构化日志。
//
// 过期副本永远直接返回，刷新只入队不等待；同步补拉失败（包括
// 其它进程正占着下载锁）时若缓存仍为空，以 404 结束，客户端重试即可。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	method := c.Method()
	if method != http.MethodGet && method != http.MethodHead {
		return h.writeError(c, fiber.StatusMethodNotAllowed, "method_not_allowed")
	}

	rawPath := string(c.Request().URI().Path())
	key, err := tile.ParsePath(rawPath)
	if err != nil {
		h.logger.WithFields(logrus.Fields{"action": "tile_request", "path": rawPath}).
			Debug("tile_path_rejected")
		return h.writeError(c, fiber.StatusNotFound, "invalid_tile_path")
	}
	if !h.bounds.Contains(key) {
		fields := logging.TileFields(key)
		fields["action"] = "tile_request"
		h.logger.WithFields(fields).Debug("tile_out_of_bounds")
		return h.writeError(c, fiber.StatusNotFound, "tile_out_of_bounds")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	state := cacheStateHit
	result, err := h.store.Read(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			h.logger.WithError(err).WithFields(logging.TileFields(key)).Warn("cache_read_failed")
		}
		state = cacheStateMiss
		outcome := h.downloader.DownloadInto(ctx, key)
		result, err = h.store.Read(ctx, key)
		if err != nil {
			h.logResult(key, requestID, state, fiber.StatusNotFound, started,
				fmt.Errorf("download %s: %w", outcome, err))
			return h.writeError(c, fiber.StatusNotFound, "tile_unavailable")
		}
	}

	if h.freshness.IsStale(result.Entry.ModTime) {
		state = cacheStateStale
		if err := h.queue.Enqueue(ctx, key); err != nil {
			h.logger.WithError(err).WithFields(logging.TileFields(key)).Warn("refresh_enqueue_failed")
		}
	}

	c.Set("Content-Type", "image/png")
	c.Set("Last-Modified", result.Entry.ModTime.UTC().Format(http.TimeFormat))
	c.Set("Expires", h.freshness.ExpiresAt(result.Entry.ModTime).UTC().Format(http.TimeFormat))
	c.Set("X-Tile-Hub-Cache", state)
	c.Set("X-Tile-Hub-Upstream", h.upstream)
	c.Response().Header.SetContentLength(len(result.Body))

	h.logResult(key, requestID, state, fiber.StatusOK, started, nil)

	if method == http.MethodHead {
		return nil
	}
	return c.Send(result.Body)
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	key tile.Key,
	requestID string,
	state string,
	status int,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(key, state, status)
	fields["action"] = "tile_request"
	fields["upstream"] = h.upstream
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("tile_request_failed")
		return
	}
	h.logger.WithFields(fields).Info("tile_served")
}
