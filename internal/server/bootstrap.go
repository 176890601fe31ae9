package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tile-hub/tile-hub/internal/cache"
	"github.com/tile-hub/tile-hub/internal/config"
	"github.com/tile-hub/tile-hub/internal/download"
	"github.com/tile-hub/tile-hub/internal/fetch"
	"github.com/tile-hub/tile-hub/internal/refresh"
	"github.com/tile-hub/tile-hub/internal/tile"
)

// TileService 汇集瓦片服务的核心组件；HTTP 服务与一次性刷新共用同一套装配，
// 保证两条路径对缓存根、队列文件与回源参数的口径一致。
type TileService struct {
	Store      cache.Store
	Queue      *refresh.Queue
	Downloader *download.Downloader
	Runner     *refresh.Runner
	Freshness  cache.Freshness
	Bounds     tile.Bounds
}

// BuildTileService 按“磁盘缓存 → 刷新队列 → 回源客户端 → 下载器 → 刷新器”
// 的顺序装配组件，所有请求与刷新批任务共享同一份实例。
func BuildTileService(cfg *config.Config, logger *logrus.Logger) (*TileService, error) {
	store, err := cache.NewStore(cfg.Global.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	queue, err := refresh.NewQueue(cfg.Global.QueuePath, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化刷新队列失败: %w", err)
	}

	fetcher := fetch.New(NewUpstreamClient(cfg), cfg.Global.UpstreamURL, cfg.Global.RefererURL())
	downloader := download.New(store, fetcher, logger)
	runner := refresh.NewRunner(queue, downloader, logger, cfg.Global.RefreshWorkers)

	return &TileService{
		Store:      store,
		Queue:      queue,
		Downloader: downloader,
		Runner:     runner,
		Freshness:  cache.NewFreshness(cfg.FreshFor()),
		Bounds:     tileBounds(cfg.Bounds),
	}, nil
}

func tileBounds(b config.BoundsConfig) tile.Bounds {
	return tile.Bounds{
		MinZoom: b.MinZoom,
		MaxZoom: b.MaxZoom,
		MinLat:  b.MinLat,
		MaxLat:  b.MaxLat,
		MinLon:  b.MinLon,
		MaxLon:  b.MaxLon,
	}
}
