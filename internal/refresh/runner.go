package refresh

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tile-hub/tile-hub/internal/download"
	"github.com/tile-hub/tile-hub/internal/tile"
)

// BatchResult 汇总一次刷新批处理的结果。
type BatchResult struct {
	Drained int `json:"drained"`
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// TileDownloader 抽象单瓦片下载，便于测试注入桩实现。
type TileDownloader interface {
	DownloadInto(ctx context.Context, key tile.Key) download.Outcome
}

// Runner 把队列排水和逐键下载串起来，用有界 worker 池控制并发度。
type Runner struct {
	queue      *Queue
	downloader TileDownloader
	logger     *logrus.Logger
	workers    int
}

// NewRunner 构造 Runner；workers 小于 1 时退化为串行处理。
func NewRunner(queue *Queue, downloader TileDownloader, logger *logrus.Logger, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		queue:      queue,
		downloader: downloader,
		logger:     logger,
		workers:    workers,
	}
}

// Run 排出最多 maxCount 个键并逐个刷新。单键失败只计数不中断，
// 锁竞争（其它进程正在抓同一瓦片）同样只是一个计数。
func (r *Runner) Run(ctx context.Context, maxCount int) BatchResult {
	keys, err := r.queue.DrainUpTo(ctx, maxCount)
	if err != nil {
		r.logger.WithError(err).Error("refresh_drain_failed")
		return BatchResult{}
	}

	result := BatchResult{Drained: len(keys)}
	if len(keys) == 0 {
		return result
	}

	sem := make(chan struct{}, r.workers)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		sem <- struct{}{}
		go func(key tile.Key) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := r.downloader.DownloadInto(ctx, key)
			mu.Lock()
			switch outcome {
			case download.OutcomeStored:
				result.Stored++
			case download.OutcomeSkipped:
				result.Skipped++
			default:
				result.Failed++
			}
			mu.Unlock()
		}(key)
	}
	wg.Wait()

	r.logger.WithFields(logrus.Fields{
		"action":  "refresh_batch",
		"drained": result.Drained,
		"stored":  result.Stored,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}).Info("refresh_batch_complete")
	return result
}
