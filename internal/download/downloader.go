// Package download implements the single-flight download protocol: at most
// one process fetches a given tile at a time, coordinated through a
// non-blocking exclusive lock on a zero-byte side file next to the tile.
// Competing callers return immediately instead of piling up behind the
// network round-trip; the currently cached copy (if any) stays readable the
// whole time because content locking is a separate, much shorter critical
// section inside the store.
package download

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/tile-hub/tile-hub/internal/cache"
	"github.com/tile-hub/tile-hub/internal/logging"
	"github.com/tile-hub/tile-hub/internal/pngcheck"
	"github.com/tile-hub/tile-hub/internal/tile"
)

// Outcome 是一次下载尝试的三态结果，锁竞争是正常分支而不是错误。
type Outcome int

const (
	// OutcomeStored 表示成功抓取、校验并写入缓存。
	OutcomeStored Outcome = iota
	// OutcomeSkipped 表示另一个进程正在下载同一瓦片，本次直接让路。
	OutcomeSkipped
	// OutcomeFailed 表示抓取或校验失败，缓存未被改动。
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// TileFetcher 抽象回源抓取，便于测试注入桩实现。
type TileFetcher interface {
	FetchTile(ctx context.Context, key tile.Key) ([]byte, error)
}

// Downloader 将抓取、校验、写入三步绑定在下载锁保护的临界区内。
type Downloader struct {
	store   cache.Store
	fetcher TileFetcher
	logger  *logrus.Logger
}

// New 构造 Downloader，三个依赖都由调用方注入并在进程内复用。
func New(store cache.Store, fetcher TileFetcher, logger *logrus.Logger) *Downloader {
	return &Downloader{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}
}

// DownloadInto 尝试把指定瓦片抓取进缓存。
//
// 下载锁用 TryLock 一次性尝试：拿不到说明别的进程正在抓同一瓦片，
// 立即返回 OutcomeSkipped。拿到后的任何失败都吞掉并记日志，调用方
// 只根据 Outcome 分支；所有路径都保证释放锁。
func (d *Downloader) DownloadInto(ctx context.Context, key tile.Key) Outcome {
	lockPath := d.store.Path(key) + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		d.logAttempt(key, "download_dir_failed", err)
		return OutcomeFailed
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		d.logAttempt(key, "download_lock_failed", err)
		return OutcomeFailed
	}
	if !locked {
		return OutcomeSkipped
	}
	defer lock.Unlock()

	body, err := d.fetcher.FetchTile(ctx, key)
	if err != nil {
		d.logAttempt(key, "tile_fetch_failed", err)
		return OutcomeFailed
	}

	if !pngcheck.IsValid(body) {
		d.logAttempt(key, "tile_payload_invalid", nil)
		return OutcomeFailed
	}

	entry, err := d.store.Write(ctx, key, body)
	if err != nil {
		d.logAttempt(key, "tile_write_failed", err)
		return OutcomeFailed
	}

	fields := logging.TileFields(key)
	fields["action"] = "tile_stored"
	fields["size_bytes"] = entry.SizeBytes
	d.logger.WithFields(fields).Debug("tile_stored")
	return OutcomeStored
}

func (d *Downloader) logAttempt(key tile.Key, message string, err error) {
	fields := logging.TileFields(key)
	fields["action"] = message
	if err != nil {
		fields["error"] = err.Error()
	}
	d.logger.WithFields(fields).Warn(message)
}
