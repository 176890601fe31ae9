package cache

import (
	"context"
	"errors"
	"time"

	"github.com/tile-hub/tile-hub/internal/tile"
)

// Store 负责管理磁盘瓦片缓存的读写。磁盘布局遵循：
//
//	<CacheRoot>/<z>/<x>/<y>.png
//
// 每个条目仅由正文文件组成，ModTime/Size 由文件系统提供；空文件视为不存在。
type Store interface {
	// Path 返回条目对应的绝对文件路径，不做任何 I/O。
	Path(key tile.Key) string

	// Read 返回完整的缓存正文。读取期间持有共享文件锁，写入方
	// 覆写时读者会等待而不是读到半成品。不存在则返回 ErrNotFound。
	Read(ctx context.Context, key tile.Key) (*ReadResult, error)

	// Age 返回条目自上次写入以来经过的时间。不存在则返回 ErrNotFound。
	Age(key tile.Key) (time.Duration, error)

	// Write 在独占文件锁保护下整体覆写正文。文件时间戳由写入时刻
	// 决定，刻意不继承上游的 Last-Modified，否则刚刷新完的过期
	// 瓦片会立即再次过期。
	Write(ctx context.Context, key tile.Key, body []byte) (*Entry, error)
}

// Entry 表示一次缓存命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Key       tile.Key  `json:"key"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文字节；瓦片体积小，直接整体读出。
type ReadResult struct {
	Entry Entry
	Body  []byte
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("tile not cached")
