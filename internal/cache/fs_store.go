package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"github.com/tile-hub/tile-hub/internal/tile"
)

// flock 自身不支持带超时的阻塞等待，通过 ctx + 固定间隔轮询模拟。
const lockRetryDelay = 25 * time.Millisecond

// NewStore 以 root 为根目录构建磁盘缓存，整个进程复用一份实例。
func NewStore(root string) (Store, error) {
	if root == "" {
		return nil, errors.New("cache root required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	return &fileStore{root: abs}, nil
}

// fileStore 不持有任何进程内状态。同一棵缓存树可以被任意多个进程
// 共享，互斥完全依赖内容文件上的 advisory 文件锁。
type fileStore struct {
	root string
}

func (s *fileStore) Path(key tile.Key) string {
	return filepath.Join(s.root,
		strconv.Itoa(key.Z),
		strconv.Itoa(key.X),
		strconv.Itoa(key.Y)+".png")
}

func (s *fileStore) Read(ctx context.Context, key tile.Key) (*ReadResult, error) {
	filePath := s.Path(key)

	// 先探测存在性，避免锁文件句柄把缺失条目创建成空文件。
	if _, err := statEntry(filePath); err != nil {
		return nil, err
	}

	lock := flock.New(filePath)
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire read lock: %w", err)
	}
	if !locked {
		return nil, errors.New("read lock unavailable")
	}
	defer lock.Unlock()

	body, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrNotFound
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}

	entry := Entry{
		Key:       key,
		FilePath:  filePath,
		SizeBytes: int64(len(body)),
		ModTime:   info.ModTime(),
	}
	return &ReadResult{Entry: entry, Body: body}, nil
}

func (s *fileStore) Age(key tile.Key) (time.Duration, error) {
	info, err := statEntry(s.Path(key))
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}

func (s *fileStore) Write(ctx context.Context, key tile.Key, body []byte) (*Entry, error) {
	filePath := s.Path(key)

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create tile directory: %w", err)
	}

	lock := flock.New(filePath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire write lock: %w", err)
	}
	if !locked {
		return nil, errors.New("write lock unavailable")
	}
	defer lock.Unlock()

	if err := os.WriteFile(filePath, body, 0o644); err != nil {
		return nil, fmt.Errorf("write tile: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}

	entry := Entry{
		Key:       key,
		FilePath:  filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}
	return &entry, nil
}

// statEntry 将缺失、目录与空文件统一映射为 ErrNotFound。
func statEntry(filePath string) (fs.FileInfo, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, ErrNotFound
	}
	return info, nil
}
