// Package refresh persists tile keys awaiting re-download in a single
// newline-delimited file shared by every worker process. The queue is
// deliberately lossy: a drain pass empties the whole file but hands back
// at most the requested number of keys, so one oversized backlog can
// never turn into an unbounded refresh run. Anything dropped will simply
// be re-enqueued the next time the stale tile is served.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/tile-hub/tile-hub/internal/tile"
)

const lockRetryDelay = 25 * time.Millisecond

// Queue 把待刷新的瓦片键记录在单个文本文件里，一行一个规范键。
// 所有读写都在该文件的独占文件锁内完成，进程间共享安全。
type Queue struct {
	path   string
	logger *logrus.Logger
}

// NewQueue 构造队列并确保父目录存在。
func NewQueue(path string, logger *logrus.Logger) (*Queue, error) {
	if path == "" {
		return nil, errors.New("queue path required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve queue path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}

	return &Queue{path: abs, logger: logger}, nil
}

// Enqueue 幂等地追加一个键；文件中已存在时不做任何修改，
// 因此同一过期瓦片被反复请求也不会让队列膨胀。
func (q *Queue) Enqueue(ctx context.Context, key tile.Key) error {
	lock := flock.New(q.path)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock refresh queue: %w", err)
	}
	if !locked {
		return errors.New("refresh queue lock unavailable")
	}
	defer lock.Unlock()

	line := key.String()
	data, err := os.ReadFile(q.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read refresh queue: %w", err)
	}
	for _, existing := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(existing) == line {
			return nil
		}
	}

	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open refresh queue: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append refresh queue: %w", err)
	}
	return f.Close()
}

// DrainUpTo 读出所有键并清空文件，返回前 max 个，其余静默丢弃；
// max <= 0 表示全部返回。清空发生在锁内，不会丢掉并发的 Enqueue。
func (q *Queue) DrainUpTo(ctx context.Context, max int) ([]tile.Key, error) {
	lock := flock.New(q.path)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock refresh queue: %w", err)
	}
	if !locked {
		return nil, errors.New("refresh queue lock unavailable")
	}
	defer lock.Unlock()

	data, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read refresh queue: %w", err)
	}

	if err := os.Truncate(q.path, 0); err != nil {
		return nil, fmt.Errorf("truncate refresh queue: %w", err)
	}

	var keys []tile.Key
	malformed := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, err := tile.ParseKey(line)
		if err != nil {
			malformed++
			continue
		}
		keys = append(keys, key)
	}
	if malformed > 0 {
		q.logger.WithFields(logrus.Fields{
			"action": "refresh_queue_malformed",
			"lines":  malformed,
		}).Warn("refresh_queue_malformed")
	}

	if max > 0 && len(keys) > max {
		q.logger.WithFields(logrus.Fields{
			"action":    "refresh_queue_overflow",
			"kept":      max,
			"discarded": len(keys) - max,
		}).Info("refresh_queue_overflow")
		keys = keys[:max]
	}
	return keys, nil
}

// Pending 返回当前排队的键数量，供状态端点展示。
func (q *Queue) Pending(ctx context.Context) (int, error) {
	lock := flock.New(q.path)
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return 0, fmt.Errorf("lock refresh queue: %w", err)
	}
	if !locked {
		return 0, errors.New("refresh queue lock unavailable")
	}
	defer lock.Unlock()

	data, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read refresh queue: %w", err)
	}

	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count, nil
}

// Path 返回队列文件的绝对路径。
func (q *Queue) Path() string {
	return q.path
}
