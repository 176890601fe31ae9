package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/tile-hub/tile-hub/internal/cache"
	"github.com/tile-hub/tile-hub/internal/download"
	"github.com/tile-hub/tile-hub/internal/refresh"
	"github.com/tile-hub/tile-hub/internal/tile"
)

func TestRefreshRouteDrainsQueue(t *testing.T) {
	env := newAdminEnv(t, download.OutcomeStored)
	seedQueue(t, env.queue, tile.Key{Z: 7, X: 67, Y: 43}, tile.Key{Z: 7, X: 68, Y: 43})

	resp, err := env.app.Test(httptest.NewRequest("GET", "http://tiles.local/-/refresh", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}

	var result refresh.BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode refresh result: %v", err)
	}
	if result.Drained != 2 || result.Stored != 2 {
		t.Fatalf("unexpected batch result %+v", result)
	}
	if got := env.downloader.calls.Load(); got != 2 {
		t.Fatalf("expected 2 download attempts, got %d", got)
	}

	pending, err := env.queue.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected queue to be drained, %d keys left", pending)
	}
}

func TestStatusRouteReportsQueueDepth(t *testing.T) {
	env := newAdminEnv(t, download.OutcomeStored)
	seedQueue(t, env.queue, tile.Key{Z: 10, X: 1, Y: 2})

	resp, err := env.app.Test(httptest.NewRequest("GET", "http://tiles.local/-/status", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}

	var status statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.PendingRefresh != 1 {
		t.Fatalf("expected 1 pending key, got %d", status.PendingRefresh)
	}
	if status.MaxCacheSeconds != int64((48 * time.Hour).Seconds()) {
		t.Fatalf("unexpected freshness window %d", status.MaxCacheSeconds)
	}
	if status.Version == "" || status.CacheRoot == "" || status.QueuePath == "" {
		t.Fatalf("expected identity fields to be filled, got %+v", status)
	}
}

func TestRegisterAdminRoutesIgnoresNilDependencies(t *testing.T) {
	app := fiber.New()
	RegisterAdminRoutes(app, AdminOptions{})

	resp, err := app.Test(httptest.NewRequest("GET", "http://tiles.local/-/status", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected routes to stay unregistered, got %d", resp.StatusCode)
	}
}

type adminEnv struct {
	app        *fiber.App
	queue      *refresh.Queue
	downloader *stubDownloader
}

func newAdminEnv(t *testing.T, outcome download.Outcome) *adminEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	queue, err := refresh.NewQueue(filepath.Join(t.TempDir(), "refresh.list"), logger)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}

	stub := &stubDownloader{outcome: outcome}
	runner := refresh.NewRunner(queue, stub, logger, 2)

	app := fiber.New()
	RegisterAdminRoutes(app, AdminOptions{
		Queue:     queue,
		Runner:    runner,
		Freshness: cache.NewFreshness(48 * time.Hour),
		BatchSize: 20,
		CacheRoot: t.TempDir(),
		Logger:    logger,
	})

	return &adminEnv{app: app, queue: queue, downloader: stub}
}

func seedQueue(t *testing.T, queue *refresh.Queue, keys ...tile.Key) {
	t.Helper()
	for _, key := range keys {
		if err := queue.Enqueue(context.Background(), key); err != nil {
			t.Fatalf("Enqueue(%s) failed: %v", key, err)
		}
	}
}

type stubDownloader struct {
	outcome download.Outcome
	calls   atomic.Int64
}

func (s *stubDownloader) DownloadInto(ctx context.Context, key tile.Key) download.Outcome {
	s.calls.Add(1)
	return s.outcome
}
