package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/tile-hub/tile-hub/internal/tile"
)

func TestStatusEndpointReportsServiceState(t *testing.T) {
	upstream := newTileUpstream(t, tilePNG(t, 0x60))
	defer upstream.Close()

	env := newTileEnv(t, upstream, 48*time.Hour, 20)

	var status struct {
		Version         string `json:"version"`
		CacheRoot       string `json:"cache_root"`
		QueuePath       string `json:"queue_path"`
		PendingRefresh  int    `json:"pending_refresh"`
		MaxCacheSeconds int64  `json:"max_cache_seconds"`
	}

	resp := env.request(t, http.MethodGet, "/-/status")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 from status endpoint, got %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()

	if !strings.HasPrefix(status.Version, "tile-hub") {
		t.Fatalf("unexpected version identity %q", status.Version)
	}
	if status.CacheRoot != env.cacheDir {
		t.Fatalf("expected cache root %s, got %s", env.cacheDir, status.CacheRoot)
	}
	if status.PendingRefresh != 0 {
		t.Fatalf("fresh instance should have an empty queue, got %d", status.PendingRefresh)
	}
	if status.MaxCacheSeconds != 48*3600 {
		t.Fatalf("expected 48h window, got %d seconds", status.MaxCacheSeconds)
	}

	// 过期命中后队列深度随之增长。
	key := tile.Key{Z: 7, X: 67, Y: 43}
	if _, err := env.svc.Store.Write(context.Background(), key, tilePNG(t, 0x61)); err != nil {
		t.Fatalf("seed write error: %v", err)
	}
	old := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(env.svc.Store.Path(key), old, old); err != nil {
		t.Fatalf("failed to age tile: %v", err)
	}
	env.request(t, http.MethodGet, "/7/67/43.png").Body.Close()

	resp2 := env.request(t, http.MethodGet, "/-/status")
	if err := json.NewDecoder(resp2.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp2.Body.Close()
	if status.PendingRefresh != 1 {
		t.Fatalf("expected one pending refresh after stale hit, got %d", status.PendingRefresh)
	}
}

func TestEveryResponseCarriesRequestID(t *testing.T) {
	upstream := newTileUpstream(t, tilePNG(t, 0x60))
	defer upstream.Close()

	env := newTileEnv(t, upstream, 48*time.Hour, 20)

	for _, path := range []string{"/7/67/43.png", "/-/status", "/bogus"} {
		resp := env.request(t, http.MethodGet, path)
		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatalf("path %s: expected X-Request-ID header", path)
		}
		resp.Body.Close()
	}
}
