// Package fetch retrieves tile images from the configured upstream tile
// server. It owns the outbound request shape (identifying User-Agent plus
// a Referer derived from the serving host) and maps every failure into a
// FetchError so callers can branch on the failure kind without string
// matching. The fetcher never touches the cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/tile-hub/tile-hub/internal/tile"
	"github.com/tile-hub/tile-hub/internal/version"
)

// Kind 区分回源失败的类别，便于日志与测试断言。
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindStatus    Kind = "status"
	KindTransport Kind = "transport"
)

// FetchError 描述一次失败的回源请求。
type FetchError struct {
	Kind   Kind
	URL    string
	Status int   // 仅 KindStatus 时有意义
	Err    error // 底层错误，可能为 nil
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("upstream returned %d for %s", e.Status, e.URL)
	case KindTimeout:
		return fmt.Sprintf("upstream timed out for %s", e.URL)
	default:
		return fmt.Sprintf("upstream request failed for %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher 通过共享 http.Client 回源抓取瓦片。
type Fetcher struct {
	client  *http.Client
	baseURL string
	referer string
}

// New 构造 Fetcher。baseURL 末尾斜杠会被去掉，referer 允许为空。
func New(client *http.Client, baseURL, referer string) *Fetcher {
	return &Fetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		referer: referer,
	}
}

// TileURL 返回瓦片在上游的完整地址。
func (f *Fetcher) TileURL(key tile.Key) string {
	return fmt.Sprintf("%s/%d/%d/%d.png", f.baseURL, key.Z, key.X, key.Y)
}

// FetchTile 组合 TileURL 与 Fetch。
func (f *Fetcher) FetchTile(ctx context.Context, key tile.Key) ([]byte, error) {
	return f.Fetch(ctx, f.TileURL(key))
}

// Fetch 抓取一个 URL 的完整正文。非 2xx、超时与传输错误分别映射到
// 对应的 FetchError 类别；成功时返回原始字节，校验交给上层。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 读掉少量残body，保证底层连接可以复用。
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Kind: KindStatus, URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}
	return body, nil
}

func classifyTransportError(rawURL string, err error) *FetchError {
	kind := KindTransport
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = KindTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &FetchError{Kind: kind, URL: rawURL, Err: err}
}
