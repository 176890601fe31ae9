package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// 斜切墨卡托投影只在 ±85.0511 内有定义，更高纬度由瓦片
// 换算时钳制，这里只约束配置值落在地理意义的范围内。
const (
	latLimit = 90.0
	lonLimit = 180.0
	zoomCap  = 22
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if g.CacheRoot == "" {
		return newFieldError("CacheRoot", "不能为空")
	}
	if g.MaxCacheTime.DurationValue() <= 0 {
		return newFieldError("MaxCacheTime", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if g.RefreshBatchSize <= 0 {
		return newFieldError("RefreshBatchSize", "必须大于 0")
	}
	if g.RefreshWorkers <= 0 {
		return newFieldError("RefreshWorkers", "必须大于 0")
	}
	if err := validateUpstream(g.UpstreamURL); err != nil {
		return fmt.Errorf("UpstreamURL: %w", err)
	}
	if err := validateServerName(g.ServerName); err != nil {
		return fmt.Errorf("ServerName: %w", err)
	}

	return c.Bounds.validate()
}

func (b BoundsConfig) validate() error {
	if b.MinZoom < 0 {
		return newFieldError("Bounds.MinZoom", "不能为负数")
	}
	if b.MaxZoom > zoomCap {
		return newFieldError("Bounds.MaxZoom", fmt.Sprintf("不能超过 %d", zoomCap))
	}
	if b.MinZoom > b.MaxZoom {
		return newFieldError("Bounds.MinZoom", "不能大于 MaxZoom")
	}
	if b.MinLat < -latLimit || b.MaxLat > latLimit {
		return newFieldError("Bounds.MinLat/MaxLat", fmt.Sprintf("必须在 ±%.0f 内", latLimit))
	}
	if b.MinLat >= b.MaxLat {
		return newFieldError("Bounds.MinLat", "必须小于 MaxLat")
	}
	if b.MinLon < -lonLimit || b.MaxLon > lonLimit {
		return newFieldError("Bounds.MinLon/MaxLon", fmt.Sprintf("必须在 ±%.0f 内", lonLimit))
	}
	if b.MinLon >= b.MaxLon {
		return newFieldError("Bounds.MinLon", "必须小于 MaxLon")
	}
	return nil
}

func validateServerName(name string) error {
	if name == "" {
		return errors.New("不能为空")
	}
	if strings.Contains(name, "://") {
		return errors.New("不应包含协议头")
	}
	if strings.Contains(name, "/") {
		return errors.New("不允许包含路径")
	}
	if strings.Contains(name, " ") {
		return errors.New("不允许包含空格")
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
