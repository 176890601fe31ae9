package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"48h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有请求与刷新任务共享同一份参数。
type GlobalConfig struct {
	ListenPort       int      `mapstructure:"ListenPort"`
	LogLevel         string   `mapstructure:"LogLevel"`
	LogFilePath      string   `mapstructure:"LogFilePath"`
	LogMaxSize       int      `mapstructure:"LogMaxSize"`
	LogMaxBackups    int      `mapstructure:"LogMaxBackups"`
	LogMaxAge        int      `mapstructure:"LogMaxAge"`
	LogCompress      bool     `mapstructure:"LogCompress"`
	CacheRoot        string   `mapstructure:"CacheRoot"`
	QueuePath        string   `mapstructure:"QueuePath"`
	MaxCacheTime     Duration `mapstructure:"MaxCacheTime"`
	UpstreamURL      string   `mapstructure:"UpstreamURL"`
	UpstreamTimeout  Duration `mapstructure:"UpstreamTimeout"`
	ServerName       string   `mapstructure:"ServerName"`
	RefreshBatchSize int      `mapstructure:"RefreshBatchSize"`
	RefreshWorkers   int      `mapstructure:"RefreshWorkers"`
}

// BoundsConfig 限定代理愿意服务的瓦片范围，范围之外的请求直接拒绝。
type BoundsConfig struct {
	MinZoom int     `mapstructure:"MinZoom"`
	MaxZoom int     `mapstructure:"MaxZoom"`
	MinLat  float64 `mapstructure:"MinLat"`
	MaxLat  float64 `mapstructure:"MaxLat"`
	MinLon  float64 `mapstructure:"MinLon"`
	MaxLon  float64 `mapstructure:"MaxLon"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Bounds BoundsConfig `mapstructure:"Bounds"`
}

// RefererURL 返回回源请求携带的 Referer，部分瓦片服务以此识别调用方。
func (g GlobalConfig) RefererURL() string {
	return fmt.Sprintf("https://%s/", g.ServerName)
}

// FreshFor 返回缓存视为新鲜的时间窗口。
func (c *Config) FreshFor() time.Duration {
	return c.Global.MaxCacheTime.DurationValue()
}
