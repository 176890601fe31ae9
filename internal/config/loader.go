package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectDeprecatedKeys(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyBoundsDefaults(&cfg.Bounds)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(cfg.Global.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.CacheRoot = absRoot

	if cfg.Global.QueuePath == "" {
		cfg.Global.QueuePath = filepath.Join(cfg.Global.CacheRoot, "refresh.list")
	} else {
		absQueue, err := filepath.Abs(cfg.Global.QueuePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析刷新队列路径: %w", err)
		}
		cfg.Global.QueuePath = absQueue
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogMaxAge", 28)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheRoot", "./tiles")
	v.SetDefault("QueuePath", "")
	v.SetDefault("MaxCacheTime", "48h")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("ServerName", "localhost")
	v.SetDefault("RefreshBatchSize", 20)
	v.SetDefault("RefreshWorkers", 1)
	v.SetDefault("Bounds.MinZoom", 0)
	v.SetDefault("Bounds.MaxZoom", 19)
	v.SetDefault("Bounds.MinLat", -90.0)
	v.SetDefault("Bounds.MaxLat", 90.0)
	v.SetDefault("Bounds.MinLon", -180.0)
	v.SetDefault("Bounds.MaxLon", 180.0)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.MaxCacheTime.DurationValue() == 0 {
		g.MaxCacheTime = Duration(48 * time.Hour)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.ServerName == "" {
		g.ServerName = "localhost"
	}
	if g.RefreshBatchSize == 0 {
		g.RefreshBatchSize = 20
	}
	if g.RefreshWorkers == 0 {
		g.RefreshWorkers = 1
	}
}

func applyBoundsDefaults(b *BoundsConfig) {
	if b.MinLat == 0 && b.MaxLat == 0 {
		b.MinLat, b.MaxLat = -90, 90
	}
	if b.MinLon == 0 && b.MaxLon == 0 {
		b.MinLon, b.MaxLon = -180, 180
	}
	if b.MinZoom == 0 && b.MaxZoom == 0 {
		b.MaxZoom = 19
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectDeprecatedKeys 阻止旧版配置键继续生效，避免静默落到默认值。
func rejectDeprecatedKeys(v *viper.Viper) error {
	deprecated := map[string]string{
		"TileServer":   "字段已弃用，请使用 UpstreamURL",
		"StoragePath":  "字段已弃用，请使用 CacheRoot",
		"MaxCacheDays": "字段已弃用，请使用 MaxCacheTime",
	}
	for key, reason := range deprecated {
		if v.IsSet(key) {
			return newFieldError(key, reason)
		}
	}
	return nil
}
