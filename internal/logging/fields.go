package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/tile-hub/tile-hub/internal/tile"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// TileFields 提供瓦片坐标字段，供请求、下载与刷新日志复用。
func TileFields(key tile.Key) logrus.Fields {
	return logrus.Fields{
		"z": key.Z,
		"x": key.X,
		"y": key.Y,
	}
}

// RequestFields 描述一次瓦片请求的处理结果。
func RequestFields(key tile.Key, cacheState string, status int) logrus.Fields {
	fields := TileFields(key)
	fields["cache"] = cacheState
	fields["status"] = status
	return fields
}
