package tile

import "math"

// Web-Mercator 在 ±85.0511° 之外没有定义，超出的纬度按边界瓦片处理。
const mercatorLatLimit = 85.05112877980659

// Bounds 描述允许服务的缩放级别与经纬度范围。
type Bounds struct {
	MinZoom int
	MaxZoom int
	MinLat  float64
	MaxLat  float64
	MinLon  float64
	MaxLon  float64
}

// Contains 判断瓦片是否落在配置范围内。
func (b Bounds) Contains(k Key) bool {
	if k.Z < b.MinZoom || k.Z > b.MaxZoom {
		return false
	}
	if k.X < LonToX(b.MinLon, k.Z) || k.X > LonToX(b.MaxLon, k.Z) {
		return false
	}
	// 纬度越大行号越小，因此行号上界来自 MinLat。
	if k.Y < LatToY(b.MaxLat, k.Z) || k.Y > LatToY(b.MinLat, k.Z) {
		return false
	}
	return true
}

// LonToX 返回经度在指定缩放级别对应的瓦片列号。
func LonToX(lon float64, zoom int) int {
	n := float64(int64(1) << uint(zoom))
	return clampIndex(int(math.Floor((lon+180)/360*n)), zoom)
}

// LatToY 返回纬度在指定缩放级别对应的瓦片行号。
func LatToY(lat float64, zoom int) int {
	if lat > mercatorLatLimit {
		lat = mercatorLatLimit
	}
	if lat < -mercatorLatLimit {
		lat = -mercatorLatLimit
	}
	rad := lat * math.Pi / 180
	n := float64(int64(1) << uint(zoom))
	row := (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * n
	return clampIndex(int(math.Floor(row)), zoom)
}

func clampIndex(v, zoom int) int {
	limit := int(int64(1)<<uint(zoom)) - 1
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
