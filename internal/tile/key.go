// Package tile defines slippy-map tile coordinates and the geographic
// bounds check used to reject requests outside the served region. Keys
// follow the usual Web-Mercator tiling scheme: x grows eastward, y grows
// southward, both in [0, 2^z).
package tile

import (
	"fmt"
	"strconv"
	"strings"
)

// Key 唯一标识一张滑动地图瓦片。
type Key struct {
	Z int
	X int
	Y int
}

// String 返回 "z/x/y" 规范形式，刷新队列以此作为行格式。
func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}

// ParseKey 解析 String 输出的规范形式，坐标必须是非负整数。
func ParseKey(raw string) (Key, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("invalid tile key: %q", raw)
	}

	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Key{}, fmt.Errorf("invalid tile key: %q", raw)
		}
		if n < 0 {
			return Key{}, fmt.Errorf("negative tile coordinate: %q", raw)
		}
		nums[i] = n
	}
	return Key{Z: nums[0], X: nums[1], Y: nums[2]}, nil
}

// ParsePath 解析 "/z/x/y.png" 形式的请求路径。
func ParsePath(path string) (Key, error) {
	trimmed := strings.TrimPrefix(path, "/")
	rest, ok := strings.CutSuffix(trimmed, ".png")
	if !ok {
		return Key{}, fmt.Errorf("tile path must end in .png: %q", path)
	}
	return ParseKey(rest)
}
