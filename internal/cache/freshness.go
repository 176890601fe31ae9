package cache

import "time"

// Freshness 基于条目写入时间判定是否过期，过期判定与 Expires 响应头
// 共用同一时钟，保证对外口径一致。
type Freshness struct {
	window time.Duration
	now    func() time.Time
}

// NewFreshness 构造过期判定器，默认使用 time.Now 作为时钟。
func NewFreshness(window time.Duration) Freshness {
	return Freshness{window: window, now: time.Now}
}

// Window 返回配置的新鲜窗口。
func (f Freshness) Window() time.Duration {
	return f.window
}

// IsStale 判断给定写入时间的条目是否超出新鲜窗口。
func (f Freshness) IsStale(modTime time.Time) bool {
	return f.clock().After(modTime.Add(f.window))
}

func (f Freshness) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

// ExpiresAt 返回条目应被视为过期的时刻，供 Expires 响应头使用。
func (f Freshness) ExpiresAt(modTime time.Time) time.Time {
	return modTime.Add(f.window)
}
