package tile

import "testing"

func TestKeyStringRoundTrip(t *testing.T) {
	key := Key{Z: 12, X: 2197, Y: 1459}
	parsed, err := ParseKey(key.String())
	if err != nil {
		t.Fatalf("ParseKey(%q) 返回错误: %v", key.String(), err)
	}
	if parsed != key {
		t.Fatalf("round trip 结果不符: %v != %v", parsed, key)
	}
}

func TestParsePath(t *testing.T) {
	key, err := ParsePath("/12/2197/1459.png")
	if err != nil {
		t.Fatalf("合法路径解析失败: %v", err)
	}
	if key != (Key{Z: 12, X: 2197, Y: 1459}) {
		t.Fatalf("解析结果不符: %v", key)
	}
}

func TestParsePathRejectsMalformed(t *testing.T) {
	testCases := []string{
		"/12/2197/1459",       // 缺少扩展名
		"/12/2197/1459.jpg",   // 非 png
		"/12/1459.png",        // 缺少坐标
		"/12/2197/1459/9.png", // 多余坐标
		"/12/abc/1459.png",    // 非整数
		"/-1/2/3.png",         // 负缩放
		"/12/-5/3.png",        // 负列号
		"/12/2197/.png",       // 空坐标
		"/favicon.ico",
		"/",
	}

	for _, path := range testCases {
		if _, err := ParsePath(path); err == nil {
			t.Fatalf("路径 %q 应解析失败", path)
		}
	}
}

func TestParseKeyTrimsWhitespace(t *testing.T) {
	key, err := ParseKey("7/67/43\n")
	if err != nil {
		t.Fatalf("带换行的队列行应可解析: %v", err)
	}
	if key != (Key{Z: 7, X: 67, Y: 43}) {
		t.Fatalf("解析结果不符: %v", key)
	}
}
