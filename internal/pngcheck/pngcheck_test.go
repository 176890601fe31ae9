package pngcheck

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"testing"
)

func TestIsValidAcceptsWellFormedPNG(t *testing.T) {
	if !IsValid(validPNG(t)) {
		t.Fatalf("well-formed PNG should validate")
	}
}

func TestIsValidAcceptsEncoderOutput(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if !IsValid(buf.Bytes()) {
		t.Fatalf("encoder output should validate")
	}
}

func TestIsValidRejectsFlippedDataByte(t *testing.T) {
	png := validPNG(t)
	// 翻转 IDAT 数据段内的一个字节，CRC 必须能发现。
	idx := len(pngSignature) + 12 + 13 + 8 + 2 // IHDR chunk 之后，IDAT 数据内
	png[idx] ^= 0xff
	if IsValid(png) {
		t.Fatalf("flipped data byte must invalidate the payload")
	}
}

func TestIsValidRejectsTruncation(t *testing.T) {
	png := validPNG(t)
	// 恰好落在 chunk 边界上的前缀本身就是一个更短的合法 PNG 结构，
	// 结构校验无法区分，跳过这些位置；其余任何截断都必须失败。
	afterIHDR := len(pngSignature) + 12 + 13
	afterIDAT := afterIHDR + 12 + 9
	boundaries := map[int]bool{afterIHDR: true, afterIDAT: true}

	for i := 1; i < len(png); i++ {
		if boundaries[i] {
			continue
		}
		if IsValid(png[:i]) {
			t.Fatalf("truncated payload of %d bytes must be invalid", i)
		}
	}
}

func TestIsValidRejectsBadSignature(t *testing.T) {
	png := validPNG(t)
	png[0] = 'X'
	if IsValid(png) {
		t.Fatalf("corrupted signature must be invalid")
	}
}

func TestIsValidRejectsSignatureOnly(t *testing.T) {
	sig := make([]byte, len(pngSignature))
	copy(sig, pngSignature)
	if IsValid(sig) {
		t.Fatalf("signature without chunks must be invalid")
	}
}

func TestIsValidRejectsOversizedChunkLength(t *testing.T) {
	png := validPNG(t)
	// 把 IHDR 的长度字段改成远超剩余字节的值。
	binary.BigEndian.PutUint32(png[len(pngSignature):], 0x7fffffff)
	if IsValid(png) {
		t.Fatalf("absurd chunk length must be invalid")
	}
}

func TestIsValidRejectsEmptyAndGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		[]byte("<html>502 Bad Gateway</html>"),
		[]byte{0x89, 'P', 'N', 'G'},
	}
	for _, payload := range cases {
		if IsValid(payload) {
			t.Fatalf("payload %q must be invalid", payload)
		}
	}
}

// buildChunk 按 PNG 帧格式构造单个 chunk。
func buildChunk(t *testing.T, typ string, data []byte) []byte {
	t.Helper()
	buf := make([]byte, 0, 12+len(data))
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	buf = append(buf, length[:]...)
	buf = append(buf, typ...)
	buf = append(buf, data...)
	sum := crc32.ChecksumIEEE(append([]byte(typ), data...))
	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], sum)
	return append(buf, crc[:]...)
}

// validPNG 构造一个最小的结构完整 PNG：IHDR + IDAT + IEND。
func validPNG(t *testing.T) []byte {
	t.Helper()
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], 1) // width
	binary.BigEndian.PutUint32(ihdr[4:], 1) // height
	ihdr[8] = 8                             // bit depth

	png := make([]byte, 0, 96)
	png = append(png, pngSignature...)
	png = append(png, buildChunk(t, "IHDR", ihdr)...)
	png = append(png, buildChunk(t, "IDAT", []byte{0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00, 0xff, 0xff})...)
	png = append(png, buildChunk(t, "IEND", nil)...)
	return png
}
