// Package pngcheck performs structural validation of PNG payloads before
// they are admitted into the tile cache. Validation is purely structural:
// the fixed signature plus a walk over the chunk framing with a CRC-32
// check per chunk. The image is never decoded, so a payload can be checked
// in one pass without pulling in an imaging stack.
package pngcheck

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// PNG 文件头固定魔数。
var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// IsValid 校验负载是否为结构完整的 PNG：魔数、逐 chunk 的帧完整性与
// CRC-32。任何截断、长度异常或校验不符都按无效处理；只有魔数而没有
// 任何 chunk 的负载同样无效。宁可拒绝也不缓存可疑字节。
func IsValid(data []byte) bool {
	if len(data) < len(pngSignature) || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return false
	}

	offset := len(pngSignature)
	sawChunk := false
	for offset < len(data) {
		remaining := len(data) - offset
		// 每个 chunk 至少需要 length(4) + type(4) + crc(4) 共 12 字节。
		if remaining < 12 {
			return false
		}
		length := binary.BigEndian.Uint32(data[offset:])
		if uint64(length)+12 > uint64(remaining) {
			return false
		}

		payloadEnd := offset + 8 + int(length)
		chunk := data[offset+4 : payloadEnd] // type || data
		stored := binary.BigEndian.Uint32(data[payloadEnd:])
		if crc32.ChecksumIEEE(chunk) != stored {
			return false
		}

		offset = payloadEnd + 4
		sawChunk = true
	}
	return sawChunk
}
