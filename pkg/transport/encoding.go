package transport

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// decodeText converts a JSON body to a UTF-8 string. The encoding is
// guessed from the first four bytes (BOM, or the null-byte pattern a
// BOM-less UTF-16/32 document starts with, since JSON must open with
// an ASCII character). Servers in this domain do not send a charset,
// so the headers cannot be trusted.
func decodeText(body []byte) string {
	if len(body) < 4 {
		return string(body)
	}
	sample := body[:4]

	switch {
	case bytes.HasPrefix(sample, []byte{0xFF, 0xFE, 0x00, 0x00}):
		return decodeUTF32(body[4:], binary.LittleEndian)
	case bytes.HasPrefix(sample, []byte{0x00, 0x00, 0xFE, 0xFF}):
		return decodeUTF32(body[4:], binary.BigEndian)
	case bytes.HasPrefix(sample, []byte{0xEF, 0xBB, 0xBF}):
		return string(body[3:])
	case bytes.HasPrefix(sample, []byte{0xFF, 0xFE}):
		return decodeUTF16(body[2:], binary.LittleEndian)
	case bytes.HasPrefix(sample, []byte{0xFE, 0xFF}):
		return decodeUTF16(body[2:], binary.BigEndian)
	}

	switch bytes.Count(sample, []byte{0x00}) {
	case 0:
		return string(body)
	case 2:
		if sample[0] == 0x00 && sample[2] == 0x00 {
			return decodeUTF16(body, binary.BigEndian)
		}
		if sample[1] == 0x00 && sample[3] == 0x00 {
			return decodeUTF16(body, binary.LittleEndian)
		}
	case 3:
		if sample[0] == 0x00 && sample[1] == 0x00 && sample[2] == 0x00 {
			return decodeUTF32(body, binary.BigEndian)
		}
		if sample[1] == 0x00 && sample[2] == 0x00 && sample[3] == 0x00 {
			return decodeUTF32(body, binary.LittleEndian)
		}
	}

	return string(body)
}

func decodeUTF16(b []byte, order binary.ByteOrder) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, order.Uint16(b[i:]))
	}
	return string(utf16.Decode(units))
}

func decodeUTF32(b []byte, order binary.ByteOrder) string {
	runes := make([]rune, 0, len(b)/4)
	for i := 0; i+3 < len(b); i += 4 {
		runes = append(runes, rune(order.Uint32(b[i:])))
	}
	return string(runes)
}
