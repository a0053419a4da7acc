package utils

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// GroupHex hex encodes data in groups of size bytes separated by spaces.
// A size below 1 returns plain hex.
func GroupHex(data []byte, size int) string {
	if size < 1 {
		return hex.EncodeToString(data)
	}
	var b strings.Builder
	for i := 0; i < len(data); i += size {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := min(i+size, len(data))
		b.WriteString(hex.EncodeToString(data[i:end]))
	}
	return b.String()
}

// ParseHex decodes hex that may contain spaces, colons or newlines, as
// produced by GroupHex or copied from a fingerprint.
func ParseHex(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "0x"), "0X")
	if cleaned == "" {
		return nil, fmt.Errorf("no hex data provided")
	}
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}
