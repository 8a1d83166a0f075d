package utils

import (
	"fmt"
	"strings"
)

// base34 drops I and O so encoded values survive case-insensitive and hand-typed transport.
const base34Table = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
const tableLen = uint64(len(base34Table))

// EncodeBase34 renders v in base34 without padding.
func EncodeBase34(v uint64) string {
	if v == 0 {
		return "0"
	}

	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = base34Table[v%tableLen]
		v /= tableLen
	}
	return string(buf[i:])
}

// DecodeBase34 parses a string produced by EncodeBase34.
func DecodeBase34(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("base34: empty input")
	}

	var v uint64
	for _, r := range s {
		idx := strings.IndexRune(base34Table, r)
		if idx < 0 {
			return 0, fmt.Errorf("base34: invalid character %q", r)
		}
		next := v*tableLen + uint64(idx)
		if next/tableLen != v {
			return 0, fmt.Errorf("base34: value overflows uint64")
		}
		v = next
	}
	return v, nil
}
