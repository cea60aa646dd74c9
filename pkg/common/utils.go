// Package common provides shared utilities for the lending-circle protocol.
package common

import (
	"crypto/rand"
	"encoding/hex"
)

// HexToBytes converts a hex string to bytes, accepting an optional 0x prefix.
func HexToBytes(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// RandomBytes generates n random bytes
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Clamp constrains a value to a range
func Clamp(value, min, max uint64) uint64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
