// Package helpers provides small utility functions shared across the codebase.
package helpers

import "encoding/hex"

// DigestHex encodes a hash digest as a lowercase hex string.
func DigestHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DigestFromHex decodes a hex-encoded digest back to bytes.
func DigestFromHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
