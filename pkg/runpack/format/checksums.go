package format

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Checksums are rendered with an algorithm prefix: "sha256:c0ffee...".
const checksumPrefix = "sha256:"

// FormatChecksum renders a footer checksum for display.
func FormatChecksum(sum [ChecksumSize]byte) string {
	return checksumPrefix + hex.EncodeToString(sum[:])
}

// ParseChecksum parses a checksum string that may or may not have a prefix
func ParseChecksum(s string) ([ChecksumSize]byte, error) {
	var sum [ChecksumSize]byte

	value := strings.TrimSpace(s)
	if algo, rest, ok := strings.Cut(value, ":"); ok {
		if algo != strings.TrimSuffix(checksumPrefix, ":") {
			return sum, fmt.Errorf("unknown checksum algorithm: %s", algo)
		}
		value = rest
	}

	if len(value) != hex.EncodedLen(ChecksumSize) {
		return sum, fmt.Errorf("invalid checksum length: %d hex digits", len(value))
	}
	if _, err := hex.Decode(sum[:], []byte(strings.ToLower(value))); err != nil {
		return sum, fmt.Errorf("invalid checksum format: %w", err)
	}
	return sum, nil
}

// CalculateChecksum returns the digest stored in a footer for descriptor.
func CalculateChecksum(descriptor []byte) [ChecksumSize]byte {
	return sha256.Sum256(descriptor)
}
