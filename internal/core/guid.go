package core

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	guidAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
	guidLength       = 8
	shortIDLength    = 4
	shortIDMaxLength = guidLength
)

// GenerateGUID creates a short GUID with the provided prefix, e.g. "msg-a1b2c3d4".
func GenerateGUID(prefix string) (string, error) {
	normalized := strings.TrimSuffix(prefix, "-")

	buf := make([]byte, guidLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate guid: %w", err)
	}

	id := make([]byte, guidLength)
	for i := 0; i < guidLength; i++ {
		id[i] = guidAlphabet[int(buf[i])%len(guidAlphabet)]
	}

	return fmt.Sprintf("%s-%s", normalized, string(id)), nil
}

// ShortID trims a GUID to its display prefix, dropping the type prefix.
func ShortID(guid string, length int) string {
	base := guid
	if idx := strings.IndexByte(base, '-'); idx >= 0 && idx < len(base)-1 {
		base = base[idx+1:]
	}
	if length <= 0 {
		length = shortIDLength
	}
	if length > shortIDMaxLength {
		length = shortIDMaxLength
	}
	if length > len(base) {
		length = len(base)
	}
	return base[:length]
}
