package util

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// HashStrings builds a compact sha1 signature over the given parts. Used to
// derive stable identities for target sets and invocation payloads.
func HashStrings(parts []string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func CopyStringStringMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func CopyStringSlice(src []string) []string {
	if src == nil {
		return nil
	}
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}
