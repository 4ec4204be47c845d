package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// MaxParamLength is the longest joined parameter string kept verbatim in a key.
const MaxParamLength = 50

// GenerateKey builds a deterministic key from a prefix and named parameters.
// Parameters are sorted by name and joined as name:value pairs; empty values
// are skipped. When the joined string exceeds MaxParamLength it is replaced by
// a fixed-width content hash.
func GenerateKey(prefix string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		names = append(names, k)
	}
	if len(names) == 0 {
		return prefix
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + ":" + params[k]
	}
	joined := strings.Join(parts, "_")
	if len(joined) > MaxParamLength {
		sum := sha256.Sum256([]byte(joined))
		joined = hex.EncodeToString(sum[:8])
	}
	return prefix + "_" + joined
}

// NamesPrefix is the key prefix for a culture's generation results.
func NamesPrefix(culture string) string {
	return "names:" + strings.ToLower(culture)
}

// NamesKey is the cache key for a generation request shape.
func NamesKey(culture, gender, length string, count int) string {
	return GenerateKey(NamesPrefix(culture), map[string]string{
		"gender": gender,
		"length": length,
		"count":  strconv.Itoa(count),
	})
}

// CulturePattern matches every key NamesKey produces for culture.
func CulturePattern(culture string) string {
	return NamesPrefix(culture) + "_*"
}
