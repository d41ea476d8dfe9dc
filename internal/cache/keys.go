package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// BuildKey builds a deterministic cache key: positional parts joined by ":",
// followed by the named params sorted by name and rendered as name=value.
// Two calls with the same parts and params produce the same key regardless
// of map construction order. The instance's key prefix is applied at the
// storage boundary, not here, so BuildKey output can be passed straight to
// Get and Set.
func BuildKey(params map[string]interface{}, parts ...string) string {
	segs := make([]string, 0, len(parts)+len(params))
	segs = append(segs, parts...)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		segs = append(segs, fmt.Sprintf("%s=%v", name, params[name]))
	}

	return strings.Join(segs, ":")
}

// ArtifactKey derives a stable key for a compiled artifact from its provider
// name, kind and configuration. Config entries are sorted by name before
// hashing, so two semantically identical configurations hash to the same
// key regardless of construction order. The digest is a fixed-length,
// collision-resistant sha256 hex string.
func ArtifactKey(provider, kind string, config map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(provider)
	b.WriteByte(':')
	b.WriteString(kind)

	names := make([]string, 0, len(config))
	for name := range config {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, ":%s=%v", name, config[name])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
