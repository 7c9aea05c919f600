package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key builds a stable cache key from a namespace and a set of
// name/value parts. Parts are sorted by name before hashing so callers
// do not need to agree on field order. The returned key is
// "<namespace>:<16-hex-digit xxhash>".
func Key(namespace string, parts map[string]string) string {
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(parts[name])
		b.WriteByte('\x00')
	}
	return fmt.Sprintf("%s:%016x", namespace, xxhash.Sum64String(b.String()))
}
