// Package meshutil holds stateless helpers shared by the importer:
// name sanitization, OBJ parsing, metadata flattening, material
// construction and the mesh fingerprints used for instance detection.
package meshutil

import (
	"fmt"
	"strings"
)

// invalidNameChars are the filesystem-reserved characters stripped from
// object names; they break both scene lookups and exported file names.
const invalidNameChars = `/\:*?"<>|`

// SanitizeName replaces reserved characters with underscores and trims
// whitespace. An empty or all-space name becomes "CAD_Object".
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(invalidNameChars, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "CAD_Object"
	}
	return out
}

// UniqueName returns name, or name with a ".001"-style suffix when the
// name is already taken.
func UniqueName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	base := name
	// Strip an existing numeric suffix so "Part.001" counts up from
	// "Part", not "Part.001.001".
	if i := strings.LastIndex(name, "."); i > 0 && i == len(name)-4 {
		if isDigits(name[i+1:]) {
			base = name[:i]
		}
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.%03d", base, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// BaseName strips a ".001"-style duplicate suffix, returning the clean
// name used for hierarchy matching.
func BaseName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 && isDigits(name[i+1:]) && len(name)-i-1 > 0 {
		return name[:i]
	}
	return name
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
