package model

import (
	"regexp"
	"strings"
)

// DefaultCollection is used whenever a request names no collection.
const DefaultCollection = "default_collection"

var collectionNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,62}$`)

// ValidCollectionName reports whether name is usable as a collection
// identifier (and as a file name on disk).
func ValidCollectionName(name string) bool {
	return collectionNameRe.MatchString(name) && !strings.Contains(name, "..")
}

// SanitizeCollectionName derives a collection name from free text such as an
// uploaded file's stem. It returns "" when nothing usable remains.
func SanitizeCollectionName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), "_-")
	if len(out) > 63 {
		out = out[:63]
	}
	if !ValidCollectionName(out) {
		return ""
	}
	return out
}
