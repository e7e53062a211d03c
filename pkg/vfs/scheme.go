package vfs

import (
	"regexp"
)

var schemeRegexp = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)

// Scheme names a file system type, either an archive format or the native
// file system. Equality is case sensitive.
type Scheme string

// FileScheme is the scheme of the native file system.
const FileScheme Scheme = "file"

// ParseScheme checks s against the URI scheme syntax.
func ParseScheme(s string) (Scheme, error) {
	if !IsValidScheme(s) {
		return "", syntaxError(s, "illegal scheme")
	}
	return Scheme(s), nil
}

// IsValidScheme reports whether s can be used as a scheme.
func IsValidScheme(s string) bool {
	return schemeRegexp.MatchString(s)
}

func (s Scheme) String() string {
	return string(s)
}
