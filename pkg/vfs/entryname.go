package vfs

import (
	"net/url"
	"strings"
)

// Separator is the separator of names in all paths and URIs of this package.
const Separator = "/"

// EntryName is the canonical name of an entry relative to the root of a
// file system. The path is kept decoded; String returns the URI form.
type EntryName struct {
	path  string
	query string
}

// Root is the entry name of a file system root.
var Root = EntryName{}

// NewEntryName canonicalizes the decoded, relative path p.
func NewEntryName(p string) (EntryName, error) {
	if strings.IndexByte(p, 0) >= 0 {
		return Root, syntaxError(p, "contains NUL")
	}
	c, ok := canonicalPath(p)
	if !ok {
		return Root, syntaxError(p, "climbs above the root")
	}
	return EntryName{path: c}, nil
}

// MustEntryName is like NewEntryName but panics on error.
func MustEntryName(p string) EntryName {
	e, err := NewEntryName(p)
	if err != nil {
		panic(err)
	}
	return e
}

// ParseEntryName parses the relative URI reference s, e.g. "a/b%20c?x=1".
func ParseEntryName(s string) (EntryName, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Root, syntaxError(s, "%v", err)
	}
	switch {
	case u.Scheme != "" || u.Opaque != "":
		return Root, syntaxError(s, "not a relative URI")
	case u.Host != "" || u.User != nil:
		return Root, syntaxError(s, "has an authority")
	case u.Fragment != "" || strings.HasSuffix(s, "#"):
		return Root, syntaxError(s, "has a fragment")
	case strings.HasPrefix(u.Path, Separator):
		return Root, syntaxError(s, "is absolute")
	}
	e, err := NewEntryName(u.Path)
	if err != nil {
		return Root, err
	}
	return e.WithQuery(u.RawQuery), nil
}

// canonicalPath removes empty and dot segments and resolves dot-dot segments.
func canonicalPath(p string) (string, bool) {
	if p == "" {
		return "", true
	}
	segs := strings.Split(p, Separator)
	out := segs[:0]
	for _, s := range segs {
		switch s {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return "", false
			}
			out = out[:len(out)-1]
		default:
			out = append(out, s)
		}
	}
	return strings.Join(out, Separator), true
}

// WithQuery returns a copy of e with the raw query q.
func (e EntryName) WithQuery(q string) EntryName {
	e.query = q
	return e
}

// IsRoot reports whether e names the root of its file system.
func (e EntryName) IsRoot() bool {
	return e.path == "" && e.query == ""
}

// Path returns the decoded path.
func (e EntryName) Path() string {
	return e.path
}

// Query returns the raw query, if any.
func (e EntryName) Query() string {
	return e.query
}

// Base returns the last segment of the path.
func (e EntryName) Base() string {
	return e.path[strings.LastIndex(e.path, Separator)+1:]
}

// Parent returns the entry name of the parent directory. The query is
// dropped. The parent of the root is the root.
func (e EntryName) Parent() EntryName {
	i := strings.LastIndex(e.path, Separator)
	if i < 0 {
		return Root
	}
	return EntryName{path: e.path[:i]}
}

// Join appends child to e. The query of child is kept.
func (e EntryName) Join(child EntryName) EntryName {
	switch {
	case child.path == "":
		return EntryName{path: e.path, query: child.query}
	case e.path == "":
		return child
	}
	return EntryName{path: e.path + Separator + child.path, query: child.query}
}

// Segments returns the decoded path segments; nil for the root.
func (e EntryName) Segments() []string {
	if e.path == "" {
		return nil
	}
	return strings.Split(e.path, Separator)
}

// String returns the URI form of e with percent-encoded segments.
func (e EntryName) String() string {
	s := escapePath(e.path)
	if e.query != "" {
		s += "?" + e.query
	}
	return s
}

// escapePath encodes each segment of p; "!" is always encoded so that the
// "!/" separator of opaque URIs stays unambiguous.
func escapePath(p string) string {
	if p == "" {
		return ""
	}
	segs := strings.Split(p, Separator)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, Separator)
}
