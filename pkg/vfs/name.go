package vfs

import (
	"net/url"
	"strings"
)

// Name is a hierarchical member name as consumed by the resolver. The path
// is decoded and always uses "/" as separator.
type Name struct {
	Scheme    Scheme
	Authority string
	Path      string
	Query     string
	Fragment  string
	Opaque    string
}

// ParseName parses s as a URI reference and normalizes it.
func ParseName(s string) (Name, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return Name{}, syntaxError(s, "contains NUL")
	}
	u, err := url.Parse(s)
	if err != nil {
		return Name{}, syntaxError(s, "%v", err)
	}
	n := Name{
		Scheme:    Scheme(u.Scheme),
		Authority: u.Host,
		Path:      u.Path,
		Query:     u.RawQuery,
		Fragment:  u.Fragment,
		Opaque:    u.Opaque,
	}
	if n.Fragment == "" && strings.HasSuffix(s, "#") {
		n.Fragment = "#"
	}
	return n.Normalize(), nil
}

// PathName parses the native path p which uses separator besides "/". A
// leading double separator introduces an authority as in "//host/share".
func PathName(p string, separator byte) (Name, error) {
	if strings.IndexByte(p, 0) >= 0 {
		return Name{}, syntaxError(p, "contains NUL")
	}
	if separator != '/' {
		p = strings.ReplaceAll(p, string(separator), Separator)
	}
	var n Name
	if separator == '\\' && hasDriveLetter(p) {
		p = Separator + p
	}
	if strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "///") {
		rest := p[2:]
		i := strings.Index(rest, Separator)
		if i < 0 {
			n.Authority, p = rest, Separator
		} else {
			n.Authority, p = rest[:i], rest[i:]
		}
		if n.Authority == "" {
			return Name{}, syntaxError(p, "empty authority")
		}
	}
	n.Path = p
	return n.Normalize(), nil
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// NormalizePath normalizes a "/" separated path, keeping a leading "//host"
// authority prefix.
func NormalizePath(p string) (string, error) {
	n, err := PathName(p, '/')
	if err != nil {
		return "", err
	}
	if n.Authority != "" {
		return "//" + n.Authority + n.Path, nil
	}
	return n.Path, nil
}

// Normalize collapses separators, strips trailing separators and removes
// dot segments. Leading ".." segments of a relative path are kept, those of
// an absolute path are dropped.
func (n Name) Normalize() Name {
	if n.Opaque != "" {
		return n
	}
	n.Path = normalizePath(n.Path, n.Authority != "")
	return n
}

func normalizePath(p string, hasAuthority bool) string {
	if p == "" {
		if hasAuthority {
			return Separator
		}
		return ""
	}
	abs := strings.HasPrefix(p, Separator) || hasAuthority
	var out []string
	for _, s := range strings.Split(p, Separator) {
		switch s {
		case "", ".":
		case "..":
			switch {
			case len(out) > 0 && out[len(out)-1] != "..":
				out = out[:len(out)-1]
			case !abs:
				out = append(out, s)
			}
		default:
			out = append(out, s)
		}
	}
	if abs {
		return Separator + strings.Join(out, Separator)
	}
	return strings.Join(out, Separator)
}

// IsOpaque reports whether n is an opaque URI.
func (n Name) IsOpaque() bool {
	return n.Opaque != ""
}

// IsAbsolute reports whether n has an authority or an absolute path.
func (n Name) IsAbsolute() bool {
	return n.Authority != "" || strings.HasPrefix(n.Path, Separator)
}

// PrefixLength returns the length of the absolute prefix of the path: 0 for
// relative paths, 1 for "/" and 4 for a drive letter prefix like "/C:/".
func (n Name) PrefixLength() int {
	p := n.Path
	if !strings.HasPrefix(p, Separator) {
		return 0
	}
	if hasDriveLetter(p[1:]) {
		if len(p) == 3 {
			return 3
		}
		if p[3] == '/' {
			return 4
		}
	}
	return 1
}

func (n Name) String() string {
	var b strings.Builder
	if n.Scheme != "" {
		b.WriteString(string(n.Scheme))
		b.WriteByte(':')
	}
	if n.Opaque != "" {
		b.WriteString(n.Opaque)
	} else {
		if n.Authority != "" {
			b.WriteString("//")
			b.WriteString(n.Authority)
		}
		b.WriteString(escapePath(n.Path))
	}
	if n.Query != "" {
		b.WriteByte('?')
		b.WriteString(n.Query)
	}
	if n.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(strings.TrimPrefix(n.Fragment, "#"))
	}
	return b.String()
}
