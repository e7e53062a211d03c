package vfs

import (
	"net/url"
	"strings"
)

// OpaqueSeparator ends the parent part of an opaque URI.
const OpaqueSeparator = "!/"

// MountPoint identifies a file system instance. A hierarchical mount point
// wraps an absolute directory URI like "file:/home/x/". An opaque mount point
// wraps a scheme and the node path of an archive file, as in
// "zip:file:/home/x/a.zip!/".
type MountPoint struct {
	scheme    Scheme
	authority string
	dir       string
	path      *NodePath
	uri       string
	huri      string
}

// NewHierarchicalMountPoint returns the mount point of the decoded absolute
// directory dir, which is canonicalized.
func NewHierarchicalMountPoint(scheme Scheme, authority, dir string) (*MountPoint, error) {
	if !strings.HasPrefix(dir, Separator) {
		return nil, syntaxError(dir, "not an absolute directory")
	}
	c, ok := canonicalPath(dir)
	if !ok {
		return nil, syntaxError(dir, "climbs above the root")
	}
	return newHierarchical(scheme, authority, c), nil
}

// newHierarchical takes a canonical relative path and returns the mount
// point of the directory it names.
func newHierarchical(scheme Scheme, authority, rel string) *MountPoint {
	dir := Separator
	if rel != "" {
		dir = Separator + rel + Separator
	}
	mp := &MountPoint{scheme: scheme, authority: authority, dir: dir}
	var b strings.Builder
	b.WriteString(string(scheme))
	b.WriteByte(':')
	if authority != "" {
		b.WriteString("//")
		b.WriteString(authority)
	}
	b.WriteString(escapePath(dir))
	mp.uri = b.String()
	mp.huri = mp.uri
	return mp
}

// NewOpaqueMountPoint returns the mount point of the archive file at path
// interpreted according to scheme.
func NewOpaqueMountPoint(scheme Scheme, path NodePath) *MountPoint {
	p := path
	mp := &MountPoint{scheme: scheme, path: &p}
	mp.uri = string(scheme) + ":" + p.URI() + OpaqueSeparator
	mp.huri = p.HierarchicalURI() + Separator
	return mp
}

// NewMountPoint parses uri, which must either be an absolute hierarchical URI
// with a path ending in "/" or an opaque URI ending in "!/".
func NewMountPoint(uri string) (*MountPoint, error) {
	scheme, rest, ok := splitScheme(uri)
	if !ok {
		return nil, syntaxError(uri, "missing scheme")
	}
	if !strings.HasPrefix(rest, Separator) {
		if !strings.HasSuffix(rest, OpaqueSeparator) {
			return nil, syntaxError(uri, "opaque mount point must end with %q", OpaqueSeparator)
		}
		path, err := ParseNodePath(strings.TrimSuffix(rest, OpaqueSeparator))
		if err != nil {
			return nil, err
		}
		return NewOpaqueMountPoint(scheme, path), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, syntaxError(uri, "%v", err)
	}
	switch {
	case u.RawQuery != "" || u.ForceQuery:
		return nil, syntaxError(uri, "has a query")
	case u.Fragment != "" || strings.HasSuffix(uri, "#"):
		return nil, syntaxError(uri, "has a fragment")
	case u.User != nil:
		return nil, syntaxError(uri, "has user info")
	case !strings.HasSuffix(u.Path, Separator):
		return nil, syntaxError(uri, "path must end with %q", Separator)
	}
	return NewHierarchicalMountPoint(scheme, u.Host, u.Path)
}

// MustMountPoint is like NewMountPoint but panics on error.
func MustMountPoint(uri string) *MountPoint {
	mp, err := NewMountPoint(uri)
	if err != nil {
		panic(err)
	}
	return mp
}

// splitScheme splits "scheme:rest".
func splitScheme(s string) (Scheme, string, bool) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || !IsValidScheme(s[:i]) {
		return "", s, false
	}
	return Scheme(s[:i]), s[i+1:], true
}

// Scheme returns the scheme.
func (mp *MountPoint) Scheme() Scheme {
	return mp.scheme
}

// Authority returns the authority of a hierarchical mount point.
func (mp *MountPoint) Authority() string {
	return mp.authority
}

// Dir returns the decoded directory of a hierarchical mount point, always
// ending with "/".
func (mp *MountPoint) Dir() string {
	return mp.dir
}

// Path returns the node path of the archive file of an opaque mount point
// or nil.
func (mp *MountPoint) Path() *NodePath {
	return mp.path
}

// IsOpaque reports whether mp is an archive mount point.
func (mp *MountPoint) IsOpaque() bool {
	return mp.path != nil
}

// Parent returns the mount point of the file system holding the archive
// file, or nil for hierarchical mount points.
func (mp *MountPoint) Parent() *MountPoint {
	if mp.path == nil {
		return nil
	}
	return mp.path.mountPoint
}

// Top returns the root of the native file system at the end of the chain
// of parents.
func (mp *MountPoint) Top() *MountPoint {
	for mp.Parent() != nil {
		mp = mp.Parent()
	}
	return mp.Root()
}

// Depth returns 0 for hierarchical mount points and the nesting level for
// opaque ones.
func (mp *MountPoint) Depth() int {
	d := 0
	for p := mp; p != nil && p.path != nil; p = p.Parent() {
		d++
	}
	return d
}

// URI returns the URI, keeping the opaque nesting syntax.
func (mp *MountPoint) URI() string {
	return mp.uri
}

// HierarchicalURI returns the URI with all "!/" separators flattened.
func (mp *MountPoint) HierarchicalURI() string {
	return mp.huri
}

// Equal reports whether mp and other have the same URI.
func (mp *MountPoint) Equal(other *MountPoint) bool {
	if mp == nil || other == nil {
		return mp == other
	}
	return mp.uri == other.uri
}

func (mp *MountPoint) String() string {
	return mp.uri
}

// Root returns the root of the hierarchical file system of mp, which is the
// mount point of its controller. Opaque mount points are their own root.
func (mp *MountPoint) Root() *MountPoint {
	if mp.path != nil || mp.dir == Separator {
		return mp
	}
	return newHierarchical(mp.scheme, mp.authority, "")
}
