package vfs

import (
	"net/url"
	"strings"
)

// NodePath addresses the entry named by an EntryName within the file system
// identified by a MountPoint. A nil mount point makes a relative node path.
//
// Node paths of hierarchical mount points are kept in canonical form: the
// mount point is the parent directory and the entry name is the last
// segment. Only the root of an authority has the root entry name.
type NodePath struct {
	mountPoint *MountPoint
	entryName  EntryName
	uri        string
}

// NewNodePath returns the node path of e within mp.
func NewNodePath(mp *MountPoint, e EntryName) NodePath {
	if mp != nil && !mp.IsOpaque() {
		mp, e = canonicalHierarchical(mp, e)
	}
	p := NodePath{mountPoint: mp, entryName: e}
	switch {
	case mp == nil:
		p.uri = e.String()
	default:
		p.uri = mp.uri + e.String()
	}
	return p
}

func canonicalHierarchical(mp *MountPoint, e EntryName) (*MountPoint, EntryName) {
	if !strings.Contains(e.path, Separator) && (e.path != "" || mp.dir == Separator) {
		return mp, e
	}
	full := strings.Trim(mp.dir+e.path, Separator)
	if full == "" {
		return mp.Root(), e
	}
	rel := ""
	i := strings.LastIndex(full, Separator)
	if i >= 0 {
		rel = full[:i]
	}
	return newHierarchical(mp.scheme, mp.authority, rel), EntryName{path: full[i+1:], query: e.query}
}

// ParseNodePath parses an opaque, hierarchical or relative URI.
func ParseNodePath(uri string) (NodePath, error) {
	scheme, rest, ok := splitScheme(uri)
	if !ok {
		e, err := ParseEntryName(uri)
		if err != nil {
			return NodePath{}, err
		}
		return NewNodePath(nil, e), nil
	}
	if !strings.HasPrefix(rest, Separator) {
		i := strings.LastIndex(uri, OpaqueSeparator)
		if i < 0 {
			return NodePath{}, syntaxError(uri, "missing %q in opaque URI", OpaqueSeparator)
		}
		mp, err := NewMountPoint(uri[:i+len(OpaqueSeparator)])
		if err != nil {
			return NodePath{}, err
		}
		e, err := ParseEntryName(uri[i+len(OpaqueSeparator):])
		if err != nil {
			return NodePath{}, err
		}
		return NewNodePath(mp, e), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return NodePath{}, syntaxError(uri, "%v", err)
	}
	if u.Fragment != "" || strings.HasSuffix(uri, "#") {
		return NodePath{}, syntaxError(uri, "has a fragment")
	}
	c, ok := canonicalPath(u.Path)
	if !ok {
		return NodePath{}, syntaxError(uri, "climbs above the root")
	}
	e := EntryName{path: c, query: u.RawQuery}
	return NewNodePath(newHierarchical(scheme, u.Host, ""), e), nil
}

// MustNodePath is like ParseNodePath but panics on error.
func MustNodePath(uri string) NodePath {
	p, err := ParseNodePath(uri)
	if err != nil {
		panic(err)
	}
	return p
}

// MountPoint returns the mount point or nil.
func (p NodePath) MountPoint() *MountPoint {
	return p.mountPoint
}

// EntryName returns the entry name.
func (p NodePath) EntryName() EntryName {
	return p.entryName
}

// IsZero reports whether p is the zero value.
func (p NodePath) IsZero() bool {
	return p.mountPoint == nil && p.entryName == Root
}

// IsAbsolute reports whether p has a mount point.
func (p NodePath) IsAbsolute() bool {
	return p.mountPoint != nil
}

// IsOpaque reports whether the URI of p uses the opaque nesting syntax.
func (p NodePath) IsOpaque() bool {
	return p.mountPoint != nil && p.mountPoint.IsOpaque()
}

// Resolve returns the node path of e relative to p.
func (p NodePath) Resolve(e EntryName) NodePath {
	return NewNodePath(p.mountPoint, p.entryName.Join(e))
}

// Parent returns the node path of the parent entry. The parent of an archive
// root is the parent of the archive file. There is no parent for the root of
// a hierarchical file system or a relative root.
func (p NodePath) Parent() (NodePath, bool) {
	for {
		if !p.entryName.IsRoot() {
			return NewNodePath(p.mountPoint, p.entryName.Parent()), true
		}
		if p.mountPoint == nil || p.mountPoint.path == nil {
			return NodePath{}, false
		}
		p = *p.mountPoint.path
	}
}

// URI returns the URI, keeping the opaque nesting syntax.
func (p NodePath) URI() string {
	return p.uri
}

// HierarchicalURI returns the URI with all "!/" separators flattened.
func (p NodePath) HierarchicalURI() string {
	switch {
	case p.mountPoint == nil:
		return p.entryName.String()
	case p.mountPoint.IsOpaque() && p.entryName.IsRoot():
		return strings.TrimSuffix(p.mountPoint.huri, Separator)
	}
	return p.mountPoint.huri + p.entryName.String()
}

// Equal reports whether p and other have the same URI.
func (p NodePath) Equal(other NodePath) bool {
	return p.uri == other.uri
}

func (p NodePath) String() string {
	return p.uri
}

// DirMountPoint returns the hierarchical mount point of the directory named
// by p, or nil if p is relative or opaque.
func (p NodePath) DirMountPoint() *MountPoint {
	mp := p.mountPoint
	if mp == nil || mp.IsOpaque() {
		return nil
	}
	if p.entryName.path == "" {
		return mp
	}
	c, _ := canonicalPath(mp.dir + p.entryName.path)
	return newHierarchical(mp.scheme, mp.authority, c)
}

// Mount returns the mount point of the controller which manages p and the
// entry name of p relative to it. For hierarchical node paths that is the
// root of the file system, for opaque ones the archive mount point itself.
func (p NodePath) Mount() (*MountPoint, EntryName) {
	mp := p.mountPoint
	if mp == nil || mp.IsOpaque() {
		return mp, p.entryName
	}
	dir := strings.Trim(mp.dir, Separator)
	if dir == "" {
		return mp, p.entryName
	}
	return mp.Root(), EntryName{path: dir}.Join(p.entryName)
}
