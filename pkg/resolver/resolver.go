// Package resolver resolves member names against node paths and inserts an
// archive mount point wherever a path segment names a prospective archive
// file.
package resolver

import (
	"strings"

	"github.com/crazy-max/nestfs/pkg/detector"
	"github.com/crazy-max/nestfs/pkg/vfs"
	"github.com/pkg/errors"
)

const dotDotSeparator = "../"

// Resolver is safe for concurrent use; it holds no mutable state.
type Resolver struct {
	detector *detector.ArchiveDetector
}

// New returns a resolver which detects archive files with d.
func New(d *detector.ArchiveDetector) *Resolver {
	if d == nil {
		d = detector.Null
	}
	return &Resolver{detector: d}
}

// Detector returns the archive detector.
func (r *Resolver) Detector() *detector.ArchiveDetector {
	return r.detector
}

// ResolveString parses member as a URI reference and resolves it.
func (r *Resolver) ResolveString(base vfs.NodePath, member string) (vfs.NodePath, error) {
	n, err := vfs.ParseName(member)
	if err != nil {
		return vfs.NodePath{}, err
	}
	return r.Resolve(base, n)
}

// Resolve returns the node path of member relative to base. Leading ".."
// segments climb up the chain of base, an absolute member replaces the path
// and authority of base, and each remaining segment is appended in turn.
func (r *Resolver) Resolve(base vfs.NodePath, member vfs.Name) (vfs.NodePath, error) {
	member = member.Normalize()
	if member.IsOpaque() {
		return vfs.NodePath{}, &vfs.NameSyntaxError{Name: member.String(), Reason: "opaque URI where a hierarchical one is required"}
	}
	if member.Fragment != "" {
		return vfs.NodePath{}, &vfs.NameSyntaxError{Name: member.String(), Reason: "fragment not allowed"}
	}

	root := base
	rel := member.Path
	for strings.HasPrefix(rel, dotDotSeparator) || rel == ".." {
		parent, ok := root.Parent()
		if !ok {
			return vfs.NodePath{}, &vfs.NameSyntaxError{Name: member.String(), Reason: "climbs above the root of " + base.String()}
		}
		root = parent
		if rel == ".." {
			return root, nil
		}
		rel = rel[len(dotDotSeparator):]
	}

	if member.IsAbsolute() {
		var err error
		if root, rel, err = absoluteRoot(base, member); err != nil {
			return vfs.NodePath{}, err
		}
	}

	return r.scan(root, rel, member.Query)
}

// absoluteRoot returns the root node path for an absolute member and the
// remaining relative path. Only the scheme of base is kept.
func absoluteRoot(base vfs.NodePath, member vfs.Name) (vfs.NodePath, string, error) {
	scheme := member.Scheme
	if scheme == "" {
		scheme = vfs.FileScheme
		if mp := base.MountPoint(); mp != nil {
			scheme = mp.Top().Scheme()
		}
	}
	l := member.PrefixLength()
	prefix := member.Path[:l]
	if !strings.HasSuffix(prefix, vfs.Separator) {
		prefix += vfs.Separator
	}
	mp, err := vfs.NewHierarchicalMountPoint(scheme, member.Authority, prefix)
	if err != nil {
		return vfs.NodePath{}, "", errors.Wrapf(err, "cannot resolve %q", member.String())
	}
	return vfs.NewNodePath(mp, vfs.Root), member.Path[l:], nil
}

// scan appends the segments of rel to root from the parent-most segment down
// to the last one, which receives query.
func (r *Resolver) scan(root vfs.NodePath, rel, query string) (vfs.NodePath, error) {
	var segs []string
	if rel != "" {
		segs = strings.Split(rel, vfs.Separator)
	}
	if len(segs) == 0 {
		if query == "" {
			return root, nil
		}
		segs = []string{""}
	}
	p := root
	for i, seg := range segs {
		e, err := vfs.NewEntryName(seg)
		if err != nil {
			return vfs.NodePath{}, err
		}
		if i == len(segs)-1 {
			e = e.WithQuery(query)
		}
		p = r.compose(p, e)
	}
	return p, nil
}

// compose appends e to p and mounts an archive file system if e names a
// prospective archive file.
func (r *Resolver) compose(p vfs.NodePath, e vfs.EntryName) vfs.NodePath {
	if e.IsRoot() {
		return p
	}
	var np vfs.NodePath
	mp := p.MountPoint()
	if mp == nil || mp.IsOpaque() {
		np = p.Resolve(e)
	} else {
		np = vfs.NewNodePath(p.DirMountPoint(), e)
	}
	if s, ok := r.detector.Scheme(e.String()); ok {
		np = vfs.NewNodePath(vfs.NewOpaqueMountPoint(s, np), vfs.Root)
	}
	return np
}
