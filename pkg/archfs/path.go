// Package archfs is the user facing side of the virtual file system: a Path
// names a file or directory anywhere in a tree of nested archive files, and
// its methods operate on it as if every archive file were a directory.
package archfs

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/crazy-max/nestfs/pkg/detector"
	"github.com/crazy-max/nestfs/pkg/resolver"
	"github.com/crazy-max/nestfs/pkg/vfs"
)

// Path is an immutable, resolved path. The innermost archive containing or
// being the path and the archive enclosing it are derived on construction;
// paths built from one another share these derived values.
type Path struct {
	np       vfs.NodePath
	detector *detector.ArchiveDetector
	inner    *Path
	encl     *Path
}

// New resolves the native path name against the working directory with the
// detector of the Config carried by ctx.
func New(ctx context.Context, name string) (*Path, error) {
	cfg := ConfigFrom(ctx)
	return newPathName(cfg, cfg.Detector, name)
}

func newPathName(cfg Config, d *detector.ArchiveDetector, name string) (*Path, error) {
	n, err := vfs.PathName(name, os.PathSeparator)
	if err != nil {
		return nil, err
	}
	base, err := cfg.workDir()
	if err != nil {
		return nil, err
	}
	np, err := resolver.New(d).Resolve(base, n)
	if err != nil {
		return nil, err
	}
	return newPath(np, d, nil), nil
}

// FromURI resolves the hierarchical URI reference uri against the working
// directory, e.g. "file:/home/x/outer.zip/inner.tar/file.txt".
func FromURI(ctx context.Context, uri string) (*Path, error) {
	cfg := ConfigFrom(ctx)
	base, err := cfg.workDir()
	if err != nil {
		return nil, err
	}
	np, err := resolver.New(cfg.Detector).ResolveString(base, uri)
	if err != nil {
		return nil, err
	}
	return newPath(np, cfg.Detector, nil), nil
}

// FromNodePath returns the path of an already resolved node path.
func FromNodePath(np vfs.NodePath, d *detector.ArchiveDetector) *Path {
	if d == nil {
		d = detector.Null
	}
	return newPath(np, d, nil)
}

func newPath(np vfs.NodePath, d *detector.ArchiveDetector, hint *Path) *Path {
	p := &Path{np: np, detector: d}
	mp := np.MountPoint()
	if mp == nil || !mp.IsOpaque() {
		return p
	}
	if np.EntryName().IsRoot() {
		p.inner = p
		if pmp := mp.Parent(); pmp != nil && pmp.IsOpaque() {
			p.encl = archiveOf(pmp, d, hint)
		}
		return p
	}
	p.encl = archiveOf(mp, d, hint)
	p.inner = p.encl
	return p
}

// archiveOf returns the path of the archive mounted at mp, preferring one
// already known to hint or its enclosing archives.
func archiveOf(mp *vfs.MountPoint, d *detector.ArchiveDetector, hint *Path) *Path {
	for h := hint; h != nil; h = h.encl {
		if h.inner != nil && h.detector == d && h.inner.np.MountPoint().Equal(mp) {
			return h.inner
		}
	}
	return newPath(vfs.NewNodePath(mp, vfs.Root), d, hint)
}

// Join resolves the "/" separated name against p.
func (p *Path) Join(name string) (*Path, error) {
	n, err := vfs.PathName(name, '/')
	if err != nil {
		return nil, err
	}
	np, err := resolver.New(p.detector).Resolve(p.np, n)
	if err != nil {
		return nil, err
	}
	return newPath(np, p.detector, p), nil
}

// Parent returns the parent directory or nil. The parent of an archive is
// the directory containing the archive file.
func (p *Path) Parent() *Path {
	np, ok := p.np.Parent()
	if !ok {
		return nil
	}
	if p.encl != nil && np.Equal(p.encl.np) {
		return p.encl
	}
	return newPath(np, p.detector, p)
}

// Normalize returns p. Paths are normalized on construction.
func (p *Path) Normalize() *Path {
	return p
}

// NodePath returns the resolved node path.
func (p *Path) NodePath() vfs.NodePath {
	return p.np
}

// Detector returns the detector p was resolved with.
func (p *Path) Detector() *detector.ArchiveDetector {
	return p.detector
}

// URI returns the URI with the opaque nesting syntax, e.g.
// "tar:zip:file:/home/x/outer.zip!/inner.tar!/file.txt".
func (p *Path) URI() string {
	return p.np.URI()
}

// String returns the native path, e.g. "/home/x/outer.zip/inner.tar/file.txt".
func (p *Path) String() string {
	huri := p.np.HierarchicalURI()
	u, err := url.Parse(huri)
	if err != nil || u.Scheme != string(vfs.FileScheme) {
		return huri
	}
	s := u.Path
	if u.Host != "" {
		s = "//" + u.Host + s
	} else if filepath.Separator == '\\' && len(s) > 2 && s[2] == ':' {
		s = s[1:]
	}
	return filepath.FromSlash(s)
}

// Name returns the last segment of the path.
func (p *Path) Name() string {
	if p.IsArchive() {
		return p.np.MountPoint().Path().EntryName().Base()
	}
	return p.np.EntryName().Base()
}

// InnerArchive returns the innermost archive which p is or is in, or nil.
func (p *Path) InnerArchive() *Path {
	return p.inner
}

// EnclArchive returns the archive which contains p, or nil if p is in the
// native file system.
func (p *Path) EnclArchive() *Path {
	return p.encl
}

// EntryName returns the entry name of p in its enclosing archive, or in
// the native file system if there is none.
func (p *Path) EntryName() vfs.EntryName {
	if p.IsArchive() {
		_, e := p.np.MountPoint().Path().Mount()
		return e
	}
	_, e := p.np.Mount()
	return e
}

// IsArchive reports whether p names a prospective archive file. No I/O is
// done, so the archive file may turn out to be a false positive.
func (p *Path) IsArchive() bool {
	return p.inner == p
}

// IsEntry reports whether p is in an archive.
func (p *Path) IsEntry() bool {
	return p.encl != nil
}

// Equal reports whether p and o name the same node.
func (p *Path) Equal(o *Path) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.np.Equal(o.np)
}
