package controller

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/crazy-max/nestfs/pkg/vfs"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type nativeController struct {
	mp *vfs.MountPoint
	fs afero.Fs
}

func newNativeController(mp *vfs.MountPoint, fs afero.Fs) *nativeController {
	return &nativeController{mp: mp, fs: fs}
}

func (c *nativeController) MountPoint() *vfs.MountPoint {
	return c.mp
}

func (c *nativeController) dirty() bool {
	return false
}

// path maps an entry name to a path of the native file system.
func (c *nativeController) path(e vfs.EntryName) string {
	p := "/" + e.Path()
	if a := c.mp.Authority(); a != "" {
		p = "//" + a + p
	}
	if filepath.Separator == '\\' && len(p) > 2 && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}

func (c *nativeController) Node(_ context.Context, e vfs.EntryName) (*Node, error) {
	fi, err := c.fs.Stat(c.path(e))
	if os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	n := &Node{
		Entry:   e,
		Type:    typeOf(fi.Mode()),
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
	}
	if n.Type == Directory {
		n.Size = 0
		if n.Members, err = members(c.fs, c.path(e)); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func members(afs afero.Fs, name string) ([]string, error) {
	fis, err := afero.ReadDir(afs, name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(fis))
	for _, fi := range fis {
		names = append(names, fi.Name())
	}
	return names, nil
}

func (c *nativeController) CheckAccess(ctx context.Context, e vfs.EntryName, _ AccessMode) error {
	n, err := c.Node(ctx, e)
	if err != nil {
		return err
	} else if n == nil {
		return pathError("access", c.mp, e, fs.ErrNotExist)
	}
	return nil
}

// checkParent returns an error unless the parent directory of e exists.
func (c *nativeController) checkParent(ctx context.Context, op string, e vfs.EntryName) error {
	n, err := c.Node(ctx, e.Parent())
	switch {
	case err != nil:
		return err
	case n == nil:
		return pathError(op, c.mp, e, fs.ErrNotExist)
	case n.Type != Directory:
		return pathError(op, c.mp, e, ErrNotDir)
	}
	return nil
}

func (c *nativeController) Make(ctx context.Context, e vfs.EntryName, t Type) error {
	n, err := c.Node(ctx, e)
	if err != nil {
		return err
	} else if n != nil {
		return pathError("mkdir", c.mp, e, fs.ErrExist)
	}
	if err = c.checkParent(ctx, "mkdir", e); err != nil {
		return err
	}
	if t == Directory {
		return c.fs.Mkdir(c.path(e), 0o755)
	}
	f, err := c.fs.OpenFile(c.path(e), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (c *nativeController) Unlink(ctx context.Context, e vfs.EntryName) error {
	n, err := c.Node(ctx, e)
	switch {
	case err != nil:
		return err
	case n == nil:
		return pathError("remove", c.mp, e, fs.ErrNotExist)
	case e.IsRoot():
		return pathError("remove", c.mp, e, fs.ErrPermission)
	case n.Type == Directory && len(n.Members) > 0:
		return pathError("remove", c.mp, e, ErrNotEmpty)
	}
	return c.fs.Remove(c.path(e))
}

func (c *nativeController) Rename(ctx context.Context, from, to vfs.EntryName) error {
	n, err := c.Node(ctx, from)
	if err != nil {
		return err
	} else if n == nil {
		return pathError("rename", c.mp, from, fs.ErrNotExist)
	}
	if strings.HasPrefix(to.Path()+"/", from.Path()+"/") {
		return pathError("rename", c.mp, to, fs.ErrInvalid)
	}
	if n, err = c.Node(ctx, to); err != nil {
		return err
	} else if n != nil {
		return pathError("rename", c.mp, to, fs.ErrExist)
	}
	if err = c.checkParent(ctx, "rename", to); err != nil {
		return err
	}
	return c.fs.Rename(c.path(from), c.path(to))
}

func (c *nativeController) Open(ctx context.Context, e vfs.EntryName) (io.ReadCloser, error) {
	n, err := c.Node(ctx, e)
	switch {
	case err != nil:
		return nil, err
	case n == nil:
		return nil, pathError("open", c.mp, e, fs.ErrNotExist)
	case n.Type == Directory:
		return nil, pathError("open", c.mp, e, ErrIsDir)
	}
	return c.fs.Open(c.path(e))
}

func (c *nativeController) Create(ctx context.Context, e vfs.EntryName) (io.WriteCloser, error) {
	n, err := c.Node(ctx, e)
	if err != nil {
		return nil, err
	} else if n != nil && n.Type == Directory {
		return nil, pathError("create", c.mp, e, ErrIsDir)
	}
	if err = c.checkParent(ctx, "create", e); err != nil {
		return nil, err
	}
	return c.fs.OpenFile(c.path(e), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (c *nativeController) Sync(context.Context) error {
	return nil
}
