package archfs

import (
	"context"
	"io"
	"io/fs"

	"github.com/crazy-max/nestfs/pkg/controller"
	"github.com/crazy-max/nestfs/pkg/vfs"
	"github.com/pkg/errors"
)

// pin calls op with the controller and entry name of p. While the
// controller reports a false positive archive file, op is retried one level
// up with the entry name of the archive file joined with the entry name.
// On success the controller stays pinned until release is called.
func (p *Path) pin(ctx context.Context, op func(controller.Controller, vfs.EntryName) error) (func(), error) {
	cfg := ConfigFrom(ctx)
	mp, e := p.np.Mount()
	if mp == nil {
		return nil, errors.Errorf("cannot access relative path %q", p.URI())
	}
	for {
		c, release, err := cfg.Manager.Controller(p.detector, mp)
		if err != nil {
			return nil, err
		}
		err = op(c, e)
		if err == nil {
			return release, nil
		}
		release()
		if !mp.IsOpaque() || !errors.Is(err, controller.ErrFalsePositive) {
			return nil, err
		}
		cfg.Logger.Debug().Str("mount", mp.URI()).Msgf("Falling back to parent file system for %s", p)
		pmp, pe := mp.Path().Mount()
		mp, e = pmp, pe.Join(e)
	}
}

func (p *Path) do(ctx context.Context, op func(controller.Controller, vfs.EntryName) error) error {
	release, err := p.pin(ctx, op)
	if err != nil {
		return err
	}
	release()
	return nil
}

func (p *Path) pathError(op string, err error) error {
	return &fs.PathError{Op: op, Path: p.String(), Err: err}
}

// node returns the node of p or nil if it does not exist.
func (p *Path) node(ctx context.Context) (*controller.Node, error) {
	var n *controller.Node
	err := p.do(ctx, func(c controller.Controller, e vfs.EntryName) (err error) {
		n, err = c.Node(ctx, e)
		return err
	})
	return n, err
}

// Stat returns the node of p.
func (p *Path) Stat(ctx context.Context) (*controller.Node, error) {
	n, err := p.node(ctx)
	if err != nil {
		return nil, err
	} else if n == nil {
		return nil, p.pathError("stat", fs.ErrNotExist)
	}
	return n, nil
}

// Exists reports whether p exists.
func (p *Path) Exists(ctx context.Context) (bool, error) {
	n, err := p.node(ctx)
	return n != nil, err
}

// IsDirectory reports whether p is a directory. A valid archive file is a
// directory, a false positive one is what it really is.
func (p *Path) IsDirectory(ctx context.Context) (bool, error) {
	n, err := p.node(ctx)
	return n != nil && n.Type == controller.Directory, err
}

// IsFile reports whether p is a plain file.
func (p *Path) IsFile(ctx context.Context) (bool, error) {
	n, err := p.node(ctx)
	return n != nil && n.Type == controller.File, err
}

// CheckAccess returns an error unless p exists and allows mode.
func (p *Path) CheckAccess(ctx context.Context, mode controller.AccessMode) error {
	return p.do(ctx, func(c controller.Controller, e vfs.EntryName) error {
		return c.CheckAccess(ctx, e, mode)
	})
}

// List returns the members of directory p.
func (p *Path) List(ctx context.Context) ([]*Path, error) {
	n, err := p.Stat(ctx)
	if err != nil {
		return nil, err
	} else if n.Type != controller.Directory {
		return nil, p.pathError("list", controller.ErrNotDir)
	}
	members := make([]*Path, 0, len(n.Members))
	for _, name := range n.Members {
		m, err := p.Join(name)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// Open opens file p for reading.
func (p *Path) Open(ctx context.Context) (io.ReadCloser, error) {
	var rc io.ReadCloser
	release, err := p.pin(ctx, func(c controller.Controller, e vfs.EntryName) (err error) {
		rc, err = c.Open(ctx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pinnedReader{ReadCloser: rc, release: release}, nil
}

// ReadFile returns the content of file p.
func (p *Path) ReadFile(ctx context.Context) ([]byte, error) {
	rc, err := p.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Create creates or truncates file p for writing. The content is stored
// when the writer is closed.
func (p *Path) Create(ctx context.Context) (io.WriteCloser, error) {
	if err := p.makeParents(ctx); err != nil {
		return nil, err
	}
	var wc io.WriteCloser
	release, err := p.pin(ctx, func(c controller.Controller, e vfs.EntryName) (err error) {
		wc, err = c.Create(ctx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pinnedWriter{WriteCloser: wc, release: release}, nil
}

// WriteFile replaces the content of file p with data.
func (p *Path) WriteFile(ctx context.Context, data []byte) error {
	w, err := p.Create(ctx)
	if err != nil {
		return err
	}
	if _, err = w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Mkdir creates directory p. Creating an archive creates an empty archive
// file.
func (p *Path) Mkdir(ctx context.Context) error {
	if err := p.makeParents(ctx); err != nil {
		return err
	}
	return p.do(ctx, func(c controller.Controller, e vfs.EntryName) error {
		return c.Make(ctx, e, controller.Directory)
	})
}

// MkdirAll creates directory p and all missing parents.
func (p *Path) MkdirAll(ctx context.Context) error {
	n, err := p.node(ctx)
	if err != nil {
		return err
	} else if n != nil {
		if n.Type != controller.Directory {
			return p.pathError("mkdir", controller.ErrNotDir)
		}
		return nil
	}
	if parent := p.Parent(); parent != nil {
		if err = parent.MkdirAll(ctx); err != nil {
			return err
		}
	}
	return p.do(ctx, func(c controller.Controller, e vfs.EntryName) error {
		return c.Make(ctx, e, controller.Directory)
	})
}

func (p *Path) makeParents(ctx context.Context) error {
	if !ConfigFrom(ctx).CreateParents {
		return nil
	}
	if parent := p.Parent(); parent != nil {
		return parent.MkdirAll(ctx)
	}
	return nil
}

// Delete deletes file or empty directory p. An archive file is deleted
// only if the archive is empty.
func (p *Path) Delete(ctx context.Context) error {
	return p.do(ctx, func(c controller.Controller, e vfs.EntryName) error {
		return c.Unlink(ctx, e)
	})
}

// DeleteAll deletes p and, if it is a directory, all its members.
func (p *Path) DeleteAll(ctx context.Context) error {
	n, err := p.Stat(ctx)
	if err != nil {
		return err
	}
	if n.Type == controller.Directory {
		members, err := p.List(ctx)
		if err != nil {
			return err
		}
		for _, m := range members {
			if err = m.DeleteAll(ctx); err != nil {
				return err
			}
		}
	}
	return p.Delete(ctx)
}

// Sync writes all pending changes of the Config's manager.
func Sync(ctx context.Context) error {
	return ConfigFrom(ctx).Manager.Sync(ctx)
}

// Umount writes all pending changes and drops unused controllers.
func Umount(ctx context.Context) error {
	return ConfigFrom(ctx).Manager.Umount(ctx)
}

type pinnedReader struct {
	io.ReadCloser
	release func()
}

func (r *pinnedReader) Close() error {
	defer r.release()
	return r.ReadCloser.Close()
}

type pinnedWriter struct {
	io.WriteCloser
	release func()
}

func (w *pinnedWriter) Close() error {
	defer w.release()
	return w.WriteCloser.Close()
}
