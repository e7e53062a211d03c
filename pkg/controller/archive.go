package controller

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crazy-max/nestfs/pkg/driver"
	"github.com/crazy-max/nestfs/pkg/vfs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

type mountState int

const (
	unmounted mountState = iota
	absent
	mounted
	falsePositive
)

// stamp identifies the state of the archive file in the parent file system
// when it was last looked at.
type stamp struct {
	exists  bool
	typ     Type
	size    int64
	modTime time.Time
}

func stampOf(n *Node) stamp {
	if n == nil {
		return stamp{}
	}
	return stamp{exists: true, typ: n.Type, size: n.Size, modTime: n.ModTime}
}

func (s stamp) equal(o stamp) bool {
	return s.exists == o.exists && s.typ == o.typ && s.size == o.size && s.modTime.Equal(o.modTime)
}

// archiveController stages the entries of an archive file in memory. The
// archive file is read from the parent controller on first use and written
// back by Sync.
type archiveController struct {
	mp     *vfs.MountPoint
	driver ArchiveDriver
	parent Controller
	entry  vfs.EntryName
	logger zerolog.Logger

	mu      sync.Mutex
	state   mountState
	stamp   stamp
	staging afero.Fs
	links   map[string]string
	changed bool
	fpErr   error
}

func newArchiveController(mp *vfs.MountPoint, d ArchiveDriver, parent Controller, entry vfs.EntryName, logger zerolog.Logger) *archiveController {
	return &archiveController{
		mp:     mp,
		driver: d,
		parent: parent,
		entry:  entry,
		logger: logger.With().Str("mount", mp.URI()).Logger(),
	}
}

func (c *archiveController) MountPoint() *vfs.MountPoint {
	return c.mp
}

func (c *archiveController) dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// mount brings the staging area up to date with the archive file. It must
// be called with c.mu held.
func (c *archiveController) mount(ctx context.Context) error {
	if c.changed {
		return nil
	}
	pn, err := c.parent.Node(ctx, c.entry)
	if err != nil {
		return err
	}
	st := stampOf(pn)
	if c.state != unmounted && st.equal(c.stamp) {
		if c.state == falsePositive {
			return c.fpErr
		}
		return nil
	}

	c.stamp, c.staging, c.links, c.fpErr = st, nil, nil, nil
	switch {
	case pn == nil:
		c.state = absent
		return nil
	case pn.Type != File:
		return c.falsePositive(errors.Errorf("archive file is a %s", pn.Type))
	}

	c.logger.Debug().Msg("Mounting archive file")
	rc, err := c.parent.Open(ctx, c.entry)
	if err != nil {
		return err
	}
	defer rc.Close()

	staging := afero.NewMemMapFs()
	links := make(map[string]string)
	err = c.driver.Extract(ctx, rc, staging, driver.ExtractOpts{
		Logger: c.logger,
		Links:  links,
	})
	if ctx.Err() != nil {
		c.state = unmounted
		return ctx.Err()
	} else if err != nil {
		return c.falsePositive(err)
	}
	c.state, c.staging, c.links = mounted, staging, links
	return nil
}

func (c *archiveController) falsePositive(cause error) error {
	c.logger.Debug().Err(cause).Msg("False positive archive file")
	c.state = falsePositive
	c.fpErr = &FalsePositiveError{MountPoint: c.mp, Cause: cause}
	return c.fpErr
}

func stagingPath(e vfs.EntryName) string {
	return "/" + e.Path()
}

// node must be called with c.mu held after a successful mount.
func (c *archiveController) node(e vfs.EntryName) (*Node, error) {
	if c.state != mounted {
		return nil, nil
	}
	if target, ok := c.links[e.Path()]; ok {
		return &Node{Entry: e, Type: Symlink, Size: int64(len(target)), Mode: fs.ModeSymlink | 0o777}, nil
	}
	fi, err := c.staging.Stat(stagingPath(e))
	if os.IsNotExist(err) {
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
	if e.IsRoot() {
		n.ModTime = c.stamp.modTime
	}
	if n.Type == Directory {
		n.Size = 0
		if n.Members, err = members(c.staging, stagingPath(e)); err != nil {
			return nil, err
		}
		n.Members = append(n.Members, c.linkMembers(e)...)
		sort.Strings(n.Members)
	}
	return n, nil
}

func (c *archiveController) linkMembers(dir vfs.EntryName) []string {
	var names []string
	for name := range c.links {
		if path.Dir("/"+name) == stagingPath(dir) {
			names = append(names, path.Base(name))
		}
	}
	return names
}

func (c *archiveController) Node(ctx context.Context, e vfs.EntryName) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mount(ctx); err != nil {
		return nil, err
	}
	return c.node(e)
}

func (c *archiveController) CheckAccess(ctx context.Context, e vfs.EntryName, mode AccessMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mount(ctx); err != nil {
		return err
	}
	n, err := c.node(e)
	if err != nil {
		return err
	} else if n == nil {
		return pathError("access", c.mp, e, fs.ErrNotExist)
	}
	if mode&Write != 0 && !c.driver.Writable() {
		return pathError("access", c.mp, e, fs.ErrPermission)
	}
	return nil
}

// checkWrite must be called with c.mu held. It returns an error unless e
// can be created or replaced.
func (c *archiveController) checkWrite(op string, e vfs.EntryName) error {
	if !c.driver.Writable() {
		return pathError(op, c.mp, e, fs.ErrPermission)
	}
	pn, err := c.node(e.Parent())
	switch {
	case err != nil:
		return err
	case pn == nil:
		return pathError(op, c.mp, e, fs.ErrNotExist)
	case pn.Type != Directory:
		return pathError(op, c.mp, e, ErrNotDir)
	}
	return nil
}

func (c *archiveController) Make(ctx context.Context, e vfs.EntryName, t Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mount(ctx); err != nil {
		return err
	}
	n, err := c.node(e)
	if err != nil {
		return err
	} else if n != nil {
		return pathError("mkdir", c.mp, e, fs.ErrExist)
	}

	if e.IsRoot() {
		return c.makeArchive(ctx, t)
	}
	if err = c.checkWrite("mkdir", e); err != nil {
		return err
	}
	if t == Directory {
		err = c.staging.Mkdir(stagingPath(e), 0o755)
	} else {
		err = afero.WriteFile(c.staging, stagingPath(e), nil, 0o644)
	}
	if err != nil {
		return err
	}
	c.changed = true
	return nil
}

// makeArchive creates a new empty archive. It is written to the parent file
// system by the next Sync.
func (c *archiveController) makeArchive(ctx context.Context, t Type) error {
	if t != Directory {
		return pathError("mkdir", c.mp, vfs.Root, ErrIsDir)
	}
	if !c.driver.Writable() {
		return pathError("mkdir", c.mp, vfs.Root, fs.ErrPermission)
	}
	pn, err := c.parent.Node(ctx, c.entry.Parent())
	switch {
	case err != nil:
		return err
	case pn == nil:
		return pathError("mkdir", c.mp, vfs.Root, fs.ErrNotExist)
	case pn.Type != Directory:
		return pathError("mkdir", c.mp, vfs.Root, ErrNotDir)
	}
	c.logger.Debug().Msg("Creating archive file")
	c.state, c.staging, c.links = mounted, afero.NewMemMapFs(), make(map[string]string)
	c.changed = true
	return nil
}

func (c *archiveController) Unlink(ctx context.Context, e vfs.EntryName) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mount(ctx); err != nil {
		return err
	}
	n, err := c.node(e)
	switch {
	case err != nil:
		return err
	case n == nil:
		return pathError("remove", c.mp, e, fs.ErrNotExist)
	case n.Type == Directory && len(n.Members) > 0:
		return pathError("remove", c.mp, e, ErrNotEmpty)
	case !c.driver.Writable():
		return pathError("remove", c.mp, e, fs.ErrPermission)
	}

	if e.IsRoot() {
		if c.stamp.exists {
			if err = c.parent.Unlink(ctx, c.entry); err != nil {
				return err
			}
		}
		c.logger.Debug().Msg("Archive file removed")
		c.state, c.stamp, c.staging, c.links, c.changed = absent, stamp{}, nil, nil, false
		return nil
	}
	if n.Type == Symlink {
		delete(c.links, e.Path())
	} else if err = c.staging.Remove(stagingPath(e)); err != nil {
		return err
	}
	c.changed = true
	return nil
}

func (c *archiveController) Rename(ctx context.Context, from, to vfs.EntryName) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mount(ctx); err != nil {
		return err
	}
	if from.IsRoot() || to.IsRoot() || strings.HasPrefix(to.Path()+"/", from.Path()+"/") {
		return pathError("rename", c.mp, to, fs.ErrInvalid)
	}
	n, err := c.node(from)
	if err != nil {
		return err
	} else if n == nil {
		return pathError("rename", c.mp, from, fs.ErrNotExist)
	}
	if tn, err := c.node(to); err != nil {
		return err
	} else if tn != nil {
		return pathError("rename", c.mp, to, fs.ErrExist)
	}
	if err = c.checkWrite("rename", to); err != nil {
		return err
	}
	if n.Type == Symlink {
		c.links[to.Path()] = c.links[from.Path()]
		delete(c.links, from.Path())
	} else {
		if n.Type == Directory && len(c.links) > 0 {
			c.moveLinks(from, to)
		}
		if err = c.staging.Rename(stagingPath(from), stagingPath(to)); err != nil {
			return err
		}
	}
	c.changed = true
	return nil
}

func (c *archiveController) moveLinks(from, to vfs.EntryName) {
	prefix := from.Path() + "/"
	for name, target := range c.links {
		if strings.HasPrefix(name, prefix) {
			delete(c.links, name)
			c.links[to.Path()+"/"+strings.TrimPrefix(name, prefix)] = target
		}
	}
}

func (c *archiveController) Open(ctx context.Context, e vfs.EntryName) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mount(ctx); err != nil {
		return nil, err
	}
	n, err := c.node(e)
	switch {
	case err != nil:
		return nil, err
	case n == nil:
		return nil, pathError("open", c.mp, e, fs.ErrNotExist)
	case n.Type == Directory:
		return nil, pathError("open", c.mp, e, ErrIsDir)
	case n.Type != File:
		return nil, pathError("open", c.mp, e, fs.ErrInvalid)
	}
	b, err := afero.ReadFile(c.staging, stagingPath(e))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (c *archiveController) Create(ctx context.Context, e vfs.EntryName) (io.WriteCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mount(ctx); err != nil {
		return nil, err
	}
	if e.IsRoot() {
		return nil, pathError("create", c.mp, e, ErrIsDir)
	}
	n, err := c.node(e)
	if err != nil {
		return nil, err
	} else if n != nil && n.Type == Directory {
		return nil, pathError("create", c.mp, e, ErrIsDir)
	}
	if err = c.checkWrite("create", e); err != nil {
		return nil, err
	}
	c.changed = true
	return &entryWriter{c: c, e: e}, nil
}

// entryWriter buffers the content of an entry and stores it on Close.
type entryWriter struct {
	bytes.Buffer
	c      *archiveController
	e      vfs.EntryName
	closed bool
}

func (w *entryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	if w.c.state != mounted {
		return pathError("close", w.c.mp, w.e, fs.ErrNotExist)
	}
	delete(w.c.links, w.e.Path())
	w.c.changed = true
	return afero.WriteFile(w.c.staging, stagingPath(w.e), w.Bytes(), 0o644)
}

func (c *archiveController) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.changed {
		return nil
	}
	if c.state != mounted {
		c.changed = false
		return nil
	}

	c.logger.Debug().Msg("Syncing archive file")
	var buf bytes.Buffer
	if err := c.driver.Archive(ctx, &buf, c.staging, c.links); err != nil {
		return errors.Wrapf(err, "cannot write archive %s", c.mp)
	}
	w, err := c.parent.Create(ctx, c.entry)
	if err != nil {
		return errors.Wrapf(err, "cannot sync archive %s", c.mp)
	}
	if _, err = io.Copy(w, driver.ReaderContext(ctx, &buf)); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "cannot sync archive %s", c.mp)
	}
	if err = w.Close(); err != nil {
		return errors.Wrapf(err, "cannot sync archive %s", c.mp)
	}
	c.changed = false

	pn, err := c.parent.Node(ctx, c.entry)
	if err != nil {
		return err
	}
	c.stamp = stampOf(pn)
	return nil
}
