package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"testing"

	"github.com/crazy-max/nestfs/pkg/detector"
	"github.com/crazy-max/nestfs/pkg/driver"
	"github.com/crazy-max/nestfs/pkg/vfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// readOnly serves archives with a writable format but refuses updates.
type readOnly struct {
	a *driver.Archive
}

func (readOnly) IsArchiveDriver() bool { return true }
func (readOnly) Writable() bool        { return false }

func (r readOnly) Extract(ctx context.Context, rd io.Reader, dst afero.Fs, opts driver.ExtractOpts) error {
	return r.a.Extract(ctx, rd, dst, opts)
}

func (r readOnly) Archive(ctx context.Context, w io.Writer, src afero.Fs, links map[string]string) error {
	return r.a.Archive(ctx, w, src, links)
}

func newTestFs(t *testing.T) (afero.Fs, *detector.ArchiveDetector) {
	t.Helper()
	mfs := afero.NewMemMapFs()
	require.NoError(t, mfs.MkdirAll("/x", 0o755))
	d, err := detector.All(driver.Registry(mfs)).With("ro", readOnly{driver.Tar()})
	require.NoError(t, err)
	return mfs, d
}

func writeArchive(t *testing.T, mfs afero.Fs, d *detector.ArchiveDetector, name string, scheme vfs.Scheme, files map[string]string) {
	t.Helper()
	c, ok := d.Driver(scheme)
	require.True(t, ok)
	a, ok := c.(ArchiveDriver)
	require.True(t, ok)
	staging := afero.NewMemMapFs()
	for n, content := range files {
		require.NoError(t, afero.WriteFile(staging, "/"+n, []byte(content), 0o644))
	}
	var buf bytes.Buffer
	require.NoError(t, a.Archive(context.Background(), &buf, staging, nil))
	require.NoError(t, afero.WriteFile(mfs, name, buf.Bytes(), 0o644))
}

func mustController(t *testing.T, m *Manager, d *detector.ArchiveDetector, uri string) Controller {
	t.Helper()
	c, release, err := m.Controller(d, vfs.MustMountPoint(uri))
	require.NoError(t, err)
	t.Cleanup(release)
	return c
}

func readAll(t *testing.T, c Controller, name string) string {
	t.Helper()
	rc, err := c.Open(context.Background(), vfs.MustEntryName(name))
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func writeAll(t *testing.T, c Controller, name, content string) {
	t.Helper()
	w, err := c.Create(context.Background(), vfs.MustEntryName(name))
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestNativeController(t *testing.T) {
	ctx := context.Background()
	_, d := newTestFs(t)
	c := mustController(t, NewManager(ManagerOpts{}), d, "file:/")

	require.NoError(t, c.Make(ctx, vfs.MustEntryName("x/dir"), Directory))
	writeAll(t, c, "x/dir/a.txt", "hello")
	assert.Equal(t, "hello", readAll(t, c, "x/dir/a.txt"))

	n, err := c.Node(ctx, vfs.MustEntryName("x/dir"))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, Directory, n.Type)
	assert.Equal(t, []string{"a.txt"}, n.Members)

	n, err = c.Node(ctx, vfs.MustEntryName("x/nope"))
	require.NoError(t, err)
	assert.Nil(t, n)

	assert.ErrorIs(t, c.Make(ctx, vfs.MustEntryName("x/dir"), Directory), fs.ErrExist)
	assert.ErrorIs(t, c.Make(ctx, vfs.MustEntryName("y/z"), Directory), fs.ErrNotExist)
	assert.ErrorIs(t, c.Unlink(ctx, vfs.MustEntryName("x/dir")), ErrNotEmpty)
	_, err = c.Open(ctx, vfs.MustEntryName("x/dir"))
	assert.ErrorIs(t, err, ErrIsDir)

	require.NoError(t, c.Rename(ctx, vfs.MustEntryName("x/dir/a.txt"), vfs.MustEntryName("x/b.txt")))
	assert.Equal(t, "hello", readAll(t, c, "x/b.txt"))
	require.NoError(t, c.Unlink(ctx, vfs.MustEntryName("x/dir")))
	assert.ErrorIs(t, c.CheckAccess(ctx, vfs.MustEntryName("x/dir"), Read), fs.ErrNotExist)
}

func TestArchiveControllerMount(t *testing.T) {
	ctx := context.Background()
	mfs, d := newTestFs(t)
	writeArchive(t, mfs, d, "/x/a.zip", "zip", map[string]string{"a.txt": "hello", "dir/b.txt": "world"})

	c := mustController(t, NewManager(ManagerOpts{}), d, "zip:file:/x/a.zip!/")
	n, err := c.Node(ctx, vfs.Root)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, Directory, n.Type)
	assert.Equal(t, []string{"a.txt", "dir"}, n.Members)
	assert.Equal(t, "world", readAll(t, c, "dir/b.txt"))
	assert.NoError(t, c.CheckAccess(ctx, vfs.MustEntryName("a.txt"), Read|Write))
}

func TestArchiveControllerSync(t *testing.T) {
	ctx := context.Background()
	mfs, d := newTestFs(t)
	writeArchive(t, mfs, d, "/x/a.tar.gz", "tar.gz", map[string]string{"a.txt": "hello"})

	m := NewManager(ManagerOpts{})
	c := mustController(t, m, d, "tar.gz:file:/x/a.tar.gz!/")
	writeAll(t, c, "a.txt", "updated")
	require.NoError(t, c.Make(ctx, vfs.MustEntryName("dir"), Directory))
	writeAll(t, c, "dir/b.txt", "new")
	require.NoError(t, m.Sync(ctx))

	c = mustController(t, NewManager(ManagerOpts{}), d, "tar.gz:file:/x/a.tar.gz!/")
	assert.Equal(t, "updated", readAll(t, c, "a.txt"))
	assert.Equal(t, "new", readAll(t, c, "dir/b.txt"))
}

func TestArchiveControllerNested(t *testing.T) {
	ctx := context.Background()
	_, d := newTestFs(t)

	m := NewManager(ManagerOpts{})
	outer := mustController(t, m, d, "zip:file:/x/outer.zip!/")
	require.NoError(t, outer.Make(ctx, vfs.Root, Directory))
	inner := mustController(t, m, d, "tar:zip:file:/x/outer.zip!/inner.tar!/")
	require.NoError(t, inner.Make(ctx, vfs.Root, Directory))
	writeAll(t, inner, "file.txt", "nested")
	require.NoError(t, m.Sync(ctx))

	m = NewManager(ManagerOpts{})
	outer = mustController(t, m, d, "zip:file:/x/outer.zip!/")
	n, err := outer.Node(ctx, vfs.MustEntryName("inner.tar"))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, File, n.Type)
	inner = mustController(t, m, d, "tar:zip:file:/x/outer.zip!/inner.tar!/")
	assert.Equal(t, "nested", readAll(t, inner, "file.txt"))
}

func TestArchiveControllerFalsePositive(t *testing.T) {
	ctx := context.Background()
	mfs, d := newTestFs(t)
	require.NoError(t, afero.WriteFile(mfs, "/x/readme.zip", []byte("just text"), 0o644))
	require.NoError(t, mfs.MkdirAll("/x/dir.zip", 0o755))

	m := NewManager(ManagerOpts{})
	for _, uri := range []string{"zip:file:/x/readme.zip!/", "zip:file:/x/dir.zip!/"} {
		c := mustController(t, m, d, uri)
		_, err := c.Node(ctx, vfs.Root)
		assert.ErrorIs(t, err, ErrFalsePositive, uri)
		var fpe *FalsePositiveError
		require.ErrorAs(t, err, &fpe)
		assert.Equal(t, uri, fpe.MountPoint.URI())
	}

	// a false positive is re-examined once the archive file changes
	require.NoError(t, mfs.Remove("/x/readme.zip"))
	c := mustController(t, m, d, "zip:file:/x/readme.zip!/")
	n, err := c.Node(ctx, vfs.Root)
	require.NoError(t, err)
	assert.Nil(t, n)
	require.NoError(t, c.Make(ctx, vfs.Root, Directory))
}

func TestArchiveControllerUnlink(t *testing.T) {
	ctx := context.Background()
	mfs, d := newTestFs(t)
	writeArchive(t, mfs, d, "/x/a.zip", "zip", map[string]string{"a.txt": "hello"})

	c := mustController(t, NewManager(ManagerOpts{}), d, "zip:file:/x/a.zip!/")
	assert.ErrorIs(t, c.Unlink(ctx, vfs.Root), ErrNotEmpty)
	require.NoError(t, c.Unlink(ctx, vfs.MustEntryName("a.txt")))
	require.NoError(t, c.Unlink(ctx, vfs.Root))

	exists, err := afero.Exists(mfs, "/x/a.zip")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestArchiveControllerReadOnly(t *testing.T) {
	ctx := context.Background()
	mfs, d := newTestFs(t)
	writeArchive(t, mfs, d, "/x/a.ro", "ro", map[string]string{"a.txt": "hello"})

	c := mustController(t, NewManager(ManagerOpts{}), d, "ro:file:/x/a.ro!/")
	assert.Equal(t, "hello", readAll(t, c, "a.txt"))
	assert.ErrorIs(t, c.CheckAccess(ctx, vfs.MustEntryName("a.txt"), Write), fs.ErrPermission)
	_, err := c.Create(ctx, vfs.MustEntryName("b.txt"))
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.ErrorIs(t, c.Make(ctx, vfs.MustEntryName("d"), Directory), fs.ErrPermission)
	assert.ErrorIs(t, c.Unlink(ctx, vfs.MustEntryName("a.txt")), fs.ErrPermission)
	assert.NoError(t, c.Sync(ctx))
	assert.Equal(t, "hello", readAll(t, c, "a.txt"))
}

func TestManagerUnknownScheme(t *testing.T) {
	_, d := newTestFs(t)
	d, err := d.With("zip", nil)
	require.NoError(t, err)

	_, _, err = NewManager(ManagerOpts{}).Controller(d, vfs.MustMountPoint("zip:file:/x/a.zip!/"))
	var use *UnknownSchemeError
	require.ErrorAs(t, err, &use)
	assert.Equal(t, vfs.Scheme("zip"), use.Scheme)

	_, _, err = NewManager(ManagerOpts{}).Controller(detector.Null, vfs.MustMountPoint("file:/"))
	assert.ErrorAs(t, err, &use)
}

func TestManagerUnknownSchemeCached(t *testing.T) {
	mfs, d := newTestFs(t)
	writeArchive(t, mfs, d, "/x/a.zip", "zip", map[string]string{"a.txt": "a"})
	noZip, err := d.With("zip", nil)
	require.NoError(t, err)

	m := NewManager(ManagerOpts{})
	mustController(t, m, d, "tar:zip:file:/x/a.zip!/b.tar!/")

	testCases := []struct {
		desc   string
		uri    string
		scheme vfs.Scheme
	}{
		{desc: "cached archive", uri: "zip:file:/x/a.zip!/", scheme: "zip"},
		{desc: "cached nested archive", uri: "tar:zip:file:/x/a.zip!/b.tar!/", scheme: "zip"},
	}
	for _, tt := range testCases {
		t.Run(tt.desc, func(t *testing.T) {
			_, _, err := m.Controller(noZip, vfs.MustMountPoint(tt.uri))
			var use *UnknownSchemeError
			require.ErrorAs(t, err, &use)
			assert.Equal(t, tt.scheme, use.Scheme)
		})
	}

	c := mustController(t, m, d, "zip:file:/x/a.zip!/")
	assert.Equal(t, "a", readAll(t, c, "a.txt"))
}

func TestManagerEviction(t *testing.T) {
	ctx := context.Background()
	mfs, d := newTestFs(t)
	writeArchive(t, mfs, d, "/x/a.zip", "zip", map[string]string{"a.txt": "a"})
	writeArchive(t, mfs, d, "/x/b.zip", "zip", map[string]string{"b.txt": "b"})

	m := NewManager(ManagerOpts{MaxIdle: 1})
	a, releaseA, err := m.Controller(d, vfs.MustMountPoint("zip:file:/x/a.zip!/"))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	b, releaseB, err := m.Controller(d, vfs.MustMountPoint("zip:file:/x/b.zip!/"))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())

	// a has pending changes and stays pinned
	writeAll(t, a, "new.txt", "new")
	releaseA()
	releaseA()
	assert.Equal(t, "b", readAll(t, b, "b.txt"))
	releaseB()
	assert.Equal(t, 3, m.Len())

	require.NoError(t, m.Sync(ctx))
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Umount(ctx))
	assert.Equal(t, 0, m.Len())

	c := mustController(t, m, d, "zip:file:/x/a.zip!/")
	assert.Equal(t, "new", readAll(t, c, "new.txt"))
}

func TestManagerConcurrent(t *testing.T) {
	ctx := context.Background()
	mfs, d := newTestFs(t)
	archives := []string{"/x/a.zip", "/x/b.zip", "/x/c.zip"}
	for _, name := range archives {
		writeArchive(t, mfs, d, name, "zip", map[string]string{"seed.txt": name})
	}

	const workers = 20
	m := NewManager(ManagerOpts{MaxIdle: 1})
	eg, ectx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			name := archives[i%len(archives)]
			c, release, err := m.Controller(d, vfs.MustMountPoint("zip:file:"+name+"!/"))
			if err != nil {
				return err
			}
			defer release()
			w, err := c.Create(ectx, vfs.MustEntryName(fmt.Sprintf("f%d.txt", i)))
			if err != nil {
				return err
			}
			if _, err = fmt.Fprint(w, i); err != nil {
				return err
			}
			if err = w.Close(); err != nil {
				return err
			}
			if _, err = c.Node(ectx, vfs.MustEntryName("seed.txt")); err != nil {
				return err
			}
			if i%4 == 0 {
				return m.Sync(ectx)
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.NoError(t, m.Umount(ctx))
	assert.Equal(t, 0, m.Len())

	m = NewManager(ManagerOpts{})
	for i := 0; i < workers; i++ {
		c := mustController(t, m, d, "zip:file:"+archives[i%len(archives)]+"!/")
		assert.Equal(t, fmt.Sprint(i), readAll(t, c, fmt.Sprintf("f%d.txt", i)))
	}
}

func TestNodeInfo(t *testing.T) {
	n := &Node{Type: Directory, Mode: fs.ModeDir | 0o755}
	fi := n.Info("dir")
	assert.Equal(t, "dir", fi.Name())
	assert.True(t, fi.IsDir())
	assert.Equal(t, fs.ModeDir|0o755, fi.Mode())
	assert.Equal(t, "special", Special.String())
}
