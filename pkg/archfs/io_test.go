package archfs

import (
	"context"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/crazy-max/nestfs/pkg/controller"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func names(t *testing.T, ctx context.Context, p *Path) []string {
	t.Helper()
	members, err := p.List(ctx)
	require.NoError(t, err)
	var s []string
	for _, m := range members {
		s = append(s, m.Name())
	}
	return s
}

func TestWriteReadNested(t *testing.T) {
	cfg, mfs := testConfig(t)
	cfg.CreateParents = true
	ctx := WithConfig(context.Background(), cfg)

	p := mustPath(t, ctx, "outer.zip/dir/inner.tar.gz/file.txt")
	require.NoError(t, p.WriteFile(ctx, []byte("nested")))
	b, err := p.ReadFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "nested", string(b))

	// nothing reaches the native file system before sync
	exists, err := afero.Exists(mfs, "/home/x/outer.zip")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, Sync(ctx))
	exists, err = afero.Exists(mfs, "/home/x/outer.zip")
	require.NoError(t, err)
	assert.True(t, exists)

	cfg.Manager = controller.NewManager(controller.ManagerOpts{})
	ctx = WithConfig(context.Background(), cfg)
	b, err = mustPath(t, ctx, "outer.zip/dir/inner.tar.gz/file.txt").ReadFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "nested", string(b))

	inner := mustPath(t, ctx, "outer.zip/dir/inner.tar.gz")
	isDir, err := inner.IsDirectory(ctx)
	require.NoError(t, err)
	assert.True(t, isDir)
	assert.Equal(t, []string{"file.txt"}, names(t, ctx, inner))
	assert.Equal(t, []string{"inner.tar.gz"}, names(t, ctx, mustPath(t, ctx, "outer.zip/dir")))
}

func TestWithoutCreateParents(t *testing.T) {
	ctx, _ := testContext(t)
	err := mustPath(t, ctx, "outer.zip/a.txt").WriteFile(ctx, []byte("a"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, mustPath(t, ctx, "outer.zip").Mkdir(ctx))
	require.NoError(t, mustPath(t, ctx, "outer.zip/a.txt").WriteFile(ctx, []byte("a")))
}

func TestFalsePositiveFile(t *testing.T) {
	ctx, mfs := testContext(t)
	require.NoError(t, afero.WriteFile(mfs, "/home/x/readme.zip", []byte("just text"), 0o644))

	p := mustPath(t, ctx, "readme.zip")
	assert.True(t, p.IsArchive())

	isFile, err := p.IsFile(ctx)
	require.NoError(t, err)
	assert.True(t, isFile)
	isDir, err := p.IsDirectory(ctx)
	require.NoError(t, err)
	assert.False(t, isDir)

	b, err := p.ReadFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "just text", string(b))

	_, err = p.List(ctx)
	assert.ErrorIs(t, err, controller.ErrNotDir)

	exists, err := mustPath(t, ctx, "readme.zip/entry").Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	// once the plain file is gone, the name is an archive again
	require.NoError(t, p.Delete(ctx))
	require.NoError(t, p.Mkdir(ctx))
	require.NoError(t, mustPath(t, ctx, "readme.zip/entry").WriteFile(ctx, []byte("e")))
	require.NoError(t, Sync(ctx))
	isFile, err = p.IsFile(ctx)
	require.NoError(t, err)
	assert.False(t, isFile)
}

func TestFalsePositiveDirectory(t *testing.T) {
	ctx, mfs := testContext(t)
	require.NoError(t, afero.WriteFile(mfs, "/home/x/x.zip/a.txt", []byte("a"), 0o644))

	p := mustPath(t, ctx, "x.zip")
	isDir, err := p.IsDirectory(ctx)
	require.NoError(t, err)
	assert.True(t, isDir)
	assert.Equal(t, []string{"a.txt"}, names(t, ctx, p))

	b, err := mustPath(t, ctx, "x.zip/a.txt").ReadFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", string(b))

	require.NoError(t, mustPath(t, ctx, "x.zip/b.txt").WriteFile(ctx, []byte("b")))
	b, err = afero.ReadFile(mfs, "/home/x/x.zip/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b", string(b))
}

func TestMkdirDelete(t *testing.T) {
	ctx, mfs := testContext(t)

	a := mustPath(t, ctx, "a.tar")
	require.NoError(t, a.Mkdir(ctx))
	assert.ErrorIs(t, a.Mkdir(ctx), fs.ErrExist)
	d := mustPath(t, ctx, "a.tar/d/e")
	require.NoError(t, d.MkdirAll(ctx))
	require.NoError(t, mustPath(t, ctx, "a.tar/d/f.txt").WriteFile(ctx, []byte("f")))
	require.NoError(t, Sync(ctx))

	assert.ErrorIs(t, a.Delete(ctx), controller.ErrNotEmpty)
	require.NoError(t, a.DeleteAll(ctx))
	exists, err := a.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, Umount(ctx))
	exists, err = afero.Exists(mfs, "/home/x/a.tar")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMkdirAllOverFile(t *testing.T) {
	ctx, mfs := testContext(t)
	require.NoError(t, afero.WriteFile(mfs, "/home/x/f", []byte("f"), 0o644))
	assert.ErrorIs(t, mustPath(t, ctx, "f/g").MkdirAll(ctx), controller.ErrNotDir)
}

func TestStatNotExist(t *testing.T) {
	ctx, _ := testContext(t)
	_, err := mustPath(t, ctx, "nope.zip/a").Stat(ctx)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = mustPath(t, ctx, "nope.txt").Open(ctx)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpenPinsController(t *testing.T) {
	ctx, mfs := testContext(t)
	require.NoError(t, afero.WriteFile(mfs, "/home/x/a.txt", []byte("a"), 0o644))
	cfg := ConfigFrom(ctx)

	rc, err := mustPath(t, ctx, "a.txt").Open(ctx)
	require.NoError(t, err)
	require.NoError(t, Umount(ctx))
	assert.Equal(t, 1, cfg.Manager.Len())
	require.NoError(t, rc.Close())
	require.NoError(t, Umount(ctx))
	assert.Equal(t, 0, cfg.Manager.Len())
}

func TestCheckAccess(t *testing.T) {
	ctx, mfs := testContext(t)
	require.NoError(t, afero.WriteFile(mfs, "/home/x/a.txt", []byte("a"), 0o644))

	assert.NoError(t, mustPath(t, ctx, "a.txt").CheckAccess(ctx, controller.Read|controller.Write))
	assert.ErrorIs(t, mustPath(t, ctx, "b.txt").CheckAccess(ctx, controller.Read), fs.ErrNotExist)

	require.NoError(t, mustPath(t, ctx, "a.zip").Mkdir(ctx))
	require.NoError(t, mustPath(t, ctx, "a.zip/f").WriteFile(ctx, []byte("f")))
	assert.NoError(t, mustPath(t, ctx, "a.zip/f").CheckAccess(ctx, controller.Write))
	assert.ErrorIs(t, mustPath(t, ctx, "a.zip/g").CheckAccess(ctx, controller.Read), fs.ErrNotExist)
}

func TestConcurrentAccess(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.CreateParents = true
	ctx := WithConfig(context.Background(), cfg)
	require.NoError(t, mustPath(t, ctx, "shared.zip/data/inner.tar/seed.txt").WriteFile(ctx, []byte("seed")))
	require.NoError(t, Sync(ctx))

	const workers = 20
	eg, ectx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			own, err := New(ectx, fmt.Sprintf("own%d.zip/inner.tar.gz/f.txt", i))
			if err != nil {
				return err
			}
			if err = own.WriteFile(ectx, []byte(strconv.Itoa(i))); err != nil {
				return err
			}
			shared, err := New(ectx, fmt.Sprintf("shared.zip/data/inner.tar/f%d.txt", i))
			if err != nil {
				return err
			}
			if err = shared.WriteFile(ectx, []byte(strconv.Itoa(i))); err != nil {
				return err
			}
			seed, err := New(ectx, "shared.zip/data/inner.tar/seed.txt")
			if err != nil {
				return err
			}
			if b, err := seed.ReadFile(ectx); err != nil {
				return err
			} else if string(b) != "seed" {
				return errors.Errorf("unexpected seed content %q", b)
			}
			if b, err := own.ReadFile(ectx); err != nil {
				return err
			} else if string(b) != strconv.Itoa(i) {
				return errors.Errorf("unexpected content %q in %s", b, own)
			}
			if i%5 == 0 {
				return Sync(ectx)
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.NoError(t, Sync(ctx))

	cfg.Manager = controller.NewManager(controller.ManagerOpts{})
	ctx = WithConfig(context.Background(), cfg)
	assert.Len(t, names(t, ctx, mustPath(t, ctx, "shared.zip/data/inner.tar")), workers+1)
	for i := 0; i < workers; i++ {
		b, err := mustPath(t, ctx, fmt.Sprintf("shared.zip/data/inner.tar/f%d.txt", i)).ReadFile(ctx)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), string(b))
		b, err = mustPath(t, ctx, fmt.Sprintf("own%d.zip/inner.tar.gz/f.txt", i)).ReadFile(ctx)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), string(b))
	}
}
