package archfs

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopy(t *testing.T) {
	ctx, mfs := testContext(t)
	require.NoError(t, afero.WriteFile(mfs, "/home/x/src.txt", []byte("src"), 0o644))
	require.NoError(t, mustPath(t, ctx, "a.zip").Mkdir(ctx))

	dst := mustPath(t, ctx, "a.zip/dst.txt")
	require.NoError(t, Copy(ctx, NativePath("/home/x/src.txt"), dst))
	b, err := dst.ReadFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "src", string(b))

	require.NoError(t, Copy(ctx, dst, NativePath("/home/x/back.txt")))
	b, err = afero.ReadFile(mfs, "/home/x/back.txt")
	require.NoError(t, err)
	assert.Equal(t, "src", string(b))
}

func TestCopyNativeArchiveFile(t *testing.T) {
	ctx, mfs := testContext(t)
	require.NoError(t, mustPath(t, ctx, "a.zip").Mkdir(ctx))
	require.NoError(t, mustPath(t, ctx, "a.zip/f.txt").WriteFile(ctx, []byte("f")))
	require.NoError(t, Sync(ctx))

	// a native path copies the archive file as is
	require.NoError(t, Copy(ctx, NativePath("/home/x/a.zip"), NativePath("/home/x/b.zip")))
	want, err := afero.ReadFile(mfs, "/home/x/a.zip")
	require.NoError(t, err)
	got, err := afero.ReadFile(mfs, "/home/x/b.zip")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	b, err := mustPath(t, ctx, "b.zip/f.txt").ReadFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "f", string(b))
}

func TestCopyAllConvertsArchives(t *testing.T) {
	ctx, _ := testContext(t)
	require.NoError(t, mustPath(t, ctx, "a.zip").Mkdir(ctx))
	require.NoError(t, mustPath(t, ctx, "a.zip/d").Mkdir(ctx))
	require.NoError(t, mustPath(t, ctx, "a.zip/d/f.txt").WriteFile(ctx, []byte("f")))
	require.NoError(t, mustPath(t, ctx, "a.zip/g.txt").WriteFile(ctx, []byte("g")))

	require.NoError(t, CopyAll(ctx, mustPath(t, ctx, "a.zip"), mustPath(t, ctx, "b.tar.gz")))
	require.NoError(t, Sync(ctx))

	b, err := mustPath(t, ctx, "b.tar.gz/d/f.txt").ReadFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "f", string(b))
	assert.Equal(t, []string{"d", "g.txt"}, names(t, ctx, mustPath(t, ctx, "b.tar.gz")))
}

func TestMove(t *testing.T) {
	ctx, mfs := testContext(t)
	require.NoError(t, afero.WriteFile(mfs, "/home/x/a.txt", []byte("a"), 0o644))

	// same file system
	require.NoError(t, Move(ctx, NativePath("/home/x/a.txt"), mustPath(t, ctx, "b.txt")))
	exists, err := afero.Exists(mfs, "/home/x/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	// into an archive
	require.NoError(t, mustPath(t, ctx, "c.zip").Mkdir(ctx))
	require.NoError(t, Move(ctx, mustPath(t, ctx, "b.txt"), mustPath(t, ctx, "c.zip/b.txt")))
	exists, err = afero.Exists(mfs, "/home/x/b.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	// within an archive
	require.NoError(t, Move(ctx, mustPath(t, ctx, "c.zip/b.txt"), mustPath(t, ctx, "c.zip/c.txt")))
	require.NoError(t, Sync(ctx))
	assert.Equal(t, []string{"c.txt"}, names(t, ctx, mustPath(t, ctx, "c.zip")))
}
