package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntryName(t *testing.T) {
	testCases := []struct {
		desc     string
		path     string
		expected string
		wantErr  bool
	}{
		{desc: "root", path: "", expected: ""},
		{desc: "single", path: "a", expected: "a"},
		{desc: "redundant separators", path: "a//b/./c/", expected: "a/b/c"},
		{desc: "leading separator", path: "/a/b", expected: "a/b"},
		{desc: "dot dot", path: "a/b/../c", expected: "a/c"},
		{desc: "dot dot to root", path: "a/..", expected: ""},
		{desc: "climbs above root", path: "../a", wantErr: true},
		{desc: "climbs above root later", path: "a/../..", wantErr: true},
		{desc: "nul", path: "a\x00b", wantErr: true},
	}
	for _, tt := range testCases {
		t.Run(tt.desc, func(t *testing.T) {
			e, err := NewEntryName(tt.path)
			if tt.wantErr {
				var nse *NameSyntaxError
				assert.ErrorAs(t, err, &nse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, e.Path())
			assert.Equal(t, tt.expected == "", e.IsRoot())
		})
	}
}

func TestParseEntryName(t *testing.T) {
	e, err := ParseEntryName("a/b%20c?x=1")
	require.NoError(t, err)
	assert.Equal(t, "a/b c", e.Path())
	assert.Equal(t, "x=1", e.Query())
	assert.Equal(t, "a/b%20c?x=1", e.String())
	assert.False(t, e.IsRoot())

	for _, s := range []string{"/abs", "file:/a", "//host/a", "a#frag", "a#"} {
		_, err := ParseEntryName(s)
		assert.Error(t, err, s)
	}
}

func TestEntryNameOperations(t *testing.T) {
	e := MustEntryName("a/b/c.txt")
	assert.Equal(t, "c.txt", e.Base())
	assert.Equal(t, "a/b", e.Parent().Path())
	assert.Equal(t, Root, MustEntryName("a").Parent())
	assert.Equal(t, []string{"a", "b", "c.txt"}, e.Segments())
	assert.Nil(t, Root.Segments())

	joined := MustEntryName("a").Join(MustEntryName("b").WithQuery("q"))
	assert.Equal(t, "a/b?q", joined.String())
	assert.Equal(t, MustEntryName("b"), Root.Join(MustEntryName("b")))
	assert.Equal(t, MustEntryName("a"), MustEntryName("a").Join(Root))

	assert.Equal(t, "x%21y", MustEntryName("x!y").String())
	assert.True(t, Root.WithQuery("").IsRoot())
	assert.False(t, Root.WithQuery("q").IsRoot())
}

func TestParseScheme(t *testing.T) {
	for _, s := range []string{"zip", "tar.gz", "x-y+z", "Zip"} {
		got, err := ParseScheme(s)
		require.NoError(t, err, s)
		assert.Equal(t, Scheme(s), got)
	}
	for _, s := range []string{"", "1zip", "gz?x", "a b", ".zip"} {
		_, err := ParseScheme(s)
		assert.Error(t, err, s)
	}
	assert.NotEqual(t, Scheme("zip"), Scheme("ZIP"))
}
