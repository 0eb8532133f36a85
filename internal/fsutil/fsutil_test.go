package fsutil_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"putbox/internal/fsutil"
)

func TestCleanRelPath(t *testing.T) {
	cases := map[string]string{
		"":            "",
		".":           "",
		"/":           "",
		"/a/b":        "a/b",
		"a//b":        "a/b",
		"a/../b":      "b",
		"../../etc":   "etc",
		"a\\b":        "a/b",
		"  /trimmed ": "trimmed",
	}
	for in, want := range cases {
		assert.Equal(t, want, fsutil.CleanRelPath(in), "input %q", in)
	}
}

func TestJoinWithinRoot(t *testing.T) {
	root := t.TempDir()

	abs, err := fsutil.JoinWithinRoot(root, "a/b/file")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "b", "file"), abs)

	abs, err = fsutil.JoinWithinRoot(root, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), abs)

	// Escapes collapse back into the root instead of leaving it.
	abs, err = fsutil.JoinWithinRoot(root, "../../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "etc", "passwd"), abs)

	_, err = fsutil.JoinWithinRoot(root, "a\x00b")
	assert.ErrorIs(t, err, fsutil.ErrBadPath)
}
