// Package fsutil confines client-supplied URL paths to the served root.
package fsutil

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

var ErrBadPath = errors.New("invalid path")

// CleanRelPath normalizes a user path ("", ".", "/a/b", "a//../b") into
// a slash-separated relative path with no leading slash; "" means the
// root itself. ".." segments are collapsed away, never preserved.
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	// Force-absolute before cleaning so ".." can only collapse, not
	// escape.
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "." {
		return ""
	}
	return p
}

// JoinWithinRoot resolves rel against rootAbs and guarantees the result
// stays inside the root. NUL bytes and escapes yield ErrBadPath.
func JoinWithinRoot(rootAbs, rel string) (string, error) {
	rel = CleanRelPath(rel)
	if strings.Contains(rel, "\x00") {
		return "", ErrBadPath
	}
	root := filepath.Clean(rootAbs)
	if rel == "" {
		return root, nil
	}
	abs := filepath.Clean(filepath.Join(root, filepath.FromSlash(rel)))
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", ErrBadPath
	}
	return abs, nil
}
