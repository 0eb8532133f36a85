package httpserver

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// serveTgz streams absDir as a gzip-compressed tar archive. Entries are
// rooted under the directory's base name. Once streaming starts the
// status is committed, so mid-walk errors can only be logged.
func (s *Server) serveTgz(w http.ResponseWriter, r *http.Request, absDir string) {
	base := filepath.Base(absDir)
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".tar.gz"))

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	err := walkTree(r, absDir, func(rel string, info fs.FileInfo, f *os.File) error {
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = path.Join(base, rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if f != nil {
			_, err = io.Copy(tw, f)
		}
		return err
	})
	if err != nil {
		s.logger.Error("tgz export aborted", "dir", absDir, "error", err)
	}
	_ = tw.Close()
	_ = gz.Close()
}

// serveZip streams absDir as a zip archive, deflate-compressed via
// klauspost/compress. Directory entries are implied by member paths.
func (s *Server) serveZip(w http.ResponseWriter, r *http.Request, absDir string) {
	base := filepath.Base(absDir)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".zip"))

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	err := walkTree(r, absDir, func(rel string, info fs.FileInfo, f *os.File) error {
		if f == nil {
			return nil
		}
		hdr := &zip.FileHeader{
			Name:     path.Join(base, rel),
			Method:   zip.Deflate,
			Modified: info.ModTime(),
		}
		wr, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		_, err = io.Copy(wr, f)
		return err
	})
	if err != nil {
		s.logger.Error("zip export aborted", "dir", absDir, "error", err)
	}
	_ = zw.Close()
}

// walkTree visits every entry under absDir in lexical order, handing fn
// regular files with an open handle and directories with nil.
// Unreadable entries are skipped; a cancelled request stops the walk.
func walkTree(r *http.Request, absDir string, fn func(rel string, info fs.FileInfo, f *os.File) error) error {
	ctx := r.Context()
	return filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if p == absDir {
			return nil
		}
		rel, err := filepath.Rel(absDir, p)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fn(filepath.ToSlash(rel), info, nil)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer f.Close()
		return fn(filepath.ToSlash(rel), info, f)
	})
}
