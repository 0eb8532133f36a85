// Package httpserver exposes the upload/export surface: PUT streams a
// request body into the served tree under per-path locking, GET serves
// files statically or exports a directory as an archive or listing.
package httpserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/webdav"

	"putbox/internal/config"
	"putbox/internal/framing"
	"putbox/internal/fsutil"
	"putbox/internal/locktab"
	"putbox/internal/upload"
)

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	locks   *locktab.Table
	uploads *upload.Executor
	static  http.Handler
}

func New(cfg config.Config, logger *slog.Logger) *Server {
	locks := locktab.New()
	return &Server{
		cfg:     cfg,
		logger:  logger,
		locks:   locks,
		uploads: upload.NewExecutor(locks),
		static:  http.FileServer(http.Dir(cfg.Root)),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok\n")
	})

	// WebDAV clients get the same tree. x/net/webdav brings its own
	// lock system; DAV writes are outside the path-lock table's
	// guarantees.
	mux.Handle("/dav/", &webdav.Handler{
		Prefix:     "/dav",
		FileSystem: webdav.Dir(s.cfg.Root),
		LockSystem: webdav.NewMemLS(),
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			s.handlePut(w, r)
		case http.MethodGet, http.MethodHead:
			s.handleGet(w, r)
		default:
			writeText(w, http.StatusMethodNotAllowed, "method not allowed\n")
		}
	})

	return requestLog(s.logger, mux)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	abs, err := fsutil.JoinWithinRoot(s.cfg.Root, r.URL.Path)
	if err != nil {
		writeText(w, http.StatusBadRequest, "invalid path\n")
		return
	}

	fr, err := framing.FromRequest(r, s.cfg.ChunkSize)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid combination of \"Content-Length\" and chunked encoding.\n")
		return
	}

	mods := upload.ParseModifiers(r.URL.Query())
	action, err := s.uploads.Do(r.Context(), abs, mods, fr)
	switch {
	case errors.Is(err, upload.ErrConflict):
		writeText(w, http.StatusConflict,
			fmt.Sprintf("File %q exists; use ?overwrite to replace it or ?append to extend it.\n", r.URL.Path))
	case err != nil:
		reqLine := fmt.Sprintf("%s %s %s", r.Method, r.URL.RequestURI(), r.Proto)
		s.logger.Error("upload failed", "request", reqLine, "target", abs, "error", err)
		writeText(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed for %q\n%v\n", reqLine, err))
	default:
		s.logger.Debug("upload done", "path", r.URL.Path, "action", action)
		writeText(w, http.StatusOK, fmt.Sprintf("File %q %s.\n", r.URL.Path, action))
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	abs, err := fsutil.JoinWithinRoot(s.cfg.Root, r.URL.Path)
	if err != nil {
		writeText(w, http.StatusBadRequest, "invalid path\n")
		return
	}

	st, err := os.Stat(abs)
	if err != nil || !st.IsDir() {
		// Files, missing paths and range requests all belong to the
		// static responder. Export modifiers only apply to dirs.
		s.static.ServeHTTP(w, r)
		return
	}

	mode, n := exportMode(r.URL.Query())
	if n > 1 {
		writeText(w, http.StatusBadRequest, "modifiers plain, tgz and zip are mutually exclusive\n")
		return
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	switch {
	case mode == "tgz":
		s.serveTgz(w, r, abs)
	case mode == "zip":
		s.serveZip(w, r, abs)
	case mode == "plain",
		strings.HasPrefix(ua, "curl"),
		strings.HasPrefix(ua, "wget"):
		s.servePlainListing(w, abs)
	default:
		s.static.ServeHTTP(w, r)
	}
}

// exportMode extracts the directory-export modifier from the query
// string, using the same tokenization as upload modifiers. n counts the
// distinct export modes requested so callers can reject combinations.
func exportMode(q url.Values) (mode string, n int) {
	seen := map[string]bool{}
	for key := range q {
		for _, tok := range strings.Split(key, ",") {
			switch t := strings.ToLower(strings.TrimSpace(tok)); t {
			case "plain", "tgz", "zip":
				if !seen[t] {
					seen[t] = true
					mode = t
					n++
				}
			}
		}
	}
	return mode, n
}

// servePlainListing writes one entry per line, directories suffixed
// with a slash.
func (s *Server) servePlainListing(w http.ResponseWriter, absDir string) {
	ents, err := os.ReadDir(absDir)
	if err != nil {
		writeText(w, http.StatusInternalServerError, "cannot read directory\n")
		return
	}
	lines := make([]string, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}
	writeText(w, http.StatusOK, strings.Join(lines, "\n")+"\n")
}

// writeText sends a fully-buffered plain-text response with explicit
// Content-Type and Content-Length.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
