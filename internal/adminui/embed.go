// Package adminui embeds and serves the broker's admin console frontend.
// The console is a single-page app built separately; when its dist output
// is present at compile time the binary serves it from the HTTP root.
package adminui

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// Available reports whether the embedded dist directory holds built console
// assets. A dist directory with only the .gitkeep placeholder means the
// frontend was not built before compilation.
func Available() bool {
	entries, err := fs.ReadDir(distFS, "dist")
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Name() != ".gitkeep" {
			return true
		}
	}
	return false
}

// Handler serves the embedded console. Real files are served as-is; any
// other path falls back to index.html so client-side routes deep-link.
func Handler() http.Handler {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		return http.NotFoundHandler()
	}
	return &spaHandler{
		root:  sub,
		files: http.FileServer(http.FS(sub)),
	}
}

// spaHandler serves static assets with an index.html fallback. Tests build
// one directly over a synthetic filesystem.
type spaHandler struct {
	root  fs.FS
	files http.Handler
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	// index.html must not go through http.FileServer: it treats the file
	// as a directory index and 301s to "./", which loops under a prefix.
	if path != "" && path != "index.html" {
		if f, err := h.root.Open(path); err == nil {
			_ = f.Close()
			h.files.ServeHTTP(w, r)
			return
		}
	}

	index, err := fs.ReadFile(h.root, "index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(index)
}
