package gatewayproxy

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// minimalMimeTypes covers the extensions static sites most commonly serve,
// avoiding a dependency on the full net/http/mime OS database lookup.
var minimalMimeTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".mjs":  "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".webp": "image/webp",
	".woff": "font/woff",
	".woff2": "font/woff2",
	".txt":  "text/plain; charset=utf-8",
	".xml":  "application/xml; charset=utf-8",
	".wasm": "application/wasm",
}

func mimeFor(name string) string {
	if ct, ok := minimalMimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// serveStatic decodes and normalizes the URL path, defends against
// traversal, and resolves against staticDir with an index.html fallback
// for directories and missing files.
func serveStatic(w http.ResponseWriter, r *http.Request, staticDir string) {
	w.Header().Set("Cache-Control", "no-cache")

	clean := cleanRequestPath(r.URL.Path)
	full := filepath.Join(staticDir, clean)

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil {
		full = filepath.Join(staticDir, "index.html")
		info, err = os.Stat(full)
		if err != nil {
			http.NotFound(w, r)
			return
		}
	}
	_ = info

	data, err := os.ReadFile(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mimeFor(full))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// cleanRequestPath returns p rooted at "/" with any ".." segments resolved.
// path.Clean on a rooted path can never escape above "/", which is the
// traversal defense this relies on.
func cleanRequestPath(p string) string {
	return path.Clean("/" + p)
}
