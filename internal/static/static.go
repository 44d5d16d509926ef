// Package static serves the web client and button icons from two allow-listed
// directories.
package static

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IconsPrefix is the URL prefix icons are served under.
const IconsPrefix = "/assets/icons/"

var mimeTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// MimeType maps a file extension to a Content-Type.
func MimeType(name string) string {
	if t, ok := mimeTypes[strings.ToLower(path.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}

// Handler serves GET requests: /assets/icons/* from IconsRoot and everything
// else from WebRoot, with / mapped to index.html.
type Handler struct {
	WebRoot   string
	IconsRoot string
}

func New(webRoot, iconsRoot string) *Handler {
	return &Handler{WebRoot: webRoot, IconsRoot: iconsRoot}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Path
	root, rel := h.WebRoot, strings.TrimPrefix(url, "/")
	if strings.HasPrefix(url, IconsPrefix) {
		root, rel = h.IconsRoot, strings.TrimPrefix(url, IconsPrefix)
	} else if rel == "" {
		rel = "index.html"
	}

	if !safeRelative(rel) {
		log.Printf("[static] invalid path requested: %s", url)
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	full, err := resolve(root, rel)
	if err != nil {
		if errors.Is(err, errOutsideRoot) {
			log.Printf("[static] %s resolves outside %s", url, root)
			http.Error(w, "Invalid path", http.StatusBadRequest)
			return
		}
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", MimeType(full))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// safeRelative rejects traversal, absolute paths and hidden segments.
func safeRelative(rel string) bool {
	if rel == "" || strings.Contains(rel, "..") || strings.Contains(rel, `\`) || strings.HasPrefix(rel, "/") {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}

var errOutsideRoot = errors.New("path outside root")

// resolve joins rel onto root and checks, after following symlinks, that the
// result is still inside root.
func resolve(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if r, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = r
	}
	full, err := filepath.EvalSymlinks(filepath.Join(absRoot, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	inside, err := filepath.Rel(absRoot, full)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return full, nil
}

// WebIconPath maps a configured icon path to the URL the web client loads it
// from. Paths under iconsRoot and bare file names land under IconsPrefix;
// anything else is passed through with a leading slash.
func WebIconPath(iconsRoot, configured string) string {
	if configured == "" {
		return ""
	}
	p := strings.ReplaceAll(configured, `\`, "/")
	prefix := strings.TrimSuffix(strings.ReplaceAll(iconsRoot, `\`, "/"), "/") + "/"

	var out string
	switch {
	case strings.HasPrefix(p, prefix):
		out = IconsPrefix + strings.TrimPrefix(p, prefix)
	case !strings.Contains(p, "/"):
		out = IconsPrefix + p
	default:
		log.Printf("[static] icon path %q is not under %s, icon may not load in the web client", configured, prefix)
		out = "/" + p
	}
	for strings.HasPrefix(out, "//") {
		out = out[1:]
	}
	return out
}
