// Package static serves built single-page applications and themes from disk.
package static

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Injection is extra markup added to HTML pages
type Injection struct {
	// Head is inserted before </head>
	Head string
	// Body is inserted right after the opening <body> tag
	Body string
}

// SPA serves a directory with history-API fallback to an index page
type SPA struct {
	// Root is the directory served
	Root string
	// Index is the fallback page, "index.html" when empty
	Index string
	// Rewrites map exact request paths to files under Root
	Rewrites map[string]string
	// MaxAge is the Cache-Control lifetime for non-HTML assets in seconds
	MaxAge int
	// Inject, when set, may return markup to add to HTML pages
	Inject func(*http.Request) (Injection, bool)
}

var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".json":  "application/json",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".woff2": "font/woff2",
	".ico":   "image/x-icon",
}

func contentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *SPA) index() string {
	if s.Index == "" {
		return "index.html"
	}
	return s.Index
}

// Exists reports whether Root holds the index page
func (s *SPA) Exists() bool {
	info, err := os.Stat(filepath.Join(s.Root, s.index()))
	return err == nil && !info.IsDir()
}

func (s *SPA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// a leading slash keeps Clean from climbing above Root
	clean := path.Clean("/" + r.URL.Path)

	name := strings.TrimPrefix(clean, "/")
	if target, ok := s.Rewrites[clean]; ok {
		name = target
	}
	if name == "" {
		name = s.index()
	}

	info, err := s.stat(name)
	if err == nil && info.IsDir() {
		name = path.Join(name, "index.html")
		info, err = s.stat(name)
	}
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		// paths that look like files are real misses; anything else is a client route
		if path.Ext(clean) != "" {
			http.NotFound(w, r)
			return
		}
		name = s.index()
		if info, err = s.stat(name); err != nil {
			http.NotFound(w, r)
			return
		}
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	s.serveFile(w, r, name, info)
}

func (s *SPA) stat(name string) (os.FileInfo, error) {
	return os.Stat(filepath.Join(s.Root, filepath.FromSlash(name)))
}

func (s *SPA) serveFile(w http.ResponseWriter, r *http.Request, name string, info os.FileInfo) {
	full := filepath.Join(s.Root, filepath.FromSlash(name))
	ct := contentType(name)
	h := w.Header()
	h.Set("Content-Type", ct)

	if strings.HasPrefix(ct, "text/html") {
		h.Set("Cache-Control", "no-cache")
		// injected pages differ per user, so they carry no validators
		if s.Inject != nil {
			doc, err := os.ReadFile(full)
			if err != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if inj, ok := s.Inject(r); ok {
				doc = InjectHTML(doc, inj)
			}
			http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(doc))
			return
		}
	} else if s.MaxAge > 0 {
		h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.MaxAge))
	}

	f, err := os.Open(full)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	h.Set("ETag", fmt.Sprintf(`W/"%x-%x"`, info.Size(), info.ModTime().UnixNano()))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// InjectHTML inserts inj.Head before </head> and inj.Body after the opening
// body tag. Missing tags fall back to the start of the document.
func InjectHTML(doc []byte, inj Injection) []byte {
	out := doc
	if inj.Head != "" {
		if i := indexFold(out, []byte("</head")); i >= 0 {
			out = splice(out, i, inj.Head)
		} else {
			out = splice(out, 0, inj.Head)
		}
	}
	if inj.Body != "" {
		pos := 0
		if i := indexFold(out, []byte("<body")); i >= 0 {
			if end := bytes.IndexByte(out[i:], '>'); end >= 0 {
				pos = i + end + 1
			}
		}
		out = splice(out, pos, inj.Body)
	}
	return out
}

func splice(doc []byte, at int, s string) []byte {
	out := make([]byte, 0, len(doc)+len(s))
	out = append(out, doc[:at]...)
	out = append(out, s...)
	return append(out, doc[at:]...)
}

func indexFold(doc, needle []byte) int {
	return bytes.Index(bytes.ToLower(doc), needle)
}
