package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M60 130l30-40 25 30 15-20 30 30z" fill="#999"/><circle cx="130" cy="70" r="12" fill="#999"/><text x="100" y="170" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">OFFER</text></svg>`

// OfferImageServer serves offer images from dir and a placeholder SVG for
// anything missing.
func OfferImageServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Clean("/" + r.URL.Path)
		path := filepath.Join(dir, name)

		if info, err := os.Stat(path); err == nil && !info.IsDir() && !strings.HasPrefix(filepath.Base(path), ".") {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
