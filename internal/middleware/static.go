package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#fdf6e3"/><path d="M100 55l12 20h-24z" fill="#2aa198"/><circle cx="100" cy="115" r="35" fill="#b58900"/><text x="100" y="175" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">vamo</text></svg>`

// StaticFileServer serves uploaded project screenshots, falling back to a
// placeholder image for missing files.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
