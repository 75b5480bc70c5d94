// Package web serves the browser client.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var content embed.FS

// RegisterRoutes serves index.html on / and the assets under /static/
func RegisterRoutes(mux *http.ServeMux) {
	static, _ := fs.Sub(content, "static")
	files := http.FileServer(http.FS(static))

	mux.Handle("/static/", http.StripPrefix("/static/", files))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "GET only", http.StatusMethodNotAllowed)
			return
		}
		http.ServeFileFS(w, r, static, "index.html")
	})
}
