package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

// StaticFileServer serves the API description files under dir. Missing files
// get the JSON error envelope instead of the default plain-text 404.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"error":"Not found"}`))
			return
		}

		if filepath.Ext(path) == ".yaml" {
			w.Header().Set("Content-Type", "application/yaml")
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		http.ServeFile(w, r, path)
	})
}
