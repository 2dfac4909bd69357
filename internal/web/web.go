// Package web serves the single-page UI.
package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

// defaultNumImages matches the server default for NUM_IMAGES.
const defaultNumImages = 2

// Index serves the UI shell. numImages sizes the pending grid shown while a
// request is in flight.
func Index(numImages int) http.HandlerFunc {
	if numImages <= 0 {
		numImages = defaultNumImages
	}
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, struct{ NumImages int }{numImages}); err != nil {
		panic(err)
	}
	page := buf.Bytes()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(page)
		}
	}
}
