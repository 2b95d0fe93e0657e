package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lpedia/review-player/internal/auth"
	"github.com/lpedia/review-player/internal/storage"
)

// MountMedia serves proxied video blobs. The credential is a signed token in
// the query string because media elements cannot attach headers; the token
// is bound to the requested key. ServeContent gives the element Range
// support for scrubbing within already-watched content.
func MountMedia(r chi.Router, bs storage.BlobStore, signer *auth.MediaSigner) {
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(req, "*"), "/")
		tok := req.URL.Query().Get("token")
		if tok == "" {
			http.Error(w, "token required", http.StatusUnauthorized)
			return
		}
		if err := signer.Verify(tok, key); err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		blob, err := bs.Open(key)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer blob.Close()
		http.ServeContent(w, req, key, blob.ModTime(), blob)
	})
}
