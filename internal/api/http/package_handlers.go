package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lpedia/review-player/internal/review"
)

// POST /packages  (instructor authoring flow)
func UploadPackageHandler(store review.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p review.Package
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Source.Kind != review.SourceDirect && p.Source.Kind != review.SourceEmbedded {
			http.Error(w, "source.kind must be direct or embedded", http.StatusBadRequest)
			return
		}
		for i, cp := range p.Checkpoints {
			if cp.ID == "" || len(cp.Options) < 2 {
				http.Error(w, "checkpoints need an id and at least two options", http.StatusBadRequest)
				return
			}
			if cp.CorrectIndex < 0 || cp.CorrectIndex >= len(cp.Options) {
				http.Error(w, "checkpoint correct_index out of range", http.StatusBadRequest)
				return
			}
			if i > 0 && cp.TimestampSec < p.Checkpoints[i-1].TimestampSec {
				http.Error(w, "checkpoints must be ordered by timestamp", http.StatusBadRequest)
				return
			}
		}
		if err := store.PutPackage(r.Context(), p); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"id": p.ID})
	}
}

// GET /packages/{packageID}  (full definition, instructor only)
func GetPackageFullHandler(store review.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.GetPackageFull(r.Context(), chi.URLParam(r, "packageID"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, p)
	}
}
