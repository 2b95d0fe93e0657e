package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lpedia/review-player/internal/auth"
	"github.com/lpedia/review-player/internal/review"
)

// SessionPayload is what the player needs to open a session: the sanitized
// package, the viewer's attempt, and (for direct sources) a proxy URL whose
// credential rides in the query string.
type SessionPayload struct {
	Package  review.Package `json:"package"`
	Attempt  review.Attempt `json:"attempt"`
	MediaURL string         `json:"media_url,omitempty"`
}

// GET /packages/{packageID}/session
func GetSessionHandler(store review.Store, signer *auth.MediaSigner, publicURL string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		packageID := chi.URLParam(r, "packageID")
		sub := auth.SubjectFromContext(r.Context())

		p, err := store.GetPackage(r.Context(), packageID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		a, err := store.GetOrCreateAttempt(r.Context(), packageID, sub)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		payload := SessionPayload{Package: p, Attempt: a}
		if p.Source.Kind == review.SourceDirect {
			tok, err := signer.Issue(p.Source.Locator, sub)
			if err != nil {
				log.Error("media token issue failed", zap.Error(err))
				http.Error(w, "media token", http.StatusInternalServerError)
				return
			}
			payload.MediaURL = publicURL + "/media/" + p.Source.Locator + "?token=" + url.QueryEscape(tok)
		}
		writeJSON(w, payload)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, review.ErrFinalized):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, review.ErrNotEligible):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, review.ErrBadAnswer):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
