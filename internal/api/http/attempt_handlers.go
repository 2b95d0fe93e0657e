package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lpedia/review-player/internal/auth"
	"github.com/lpedia/review-player/internal/rbac"
	"github.com/lpedia/review-player/internal/review"
)

// requireOwner guards attempt mutations: knowing the id is not authorization.
func requireOwner(store review.Store, w http.ResponseWriter, r *http.Request, id string) bool {
	a, err := store.GetAttempt(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return false
	}
	if a.UserID != auth.SubjectFromContext(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// POST /attempts/{attemptID}/progress
func ReportProgressHandler(store review.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if !requireOwner(store, w, r, id) {
			return
		}
		var rep review.ProgressReport
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := store.ReportProgress(r.Context(), id, rep)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// POST /attempts/{attemptID}/answers
func SubmitAnswerHandler(store review.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if !requireOwner(store, w, r, id) {
			return
		}
		var req struct {
			CheckpointID  string `json:"checkpoint_id"`
			SelectedIndex int    `json:"selected_index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.CheckpointID == "" {
			http.Error(w, "checkpoint_id required", http.StatusBadRequest)
			return
		}
		a, err := store.SaveAnswer(r.Context(), id, req.CheckpointID, req.SelectedIndex)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// FinalizeResponse pairs the finalized attempt with its scored breakdown.
type FinalizeResponse struct {
	Attempt review.Attempt `json:"attempt"`
	Report  review.Report  `json:"report"`
}

// POST /attempts/{attemptID}/finalize
func FinalizeAttemptHandler(store review.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if !requireOwner(store, w, r, id) {
			return
		}
		a, rep, err := store.Finalize(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, FinalizeResponse{Attempt: a, Report: rep})
	}
}

// GET /attempts/{attemptID}
//
// Roles without attempt:view-all only see their own attempts.
func GetAttemptHandler(store review.Store) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := store.GetAttempt(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if a.UserID != auth.SubjectFromContext(r.Context()) && !checker.Has(role, "attempt:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, a)
	}
}
