package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/lpedia/review-player/internal/auth"
	"github.com/lpedia/review-player/internal/rbac"
	"github.com/lpedia/review-player/internal/review"
)

// GET /attempts?package_id=...&user_id=...&completed=true&limit=50&offset=0
//
// Roles with attempt:view-all may use any filters; everyone else is scoped
// to their own attempts regardless of the user_id parameter.
func ListAttemptsHandler(store review.Store) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := auth.SubjectFromContext(r.Context())
		if role == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		q := r.URL.Query()
		opts := review.AttemptListOpts{
			PackageID: strings.TrimSpace(q.Get("package_id")),
			UserID:    strings.TrimSpace(q.Get("user_id")),
			Limit:     parseIntDefault(q.Get("limit"), 50),
			Offset:    parseIntDefault(q.Get("offset"), 0),
		}
		if v := q.Get("completed"); v != "" {
			b := v == "true" || v == "1"
			opts.Completed = &b
		}
		if !checker.Has(role, "attempt:view-all") {
			opts.UserID = sub
		}

		list, err := store.ListAttempts(r.Context(), opts)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, list)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
