package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/crmimport/internal/auth"
)

const organizationHeader = "X-Organization-ID"

// OrganizationScopeMiddleware reads the X-Organization-ID header and stores
// it on the request context so handlers can enforce tenant scope. Requests
// without the header pass through unscoped.
func OrganizationScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(organizationHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid X-Organization-ID header", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithOrganizationID(r.Context(), id)))
	})
}
