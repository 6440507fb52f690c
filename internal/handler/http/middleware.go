package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/macaronshop/storefront/pkg/middleware"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// customerIDKey is the context key for the shopper's identity.
const customerIDKey contextKey = "customer_id"

// CustomerID is middleware that resolves the shopper's identity. A JWT on
// the request wins; otherwise the X-Customer-ID header carries the
// anonymous session ID the storefront client generated. Requests with
// neither are rejected.
func CustomerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.CustomerIDFromContext(r.Context())
		if id == "" {
			id = r.Header.Get("X-Customer-ID")
		}
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, response{
				Error: &errorResponse{Code: "UNAUTHORIZED", Message: "customer identity is required"},
			})
			return
		}
		ctx := context.WithValue(r.Context(), customerIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// customerIDFromContext extracts the shopper's identity from the request
// context. Returns the ID and true if present.
func customerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(customerIDKey).(string)
	return id, ok && id != ""
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
