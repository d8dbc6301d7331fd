package auth

import (
	"context"
	"net/http"
)

// contextKey is unexported so no other package can read or overwrite the
// viewer stored under it.
type contextKey string

const viewerKey contextKey = "viewer"

// SessionVerifier is the part of TokenService the middleware needs.
type SessionVerifier interface {
	VerifySession(token string) (Viewer, bool)
}

// OptionalSession attaches the viewer to the request context when the
// session cookie verifies. It never rejects a request: routes that serve
// anonymous and signed-in viewers differently read the result with
// ViewerFromContext.
//
// A nil verifier (JWT_SECRET not configured) treats every request as
// anonymous.
func OptionalSession(tokens SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens != nil {
				if v, ok := tokens.VerifySession(SessionToken(r)); ok {
					r = r.WithContext(WithViewer(r.Context(), v))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithViewer returns a copy of ctx carrying v.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey, v)
}

// ViewerFromContext returns the signed-in viewer, or ok == false for an
// anonymous request.
//
//	if v, ok := auth.ViewerFromContext(r.Context()); ok {
//	    // signed in as v.UserID
//	}
func ViewerFromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerKey).(Viewer)
	return v, ok && v.UserID != ""
}
