package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-user-auth/identity"
	"github.com/jrsteele09/go-user-auth/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyIdentity stores the session-authenticated identity
	ContextKeyIdentity ContextKey = "identity"
	// ContextKeyClaims stores parsed access token claims
	ContextKeyClaims ContextKey = "claims"
)

// IdentityFromContext returns the identity injected by RequireSessionAuth.
func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	ident, ok := ctx.Value(ContextKeyIdentity).(*identity.Identity)
	return ident, ok
}

// ClaimsFromContext returns the claims injected by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok
}

// RequireSessionAuth validates the session cookie on browser-facing routes.
// An unauthenticated request is bounced to the login form with the original
// path as the redirect target.
func (s *Server) RequireSessionAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				s.redirectUnauthenticated(w, r)
				return
			}

			ident, err := s.deps.Engine.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				s.clearSessionCookie(w)
				s.redirectUnauthenticated(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, ident)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireAuth validates a Bearer access token on API routes.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.deps.Tokens == nil {
				http.Error(w, `{"error":"unauthorized","error_description":"Token authentication not configured"}`, http.StatusUnauthorized)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"unauthorized","error_description":"Missing Authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				http.Error(w, `{"error":"unauthorized","error_description":"Invalid Authorization header format"}`, http.StatusUnauthorized)
				return
			}

			claims, err := s.deps.Tokens.Parse(parts[1])
			if err != nil {
				http.Error(w, `{"error":"unauthorized","error_description":"Invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

func (s *Server) redirectUnauthenticated(w http.ResponseWriter, r *http.Request) {
	values := url.Values{}
	if s.config.GetUseRedirectParameter() {
		values.Set("redirect", r.URL.Path)
	}
	target := RouteLogin
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
