package auth

import (
	"net/http"
	"strings"

	"github.com/unicef-drp/geosight/pkg/contextkeys"
	"github.com/unicef-drp/geosight/pkg/httputil"
)

// Middleware resolves bearer tokens into an authenticated Context
type Middleware struct {
	tokens   *TokenManager
	optional bool // if true, requests without credentials pass through anonymously
}

// NewMiddleware creates authentication middleware. With optional=true,
// unauthenticated requests continue with a nil user so that per-object
// public permissions still apply.
func NewMiddleware(tokens *TokenManager, optional bool) *Middleware {
	return &Middleware{tokens: tokens, optional: optional}
}

// Handler wraps an HTTP handler with authentication
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		token, user, err := m.tokens.Validate(r.Context(), parts[1])
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		if token == nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), &Context{User: user, Token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromRequest extracts the auth context from a request. Returns nil for
// anonymous requests.
func FromRequest(r *http.Request) *Context {
	v := r.Context().Value(contextkeys.AuthKey)
	if v == nil {
		return nil
	}
	authCtx, ok := v.(*Context)
	if !ok {
		return nil
	}
	return authCtx
}

// UserFromRequest returns the authenticated user, or nil
func UserFromRequest(r *http.Request) *User {
	if authCtx := FromRequest(r); authCtx != nil {
		return authCtx.User
	}
	return nil
}

// RequireAdmin wraps a handler so only admins may reach it
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromRequest(r)
		if user == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !IsAdmin(user) {
			httputil.WriteForbidden(w, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
