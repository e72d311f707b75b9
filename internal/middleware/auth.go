// Package middleware provides the HTTP middleware of the choperia API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/happy-hops/choperia/internal/app/domain/user"
	"github.com/happy-hops/choperia/internal/errors"
	internalhttputil "github.com/happy-hops/choperia/internal/httputil"
	"github.com/happy-hops/choperia/internal/logging"
	"github.com/happy-hops/choperia/pkg/logger"
)

// CookieName is the cookie carrying the session token.
const CookieName = "access_token"

// Authenticator resolves a bearer token to the user it was issued to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (user.User, error)
}

type ctxKey int

const (
	userKey ctxKey = iota
	authErrKey
)

// AuthMiddleware resolves the caller from the access_token cookie or an
// Authorization bearer header. Requests without a usable token pass through
// anonymously; RequireUser rejects them.
type AuthMiddleware struct {
	auth   Authenticator
	logger *logger.Logger
}

// NewAuthMiddleware creates the identity resolving middleware.
func NewAuthMiddleware(auth Authenticator, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	return &AuthMiddleware{auth: auth, logger: log}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" || m.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		u, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			logging.FromContext(r.Context(), m.logger).WithError(err).Debug("token rejected")
			ctx := context.WithValue(r.Context(), authErrKey, err)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		ctx := WithUser(r.Context(), u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest returns the token from the cookie, falling back to the
// Authorization bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// WithUser stores u as the authenticated caller.
func WithUser(ctx context.Context, u user.User) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return logging.WithUserID(ctx, u.ID, string(u.Tipo))
}

// CurrentUser returns the authenticated caller, if any.
func CurrentUser(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey).(user.User)
	return u, ok
}

// AuthError returns why the request token was rejected, if it was.
func AuthError(ctx context.Context) error {
	err, _ := ctx.Value(authErrKey).(error)
	return err
}

// RequireUser rejects requests without an authenticated caller. The error
// names the reason: missing, expired or invalid token.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		err := AuthError(r.Context())
		if err == nil {
			internalhttputil.Unauthorized(w, r, "Token ausente")
			return
		}
		serviceErr := errors.GetServiceError(err)
		if serviceErr == nil {
			serviceErr = errors.InvalidToken(err)
		}
		internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
	})
}
