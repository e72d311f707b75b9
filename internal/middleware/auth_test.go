package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/happy-hops/choperia/internal/app/domain/user"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/internal/logging"
)

type fakeAuthenticator struct {
	users map[string]user.User
	errs  map[string]error
}

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (user.User, error) {
	if err, ok := f.errs[token]; ok {
		return user.User{}, err
	}
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return user.User{}, errors.InvalidToken(nil)
}

func newTestAuth() *AuthMiddleware {
	return NewAuthMiddleware(fakeAuthenticator{
		users: map[string]user.User{"good": {ID: 4, Nome: "Bia", Tipo: user.TipoFisica}},
		errs:  map[string]error{"old": errors.TokenExpired(nil)},
	}, nil)
}

func TestAuthMiddleware_CookieTakesPrecedence(t *testing.T) {
	var seen user.User
	handler := newTestAuth().Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CurrentUser(r.Context())
		if id, ok := logging.GetUserID(r.Context()); !ok || id != 4 {
			t.Errorf("user id not propagated to logging context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "good"})
	req.Header.Set("Authorization", "Bearer old")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen.ID != 4 {
		t.Fatalf("expected cookie user, got %#v", seen)
	}
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	var ok bool
	handler := newTestAuth().Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = CurrentUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer good")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !ok {
		t.Fatalf("expected bearer token to authenticate")
	}
}

func TestRequireUser_Messages(t *testing.T) {
	protected := newTestAuth().Handler(RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	tests := []struct {
		name   string
		token  string
		status int
		detail string
	}{
		{name: "missing", token: "", status: http.StatusUnauthorized, detail: "Token ausente"},
		{name: "expired", token: "old", status: http.StatusUnauthorized, detail: "Token expirado"},
		{name: "invalid", token: "garbage", status: http.StatusUnauthorized, detail: "Token inválido"},
		{name: "valid", token: "good", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.detail == "" {
				return
			}
			var body map[string]interface{}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["detail"] != tt.detail {
				t.Errorf("detail = %v, want %s", body["detail"], tt.detail)
			}
		})
	}
}

func TestTokenFromRequest_InvalidHeaderFormat(t *testing.T) {
	for _, header := range []string{"good", "Basic good", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		if got := TokenFromRequest(req); got != "" {
			t.Errorf("header %q: got token %q", header, got)
		}
	}
}
