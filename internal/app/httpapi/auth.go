package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/happy-hops/choperia/internal/app/domain/user"
	"github.com/happy-hops/choperia/internal/app/services/auth"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/internal/middleware"
)

type sessionResponse struct {
	user.User
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func currentUser(r *http.Request) (user.User, bool) {
	return middleware.CurrentUser(r.Context())
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.app.Auth.CreateUser(r.Context(), auth.CreateUserInput{
		Username: p.String("username"),
		Email:    p.String("email"),
		Nome:     p.String("nome"),
		Password: p.String("password"),
		Tipo:     p.String("tipo"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Auth.GetByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Auth.DeleteByUsername(r.Context(), mux.Vars(r)["username"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	email, password := p.String("email"), p.String("password")
	if email == "" || password == "" {
		writeError(w, r, errors.BadRequest("email e password são obrigatórios"))
		return
	}
	u, token, err := h.app.Auth.Login(r.Context(), email, password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSession(w, token)
	writeJSON(w, http.StatusOK, sessionResponse{User: u, AccessToken: token, TokenType: "bearer"})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, token, err := h.app.Auth.Register(r.Context(), auth.RegisterInput{
		Nome:     p.String("nome"),
		Email:    p.String("email"),
		Password: p.String("password"),
		Tipo:     p.String("tipo"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSession(w, token)
	writeJSON(w, http.StatusOK, sessionResponse{User: u, AccessToken: token, TokenType: "bearer"})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "message": "Logout realizado"})
}

func (h *handler) setSession(w http.ResponseWriter, token string) {
	lifetime := h.app.Auth.Tokens().Lifetime()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(lifetime / time.Second),
		HttpOnly: true,
		Secure:   h.app.Config().Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	writeJSON(w, http.StatusOK, u)
}

// authRoot answers GET /auth: the caller when signed in, otherwise the auth
// endpoints.
func (h *handler) authRoot(w http.ResponseWriter, r *http.Request) {
	if u, ok := currentUser(r); ok {
		writeJSON(w, http.StatusOK, u)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": false,
		"endpoints": map[string]string{
			"login":    "/auth/login",
			"register": "/auth/register",
			"me":       "/auth/me",
		},
	})
}
