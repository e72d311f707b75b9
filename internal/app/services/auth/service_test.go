package auth

import (
	"context"
	"testing"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/user"
	"github.com/happy-hops/choperia/internal/app/storage/memory"
	"github.com/happy-hops/choperia/internal/errors"
)

func TestService_RegisterLoginAuthenticate(t *testing.T) {
	store := memory.New()
	svc := New(store, NewTokenManager("secret", time.Hour), nil)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, RegisterInput{Nome: "Ana", Email: "ana@choperia.local", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username != "ana" || u.Tipo != user.TipoOnline || token == "" {
		t.Fatalf("unexpected registration result: %#v %q", u, token)
	}
	if u.PasswordHash == "pw" {
		t.Fatalf("password stored in clear text")
	}

	if _, _, err := svc.Register(ctx, RegisterInput{Nome: "Ana", Email: "ana@choperia.local", Password: "pw"}); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected duplicate email rejection, got %v", err)
	}

	if _, _, err := svc.Login(ctx, "ana@choperia.local", "wrong"); !errors.Is(err, errors.CodeUnauthorized) {
		t.Fatalf("expected bad credentials, got %v", err)
	}
	logged, token, err := svc.Login(ctx, "ana@choperia.local", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.LastLogin == nil {
		t.Fatalf("expected last login recorded")
	}

	resolved, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if resolved.ID != u.ID {
		t.Fatalf("authenticated as %d, want %d", resolved.ID, u.ID)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	if _, _, err := svc.Register(context.Background(), RegisterInput{Email: "x@y"}); err == nil {
		t.Fatalf("expected missing fields error")
	}
}

func TestTokenManager_ExpiredAndTampered(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	now := time.Now()
	tm.now = func() time.Time { return now }

	token, err := tm.Issue(user.User{ID: 9, Email: "x@y"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if id, err := tm.Parse(token); err != nil || id != 9 {
		t.Fatalf("parse: %d %v", id, err)
	}

	tm.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := tm.Parse(token); !errors.Is(err, errors.CodeTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}

	other := NewTokenManager("other", time.Minute)
	if _, err := other.Parse(token); !errors.Is(err, errors.CodeInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestService_CreateAndDeleteUser(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, CreateUserInput{Username: "caixa", Email: "caixa@choperia.local", Password: "pw", Tipo: "fisica"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Nome != "caixa" || u.Tipo != user.TipoFisica {
		t.Fatalf("unexpected user %#v", u)
	}
	if _, err := svc.CreateUser(ctx, CreateUserInput{Username: "caixa", Email: "b@c", Password: "pw"}); err == nil {
		t.Fatalf("expected duplicate username error")
	}
	if err := svc.DeleteByUsername(ctx, "caixa"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetByUsername(ctx, "caixa"); err == nil {
		t.Fatalf("expected user gone")
	}
}

func TestPermissions(t *testing.T) {
	owner := int64(1)
	staff := user.User{ID: 1, Tipo: user.TipoFisica}
	otherStaff := user.User{ID: 2, Tipo: user.TipoFisica}
	admin := user.User{ID: 3, Tipo: user.TipoAdmin}
	customer := user.User{ID: 4, Tipo: user.TipoOnline}

	owned := mesa.Mesa{UsuarioResponsavelID: &owner}
	free := mesa.Mesa{}

	if !CanEditMesa(staff, owned) || CanEditMesa(otherStaff, owned) || !CanEditMesa(otherStaff, free) {
		t.Fatalf("staff edit rules broken")
	}
	if !CanEditMesa(admin, owned) || CanEditMesa(customer, free) {
		t.Fatalf("admin/customer edit rules broken")
	}
	if !CanAssignUser(staff) || !CanAssignUser(admin) || CanAssignUser(customer) {
		t.Fatalf("assign rules broken")
	}
}
