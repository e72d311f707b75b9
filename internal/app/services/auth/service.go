package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/user"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/pkg/logger"
)

// Service manages user accounts and session tokens.
type Service struct {
	users  storage.UserStore
	tokens *TokenManager
	log    *logger.Logger
}

// New constructs an auth service.
func New(users storage.UserStore, tokens *TokenManager, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if tokens == nil {
		tokens = NewTokenManager("devsecret", 0)
	}
	return &Service{users: users, tokens: tokens, log: log}
}

// Tokens exposes the token manager, e.g. for cookie lifetimes.
func (s *Service) Tokens() *TokenManager { return s.tokens }

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Nome     string
	Email    string
	Password string
	Tipo     string
}

// Register creates an account whose username is the local part of the email
// and returns it with a session token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, string, error) {
	in.Nome = strings.TrimSpace(in.Nome)
	in.Email = strings.TrimSpace(in.Email)
	if in.Nome == "" || in.Email == "" || in.Password == "" {
		return user.User{}, "", errors.BadRequest("nome, email e password são obrigatórios")
	}
	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return user.User{}, "", errors.BadRequest("Email já cadastrado")
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return user.User{}, "", err
	}

	u, err := s.create(ctx, user.UsernameFromEmail(in.Email), in.Email, in.Nome, in.Password, user.ParseTipo(in.Tipo))
	if err != nil {
		return user.User{}, "", err
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return user.User{}, "", err
	}
	return u, token, nil
}

// CreateUserInput is the administrative account creation payload.
type CreateUserInput struct {
	Username string
	Email    string
	Nome     string
	Password string
	Tipo     string
}

// CreateUser creates an account with an explicit username.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (user.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return user.User{}, errors.BadRequest("username, email e password são obrigatórios")
	}
	if _, err := s.users.GetUserByUsername(ctx, in.Username); err == nil {
		return user.User{}, errors.BadRequest("Username já existe")
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return user.User{}, err
	}
	nome := strings.TrimSpace(in.Nome)
	if nome == "" {
		nome = in.Username
	}
	return s.create(ctx, in.Username, in.Email, nome, in.Password, user.ParseTipo(in.Tipo))
}

func (s *Service) create(ctx context.Context, username, email, nome, password string, tipo user.Tipo) (user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		Email:        email,
		Nome:         nome,
		PasswordHash: string(hash),
		Tipo:         tipo,
		IsActive:     true,
		IsSuperuser:  tipo == user.TipoAdmin,
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return user.User{}, errors.BadRequest("Email já cadastrado")
		}
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).
		WithField("tipo", u.Tipo).
		Info("user created")
	return u, nil
}

// Login checks credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return user.User{}, "", errors.BadRequest("email e password são obrigatórios")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return user.User{}, "", errors.Unauthorized("Credenciais inválidas")
		}
		return user.User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.log.WithField("user_id", u.ID).Warn("login rejected")
		return user.User{}, "", errors.Unauthorized("Credenciais inválidas")
	}
	if !u.IsActive {
		return user.User{}, "", errors.Forbidden("Usuário inativo")
	}

	now := time.Now().UTC()
	u.LastLogin = &now
	if updated, err := s.users.UpdateUser(ctx, u); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("record last login failed")
	} else {
		u = updated
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return user.User{}, "", err
	}
	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, token, nil
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (user.User, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return user.User{}, errors.NotFound("Usuário")
		}
		return user.User{}, err
	}
	return u, nil
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (user.User, error) {
	return s.users.GetUser(ctx, id)
}

// GetByUsername fetches a user by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.users.ListUsers(ctx)
}

// DeleteByUsername removes the account with username.
func (s *Service) DeleteByUsername(ctx context.Context, username string) error {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, u.ID); err != nil {
		return err
	}
	s.log.WithField("user_id", u.ID).Info("user deleted")
	return nil
}

// CanEditMesa reports whether u may change m. Staff may edit mesas nobody is
// responsible for and the ones they are responsible for.
func CanEditMesa(u user.User, m mesa.Mesa) bool {
	if u.IsAdmin() {
		return true
	}
	if u.Tipo != user.TipoFisica {
		return false
	}
	return m.UsuarioResponsavelID == nil || *m.UsuarioResponsavelID == u.ID
}

// CanAssignUser reports whether u may hand mesas over to other staff.
func CanAssignUser(u user.User) bool {
	return u.IsAdmin() || u.Tipo == user.TipoFisica
}
