package user

import (
	"strings"
	"time"
)

// Tipo distinguishes online customers, physical-store staff and admins.
type Tipo string

const (
	TipoOnline Tipo = "online"
	TipoFisica Tipo = "fisica"
	TipoAdmin  Tipo = "admin"
)

// ParseTipo returns the matching Tipo, defaulting to online.
func ParseTipo(raw string) Tipo {
	switch Tipo(strings.ToLower(strings.TrimSpace(raw))) {
	case TipoFisica:
		return TipoFisica
	case TipoAdmin:
		return TipoAdmin
	default:
		return TipoOnline
	}
}

// User is an account able to sign in.
type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	Nome         string     `json:"nome" db:"nome"`
	PasswordHash string     `json:"-" db:"password"`
	Tipo         Tipo       `json:"tipo" db:"tipo"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	IsSuperuser  bool       `json:"is_superuser" db:"is_superuser"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether u has administrative rights.
func (u User) IsAdmin() bool {
	return u.Tipo == TipoAdmin || u.IsSuperuser
}

// UsernameFromEmail derives a username from the local part of an email.
func UsernameFromEmail(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
