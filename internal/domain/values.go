package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"pastebox/internal/apperr"
)

// MaxFieldLength bounds usernames, e-mail addresses, password hashes and titles.
const MaxFieldLength = 200

var validate = validator.New()

// Username is a trimmed, bounded login name.
type Username struct {
	value string
}

func NewUsername(raw string) (Username, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Username{}, apperr.Validation("username is required")
	}
	if utf8.RuneCountInString(v) > MaxFieldLength {
		return Username{}, apperr.Validation("username must be at most 200 characters")
	}
	return Username{value: v}, nil
}

func (u Username) String() string { return u.value }

// IsAlphanumeric reports whether the name consists of letters and digits only.
func (u Username) IsAlphanumeric() bool {
	for _, r := range u.value {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return u.value != ""
}

// Email is a validated address plus its confirmation state.
type Email struct {
	address   string
	confirmed bool
}

func NewEmail(raw string, confirmed bool) (Email, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Email{}, apperr.Validation("email is required")
	}
	if utf8.RuneCountInString(v) > MaxFieldLength {
		return Email{}, apperr.Validation("email must be at most 200 characters")
	}
	if err := validate.Var(v, "email"); err != nil {
		return Email{}, apperr.Validation("email has an invalid format")
	}
	return Email{address: v, confirmed: confirmed}, nil
}

func (e Email) String() string  { return e.address }
func (e Email) Confirmed() bool { return e.confirmed }

// PasswordHash holds an already hashed password. Hashing lives in
// internal/security.
type PasswordHash struct {
	value string
}

func NewPasswordHash(hashed string) (PasswordHash, error) {
	if hashed == "" {
		return PasswordHash{}, apperr.Validation("password is required")
	}
	if utf8.RuneCountInString(hashed) > MaxFieldLength {
		return PasswordHash{}, apperr.Validation("password hash must be at most 200 characters")
	}
	return PasswordHash{value: hashed}, nil
}

func (p PasswordHash) String() string { return p.value }

// Role gates the admin endpoints.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", apperr.Validation("role must be one of User, Admin")
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}
